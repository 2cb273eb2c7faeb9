package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/conduit/internal/cli/config"
	"github.com/conduit-lang/conduit/internal/cli/ui"
	"github.com/conduit-lang/conduit/internal/compiler/driver"
	"github.com/conduit-lang/conduit/internal/incremental/cachefile"
	"github.com/conduit-lang/conduit/internal/incremental/classify"
	"github.com/conduit-lang/conduit/internal/incremental/fingerprint"
	"github.com/conduit-lang/conduit/internal/incremental/modulemap"
	"github.com/conduit-lang/conduit/internal/incremental/parsecache"
	"github.com/conduit-lang/conduit/internal/incremental/signature"
)

// NewBuildCommand creates the build command: one incremental compile
// cycle sharing every component with watch mode, minus the loop.
func NewBuildCommand(version string) *cobra.Command {
	var (
		linkFlags  []string
		clearCache bool
		cacheDir   string
		target     string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "build <file.cdt>",
		Short: "Compile a source file and its requires incrementally",
		Long: `build runs one incremental compile cycle: load the cache record,
compile whatever changed since it was written, classify the changes, and
save a fresh record. Unchanged backend modules reuse their cached
artefacts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := args[0]

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("target") {
				target = cfg.Build.Target
			}
			if !cmd.Flags().Changed("cache-dir") {
				cacheDir = config.CacheDir(cfg.ProjectName)
			}
			if clearCache {
				_ = os.RemoveAll(cacheDir)
			}

			log := zap.NewNop().Sugar()
			if verbose {
				zlog, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				defer zlog.Sync()
				log = zlog.Sugar()
			}

			buildFlags := append(append([]string(nil), cfg.Build.Flags...), linkFlags...)
			identity := cachefile.NewIdentity(version, target, cfg.Build.Prelude, buildFlags)

			start := time.Now()
			record, err := cachefile.Load(cacheDir, identity)
			if err != nil {
				return err
			}

			// What moved since the record was written decides which
			// modules can keep their cached artefacts.
			fp := fingerprint.NewFromMap(record.Files)
			current := make(map[string]fingerprint.File, len(record.Files))
			for path := range record.Files {
				f, err := fp.Refresh(path)
				if err != nil {
					fp.Forget(path)
					continue
				}
				current[path] = f
			}
			changed := record.ChangedFiles(current)
			planner := modulemap.NewPlanner(record.ModuleFileMap, cacheDir, false, changed)

			flagSet := make(map[string]bool, len(cfg.Build.Flags))
			for _, f := range cfg.Build.Flags {
				flagSet[f] = true
			}

			typeHint := 0
			if record.AllocationHints != nil {
				typeHint = record.AllocationHints.TypeCount
			}
			compiler := driver.New(parsecache.NewSized(len(record.Files)), driver.Options{
				OutputDir:     cacheDir,
				PreludeRoots:  cfg.Build.PreludeRoots,
				PreludeImport: cfg.Build.Prelude,
				Flags:         flagSet,
				Workers:       config.Workers(),
				TypeCountHint: typeHint,
				Logger:        log,
			})

			result, err := compiler.Compile([]string{entry}, planner)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.FormatError(ui.ErrorOptions{
					Level:   ui.ErrorLevelError,
					Context: "BUILD FAILED",
					Problem: err.Error(),
				}))
				return fmt.Errorf("build failed")
			}

			fps := make(map[string]fingerprint.File, len(result.Requires))
			for _, p := range result.Requires {
				f, err := fp.Refresh(p)
				if err != nil {
					continue
				}
				fps[p] = f
			}

			extractor := signature.NewExtractor()
			sigs := make(map[string]signature.File, len(result.Programs))
			for path, prog := range result.Programs {
				sigs[path] = extractor.Extract(path, prog, result.HasMacroCalls[path])
			}

			bodyOnly, structural := 0, 0
			lookup := func(path string) (*signature.File, bool) {
				prev, ok := record.Signatures[path]
				if !ok {
					return nil, false
				}
				return &prev, true
			}
			for _, res := range classify.NewClassifier().ClassifyBatch(record.ChangedFiles(fps), lookup, sigs) {
				if res.Kind == classify.KindBodyOnly {
					bodyOnly++
				} else {
					structural++
				}
			}

			record.Update(fps, sigs)
			record.ModuleFileMap = result.Modules
			record.AllocationHints = result.AllocationHints()
			if err := cachefile.Save(cacheDir, record); err != nil {
				color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: could not save incremental cache: %v\n", err)
			}

			color.New(color.FgGreen, color.Bold).Printf("✓ Build succeeded in %s\n", time.Since(start).Round(time.Millisecond))
			fmt.Printf("  %d files, %d modules (%d generated, %d reused)\n",
				len(result.Requires), len(result.Modules), len(result.Generated), len(result.Skipped))
			if bodyOnly+structural > 0 {
				fmt.Printf("  changed: %d body-only, %d structural\n", bodyOnly, structural)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&linkFlags, "link-flags", nil, "pass-through linker flags (may be repeated)")
	cmd.Flags().BoolVar(&clearCache, "clear-cache", false, "discard the on-disk incremental cache before building")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory holding the incremental cache (default: $CACHE_DIR, else the per-user cache dir)")
	cmd.Flags().StringVar(&target, "target", "", "codegen target triple")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log compile internals")

	return cmd
}
