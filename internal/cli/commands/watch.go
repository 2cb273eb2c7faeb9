package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/conduit/internal/cli/config"
	"github.com/conduit-lang/conduit/internal/compiler/driver"
	"github.com/conduit-lang/conduit/internal/incremental/cachefile"
	"github.com/conduit-lang/conduit/internal/incremental/coordinator"
	"github.com/conduit-lang/conduit/internal/incremental/parsecache"
)

// NewWatchCommand creates the incremental watch command: it observes a
// source file and everything it statically requires, and recompiles
// only what a change actually touches.
func NewWatchCommand(version string) *cobra.Command {
	var (
		run           bool
		clearTerminal bool
		debounceMS    int
		poll          bool
		pollInterval  int
		linkFlags     []string
		clearCache    bool
		cacheDir      string
		target        string
	)

	cmd := &cobra.Command{
		Use:   "watch [options] <file.cdt> [-- <run-args>]",
		Short: "Recompile a source file incrementally as it (and its requires) change",
		Long: `watch observes a source file and everything it statically requires,
recompiling only what a change actually touches. A change that only edits a
hook or scope body never causes dependents to rebuild; a change to a
resource's fields, relationships, or operations does.

Pass --run to execute the build output after every successful build;
arguments after -- are handed to it verbatim.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := args[0]
			var runArgs []string
			if at := cmd.ArgsLenAtDash(); at >= 0 {
				runArgs = args[at:]
				args = args[:at]
				if len(args) == 0 {
					return fmt.Errorf("watch: a source file is required before --")
				}
				entry = args[0]
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("debounce") && cfg.Watch.DebounceMS > 0 {
				debounceMS = cfg.Watch.DebounceMS
			}
			if !cmd.Flags().Changed("poll-interval") && cfg.Watch.PollIntervalMS > 0 {
				pollInterval = cfg.Watch.PollIntervalMS
			}
			if !cmd.Flags().Changed("target") {
				target = cfg.Build.Target
			}
			if !cmd.Flags().Changed("cache-dir") {
				cacheDir = config.CacheDir(cfg.ProjectName)
			}

			zlog, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("watch: creating logger: %w", err)
			}
			defer zlog.Sync()
			log := zlog.Sugar()

			buildFlags := append(append([]string(nil), cfg.Build.Flags...), linkFlags...)
			flagSet := make(map[string]bool, len(cfg.Build.Flags))
			for _, f := range cfg.Build.Flags {
				if f = strings.TrimSpace(f); f != "" {
					flagSet[f] = true
				}
			}

			identity := cachefile.NewIdentity(version, target, cfg.Build.Prelude, buildFlags)

			// The previous build's record, when one survives identity
			// checks, pre-sizes this session's pools before the
			// coordinator loads it for real.
			typeHint := 0
			cacheSeed := 0
			if seed, err := cachefile.Load(cacheDir, identity); err == nil {
				cacheSeed = len(seed.Files)
				if seed.AllocationHints != nil {
					typeHint = seed.AllocationHints.TypeCount
				}
			}

			cache := parsecache.NewSized(cacheSeed)
			compiler := driver.New(cache, driver.Options{
				OutputDir:     cacheDir,
				PreludeRoots:  cfg.Build.PreludeRoots,
				PreludeImport: cfg.Build.Prelude,
				Flags:         flagSet,
				Workers:       config.Workers(),
				TypeCountHint: typeHint,
				Logger:        log,
			})

			c, err := coordinator.New(compiler, coordinator.Options{
				EntryFiles:    []string{entry},
				Run:           run,
				RunCommand:    cfg.Build.Output,
				RunArgs:       runArgs,
				Target:        target,
				ClearTerminal: clearTerminal,
				CacheDir:      cacheDir,
				ClearCache:    clearCache,
				Debounce:      time.Duration(debounceMS) * time.Millisecond,
				PollFallback:  poll,
				PollInterval:  time.Duration(pollInterval) * time.Millisecond,
				IgnoreGlobs:   ignoreGlobs(cfg),
				Identity:      identity,
				Logger:        log,
			})
			if err != nil {
				return fmt.Errorf("failed to start watch coordinator: %w", err)
			}

			banner := color.New(color.FgCyan, color.Bold)
			banner.Printf("Watching %s\n", entry)
			if run {
				color.New(color.FgWhite).Printf("Running: %s %s\n", cfg.Build.Output, strings.Join(runArgs, " "))
			}
			color.New(color.FgYellow).Println("Press Ctrl+C to stop")

			return c.Run()
		},
	}

	cmd.Flags().BoolVar(&run, "run", false, "execute the build output after each successful build, passing arguments after --")
	cmd.Flags().BoolVar(&clearTerminal, "clear", false, "clear the terminal before each compilation")
	cmd.Flags().IntVar(&debounceMS, "debounce", 300, "milliseconds to wait after a change before rebuilding")
	cmd.Flags().BoolVar(&poll, "poll", false, "force filesystem polling instead of native OS change notifications")
	cmd.Flags().IntVar(&pollInterval, "poll-interval", 1000, "milliseconds between polls when --poll is set")
	cmd.Flags().StringArrayVar(&linkFlags, "link-flags", nil, "pass-through linker flags (may be repeated; participate in cache identity)")
	cmd.Flags().BoolVar(&clearCache, "clear-cache", false, "discard the on-disk incremental cache before the first build")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory holding the incremental cache (default: $CACHE_DIR, else the per-user cache dir)")
	cmd.Flags().StringVar(&target, "target", "", "codegen target triple (wasm32-* runs the output under wasmtime)")

	return cmd
}

// ignoreGlobs appends any user-configured ignore patterns onto the
// coordinator's defaults; nil keeps the defaults alone.
func ignoreGlobs(cfg *config.Config) []string {
	if len(cfg.Watch.Ignore) == 0 {
		return nil
	}
	return append([]string{"**/.git/**", "**/build/**", "**/.*", "**/*.swp", "**/*~"}, cfg.Watch.Ignore...)
}
