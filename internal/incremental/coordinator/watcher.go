// Package coordinator drives the incremental build loop end to end:
// watch the filesystem, recompile whatever changed, and keep a child
// process running against the freshest build.
package coordinator

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// defaultIgnoreGlobs covers the paths that churn during a normal edit
// session without ever being source the coordinator should react to:
// VCS metadata, build output, and editor swap/temp files.
var defaultIgnoreGlobs = []string{
	"**/.git/**",
	"**/build/**",
	"**/.*",
	"**/*.swp",
	"**/*~",
}

// Backend identifies which watcher implementation is in effect.
type Backend string

const (
	// BackendNativeDir watches whole directories via the OS's native
	// notification facility (inotify/kqueue/ReadDirectoryChangesW, as
	// exposed by fsnotify) and filters events down to tracked files.
	BackendNativeDir Backend = "native_dir"
	// BackendNativeFile watches individual files by path, one fsnotify
	// watch per file. More precise, at the cost of one OS watch
	// descriptor per tracked file.
	BackendNativeFile Backend = "native_file"
	// BackendPolling stats every tracked file on an interval. The
	// fallback for filesystems (network mounts, some container
	// overlays) where native notifications are unreliable or absent.
	BackendPolling Backend = "polling"
)

// Watcher observes a set of files and reports batches of paths that
// changed, debounced so a burst of saves (editors that write via
// rename, linters that touch several files at once) is delivered as
// one batch rather than one callback per event.
type Watcher struct {
	backend     Backend
	debounce    time.Duration
	ignoreGlobs []string
	onChange    func([]string)
	stopCh      chan struct{}
	wg          sync.WaitGroup
	log         *zap.SugaredLogger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	// tracked is the requested file set for the native backends;
	// directory-level watches deliver events for every entry in a
	// watched directory, so events are filtered back down to this set.
	tracked map[string]struct{}

	fsw  *fsnotify.Watcher
	poll *pollState
}

// pollState is only populated when the polling backend is selected.
type pollState struct {
	interval time.Duration
	paths    []string
	sizes    map[string]int64
	mtimes   map[string]time.Time
}

// NewWatcher creates a watcher for backend over the given paths. For
// BackendNativeDir, paths are expanded to their parent directories and
// events are filtered back down to the requested path set, so edits to
// unrelated siblings in a watched directory never reach the callback.
// BackendPolling ignores debounce's fine structure and instead uses it
// directly as its poll interval. log may be nil.
func NewWatcher(backend Backend, paths []string, debounce time.Duration, ignoreGlobs []string, log *zap.SugaredLogger, onChange func([]string)) (*Watcher, error) {
	if ignoreGlobs == nil {
		ignoreGlobs = defaultIgnoreGlobs
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	w := &Watcher{
		backend:     backend,
		debounce:    debounce,
		ignoreGlobs: ignoreGlobs,
		onChange:    onChange,
		stopCh:      make(chan struct{}),
		pending:     make(map[string]struct{}),
		log:         log,
	}

	// A failure to construct the backend itself is fatal; a failure to
	// register one path (deleted mid-flight, exhausted watch
	// descriptors) only costs notifications for that path, so it warns
	// and moves on.
	switch backend {
	case BackendNativeDir:
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("coordinator: creating native watcher: %w", err)
		}
		dirs := uniqueDirs(paths)
		for _, dir := range dirs {
			if err := fsw.Add(dir); err != nil {
				w.log.Warnw("could not watch directory, continuing without it", "dir", dir, "error", err)
			}
		}
		w.fsw = fsw
		w.tracked = trackedSet(paths)

	case BackendNativeFile:
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("coordinator: creating native watcher: %w", err)
		}
		for _, p := range paths {
			if err := fsw.Add(p); err != nil {
				w.log.Warnw("could not watch file, continuing without it", "path", p, "error", err)
			}
		}
		w.fsw = fsw
		w.tracked = trackedSet(paths)

	case BackendPolling:
		w.poll = &pollState{
			interval: debounce,
			paths:    paths,
			sizes:    make(map[string]int64),
			mtimes:   make(map[string]time.Time),
		}
		seedPollState(w.poll)

	default:
		return nil, fmt.Errorf("coordinator: unknown watcher backend %q", backend)
	}

	return w, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.wg.Add(1)
	switch w.backend {
	case BackendPolling:
		go w.runPoll()
	default:
		go w.runNative()
	}
}

// Stop halts the watcher and releases any OS resources it holds.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
		return
	default:
		close(w.stopCh)
	}
	w.wg.Wait()
	if w.fsw != nil {
		w.fsw.Close()
	}
}

func (w *Watcher) runNative() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if w.ignoredPath(event.Name) {
				continue
			}
			if !w.trackedPath(event.Name) {
				// Directory watches report every sibling in a watched
				// directory; only the requested files matter.
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Treated as a spurious wake: report it and keep waiting.
			w.log.Warnw("watcher error", "error", err)

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) runPoll() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.poll.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.pollOnce()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) pollOnce() {
	changed := statChangedFiles(w.poll)
	for _, f := range changed {
		w.schedule(f)
	}
}

// schedule adds a path to the pending set and (re)arms the debounce
// timer. The first event of a burst starts the clock; every event
// after it within the window is folded into the same flush rather than
// restarting the clock, so a continuous stream of writes cannot starve
// the callback indefinitely. This mirrors the drain-then-union
// approach used for editor saves: collect what's pending, then deliver
// it all at once.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		return
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.timer = nil
		w.mu.Unlock()
		return
	}
	files := make([]string, 0, len(w.pending))
	for f := range w.pending {
		files = append(files, f)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	w.onChange(files)
}

// trackedSet normalizes the requested paths into the lookup set events
// are filtered against.
func trackedSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[filepath.Clean(p)] = struct{}{}
	}
	return set
}

// trackedPath reports whether an event concerns one of the requested
// files. A watcher with no tracked set (the polling backend feeds
// schedule directly) passes everything through.
func (w *Watcher) trackedPath(path string) bool {
	if w.tracked == nil {
		return true
	}
	_, ok := w.tracked[filepath.Clean(path)]
	return ok
}

func uniqueDirs(paths []string) []string {
	seen := make(map[string]struct{})
	var dirs []string
	for _, p := range paths {
		dir := filepath.Dir(p)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	return dirs
}

// ignoredPath reports whether path matches any of the watcher's ignore
// globs. Patterns are matched against both the full (slash-normalized)
// path and its base name, so "**/.git/**" catches nested paths while
// "**/.*" catches dotfiles regardless of directory depth.
func (w *Watcher) ignoredPath(path string) bool {
	clean := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range w.ignoreGlobs {
		if ok, _ := doublestar.Match(pattern, clean); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
