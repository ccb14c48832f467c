// Package watch implements live reloading of shader sources. A watch
// session monitors the parent directories of a vertex+fragment pair or
// a single compute shader, recompiles on create/write events, and
// publishes each outcome on a result channel.
//
// A session owns one background goroutine and the native fsnotify
// watcher. Callers must call Stop when done; Stop signals the
// goroutine, waits for it to exit (bounded by the one-second event
// wait), and only then releases the watcher.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/shaderwatch/internal/errors"
	"github.com/conneroisu/shaderwatch/internal/logging"
	"github.com/conneroisu/shaderwatch/internal/shader"
)

const (
	// resultBuffer bounds the result channel. The original design let
	// undrained results queue without bound; a Go channel cannot, so
	// when the buffer is full the newest result is dropped instead of
	// blocking the session (see DESIGN.md).
	resultBuffer = 64

	// pollTimeout bounds each wait on the event stream so the
	// goroutine re-checks the shutdown signal at least once a second
	// even with no filesystem activity.
	pollTimeout = time.Second
)

// Message is the payload of a successful reload.
type Message struct {
	Shaders *shader.CompiledShaders
	Entry   shader.Entry
}

// Result is one reload outcome: either Message is set or Err is set.
type Result struct {
	Message *Message
	Err     error
}

// Watch is the public handle of a live-reload session.
//
// The first value on Results is always the initial reload performed
// during construction, before any filesystem event can be observed.
type Watch struct {
	results chan Result
	session *session
}

// Option configures a session.
type Option func(*settings)

type settings struct {
	compiler *shader.Compiler
	logger   logging.Logger
}

// WithCompiler injects the shader compiler to use. The default is a
// compiler with default options against the OS filesystem.
func WithCompiler(compiler *shader.Compiler) Option {
	return func(s *settings) {
		s.compiler = compiler
	}
}

// WithLogger injects a logger. The default discards everything.
func WithLogger(logger logging.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// New starts a session watching a vertex+fragment shader pair.
// debounce controls how long raw filesystem events for the same path
// are coalesced before surfacing as one reload trigger.
//
// New blocks until the directory watches are installed and exactly one
// initial reload has been attempted and enqueued. It returns a file
// watch error if the native watcher cannot be created or a parent
// directory cannot be watched; in that case no session exists.
func New(vertexPath, fragmentPath string, debounce time.Duration, opts ...Option) (*Watch, error) {
	cfg := applyOptions(opts)
	results := make(chan Result, resultBuffer)

	loader := &graphicsLoader{
		vertex:   vertexPath,
		fragment: fragmentPath,
		compiler: cfg.compiler,
		results:  results,
	}

	return createWatch(loader, []string{vertexPath, fragmentPath}, debounce, results, cfg)
}

// NewCompute starts a session watching a single compute shader.
// Semantics match New.
func NewCompute(computePath string, debounce time.Duration, opts ...Option) (*Watch, error) {
	cfg := applyOptions(opts)
	results := make(chan Result, resultBuffer)

	loader := &computeLoader{
		compute:  computePath,
		compiler: cfg.compiler,
		results:  results,
	}

	return createWatch(loader, []string{computePath}, debounce, results, cfg)
}

// Results returns the channel of reload outcomes. Consuming it is the
// caller's responsibility; the session never blocks on it.
func (w *Watch) Results() <-chan Result {
	return w.results
}

// Stop tears the session down: it signals the background goroutine,
// waits for it to exit, then releases the native watcher. Stop is
// idempotent and never panics, even if the goroutine already exited.
func (w *Watch) Stop() {
	w.session.stop()
}

func applyOptions(opts []Option) *settings {
	cfg := &settings{
		compiler: shader.NewCompiler(shader.DefaultOptions()),
		logger:   logging.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// watchDirs resolves the deduplicated set of parent directories to
// watch. Paths sharing a parent yield a single subscription.
func watchDirs(paths ...string) []string {
	dirs := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))

	for _, path := range paths {
		dir := filepath.Dir(path)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	return dirs
}

// createWatch installs the directory watches, performs the initial
// reload synchronously on the calling goroutine, and only then starts
// the session goroutine, so no event can slip between setup and start.
func createWatch(l loader, paths []string, debounce time.Duration, results chan Result, cfg *settings) (*Watch, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewFileWatchError("WATCHER_CREATE", "creating filesystem watcher").
			WithCause(err)
	}

	for _, dir := range watchDirs(paths...) {
		if err := fsWatcher.Add(dir); err != nil {
			_ = fsWatcher.Close()

			return nil, errors.NewFileWatchError("WATCH_DIR", "watching shader directory").
				WithPath(dir).
				WithCause(err)
		}
	}

	// Initial reload, before the background goroutine exists. Its
	// result is therefore always the first one on the channel.
	l.reload()

	s := &session{
		watcher:   fsWatcher,
		debouncer: newDebouncer(debounce),
		loader:    l,
		logger:    cfg.logger.WithComponent("watch"),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.start()

	return &Watch{results: results, session: s}, nil
}

// session owns the background goroutine and the native watcher. Only
// the session goroutine consumes the event stream; only construction
// and stop touch the watcher's lifecycle.
type session struct {
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	loader    loader
	logger    logging.Logger

	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *session) start() {
	s.debouncer.start(s.watcher, s.shutdown)
	go s.run()
}

// run is the session loop. Every iteration re-checks the shutdown
// signal before and during the event wait; the one-second timeout
// bounds shutdown latency when no events arrive.
func (s *session) run() {
	defer close(s.done)

	timer := time.NewTimer(pollTimeout)
	defer timer.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(pollTimeout)

		select {
		case <-s.shutdown:
			return
		case ev := <-s.debouncer.events:
			if ev.op.Has(fsnotify.Create) || ev.op.Has(fsnotify.Write) {
				s.logger.Debug(context.Background(), "shader changed, reloading", "path", ev.path, "op", ev.op.String())
				s.loader.reload()
			}
		case <-timer.C:
		}
	}
}

func (s *session) stop() {
	s.stopOnce.Do(func() {
		close(s.shutdown)
		<-s.done
		// Release the watcher only after the goroutine has exited, so
		// no event delivery races its destruction.
		if err := s.watcher.Close(); err != nil {
			s.logger.Warn(context.Background(), err, "closing filesystem watcher")
		}
	})
}
