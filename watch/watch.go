// Package watch runs a callback for every CSV file created or modified in a
// directory. Rapid successive writes to the same file are debounced into a
// single call.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
)

// DefaultDebounce is the quiet period before a changed file is handled
const DefaultDebounce = 500 * time.Millisecond

// Handler is called with the path of a changed file
type Handler func(ctx context.Context, path string) error

// Watcher watches one directory for CSV changes
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	running sync.WaitGroup
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets the quiet period per file
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the watcher's logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New starts watching dir. Call Run to process events.
func New(dir string, handler Handler, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch handler is nil")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch directory %s", dir)
	}

	w := &Watcher{
		dir:      dir,
		watcher:  fw,
		handler:  handler,
		debounce: DefaultDebounce,
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logger.OrNop(w.logger)
	return w, nil
}

// Run processes events until ctx is done, then waits for handlers already
// started and closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	w.logger.Infow("watching for CSV files", "dir", w.dir, "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isDataFile(event.Name) {
				continue
			}
			w.logger.Debugw("change detected", "file", event.Name, "op", event.Op.String())
			w.schedule(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("watcher error", logger.FieldError, err)
		}
	}
}

// schedule debounces rapid changes to one file
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.running.Add(1)
		w.mu.Unlock()

		defer w.running.Done()
		if err := w.handler(ctx, path); err != nil {
			w.logger.Errorw("handling changed file failed", "file", path, logger.FieldError, err)
		}
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.running.Wait()
	if err := w.watcher.Close(); err != nil {
		w.logger.Warnw("closing watcher", logger.FieldError, err)
	}
}

// isDataFile accepts *.csv and skips hidden and editor temp files
func isDataFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".csv")
}
