package descriptor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/modrun/pkg/log"
	"github.com/bft-labs/modrun/pkg/module"
)

// DefaultDebounceDelay is how long the watcher waits for changes to settle.
const DefaultDebounceDelay = 100 * time.Millisecond

// ChangeFunc receives the descriptor set read after a change. err carries
// decode errors of individual files; descs holds the files that decoded.
type ChangeFunc func(ctx context.Context, descs []module.Description, err error)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the settle delay.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDelay = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger log.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher observes a descriptor directory and calls onChange with the full
// descriptor set whenever descriptor files are created, written, renamed or
// removed. Bursts of events are coalesced and onChange calls never overlap.
type Watcher struct {
	dir           *Dir
	onChange      ChangeFunc
	debounceDelay time.Duration
	logger        log.Logger

	mu       sync.Mutex
	debounce *time.Timer
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// reloads tracks scheduled and running callbacks; runMu serializes them.
	reloads sync.WaitGroup
	runMu   sync.Mutex
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir *Dir, onChange ChangeFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:           dir,
		onChange:      onChange,
		debounceDelay: DefaultDebounceDelay,
		logger:        log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns once the directory is being watched.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir.Path()); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.dir.Path(), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.logger.Info("descriptor watcher started", log.String("dir", w.dir.Path()))

	w.wg.Add(1)
	go w.watchLoop(watchCtx, fw)
	return nil
}

// Stop ends watching and waits for the loop and any running onChange call
// to return. A pending debounced reload is dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.debounce != nil && w.debounce.Stop() {
		w.reloads.Done()
	}
	w.debounce = nil
	w.mu.Unlock()

	w.reloads.Wait()
}

func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !Supported(event.Name) || event.Op&relevant == 0 {
				continue
			}
			w.logger.Debug("descriptor changed",
				log.String("file", event.Name),
				log.String("op", event.Op.String()),
			)
			w.scheduleReload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("descriptor watcher error", log.Err(err))
		}
	}
}

// scheduleReload restarts the debounce timer.
func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil && w.debounce.Stop() {
		w.reloads.Done()
	}
	w.reloads.Add(1)
	w.debounce = time.AfterFunc(w.debounceDelay, func() {
		defer w.reloads.Done()
		w.runMu.Lock()
		defer w.runMu.Unlock()

		if ctx.Err() != nil {
			return
		}
		descs, err := w.dir.Descriptions()
		if err != nil {
			w.logger.Warn("descriptor reload had errors", log.Err(err))
		}
		w.onChange(ctx, descs, err)
	})
}
