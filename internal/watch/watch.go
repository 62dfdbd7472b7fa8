// Package watch reports changes to model files on disk.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/logger"
)

// DefaultSettle is how long a watched file must stay quiet before a change
// is reported. Exporters usually write a model in several chunks.
const DefaultSettle = 250 * time.Millisecond

// Watcher reports changes to a fixed set of files. It watches their parent
// directories so files replaced by rename are still seen.
type Watcher struct {
	fsw     *fsnotify.Watcher
	files   map[string]bool
	settle  time.Duration
	changed chan []string
	done    chan struct{}
	wg      sync.WaitGroup
	log     *zap.Logger
}

// New starts watching paths.
func New(paths []string, settle time.Duration) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fsw:     fsw,
		files:   make(map[string]bool, len(paths)),
		settle:  settle,
		changed: make(chan []string, 1),
		done:    make(chan struct{}),
		log:     logger.Named("watcher"),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Changed delivers the set of changed files once they have settled. Changes
// that arrive while a previous batch is unread are merged into it.
func (w *Watcher) Changed() <-chan []string {
	return w.changed
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(w.settle)
	timer.Stop()
	pending := make(map[string]bool)

	for {
		select {
		case <-w.done:
			timer.Stop()
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.files[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("model file changed", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			pending[filepath.Clean(ev.Name)] = true
			timer.Reset(w.settle)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.flush(pending)
			pending = make(map[string]bool)
		}
	}
}

func (w *Watcher) flush(pending map[string]bool) {
	// Merge with a batch the consumer has not picked up yet.
	select {
	case prev := <-w.changed:
		for _, p := range prev {
			pending[p] = true
		}
	default:
	}

	batch := make([]string, 0, len(pending))
	for p := range pending {
		batch = append(batch, p)
	}
	w.changed <- batch
}
