// Package dirwatch turns filesystem notifications on the watched directory
// into debounced sweep triggers.
package dirwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces bursts such as a browser writing a download.
const DefaultDebounce = 500 * time.Millisecond

// Config for directory watching
type Config struct {
	Directory string
	Debounce  time.Duration
}

// Watcher emits a trigger after files in the directory are created or
// modified. Triggers are coalesced: at most one is pending at a time.
type Watcher struct {
	cfg     Config
	log     *logrus.Logger
	watcher *fsnotify.Watcher
	trigger chan struct{}
}

// New creates a Watcher on cfg.Directory. Subdirectories are not watched.
func New(cfg Config, log *logrus.Logger) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(cfg.Directory); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Directory, err)
	}
	return &Watcher{
		cfg:     cfg,
		log:     log,
		watcher: watcher,
		trigger: make(chan struct{}, 1),
	}, nil
}

// C returns the trigger channel.
func (w *Watcher) C() <-chan struct{} {
	return w.trigger
}

// Start processes notifications until ctx is cancelled, then closes the
// underlying watcher.
func (w *Watcher) Start(ctx context.Context) {
	w.log.WithField("directory", w.cfg.Directory).Info("Starting directory watcher")
	defer w.watcher.Close()

	debounce := time.NewTimer(w.cfg.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			w.log.Info("Directory watcher stopping")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.log.WithFields(logrus.Fields{"path": event.Name, "op": event.Op.String()}).Debug("Directory change")
			debounce.Reset(w.cfg.Debounce)

		case <-debounce.C:
			select {
			case w.trigger <- struct{}{}:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Error("Watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Chmod) != 0
}

// Close stops the underlying watcher without waiting for Start to return.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
