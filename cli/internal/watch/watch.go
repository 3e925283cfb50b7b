// Package watch re-runs a callback with the contents of a SQL file each time
// the file is written.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/satishbabariya/sqlsrv-go/internal/debug"
)

// DefaultDebounce coalesces bursts of write events from editors.
const DefaultDebounce = 500 * time.Millisecond

// Callback receives the current file contents.
type Callback func(text string) error

// Watcher watches a file for changes
type Watcher struct {
	fs       afero.Fs
	file     string
	callback Callback
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher on file. The directory containing the file is
// watched so editors that replace the file on save are followed.
func NewWatcher(fs afero.Fs, file string, callback Callback) (*Watcher, error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	return &Watcher{
		fs:       fs,
		file:     absPath,
		callback: callback,
		debounce: DefaultDebounce,
		watcher:  watcher,
	}, nil
}

// SetDebounce changes the quiet period before the callback runs.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

func (w *Watcher) fire() error {
	data, err := afero.ReadFile(w.fs, w.file)
	if err != nil {
		return err
	}
	return w.callback(string(data))
}

// Run calls the callback once, then again after every write, until ctx is
// done. Callback errors after the first call are logged and watching
// continues.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.fire(); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if path, err := filepath.Abs(event.Name); err == nil && path == w.file {
				timer.Reset(w.debounce)
				pending = timer.C
			}

		case <-pending:
			pending = nil
			if err := w.fire(); err != nil {
				debug.Warn("watch callback failed", "file", w.file, "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			debug.Warn("watch error", "file", w.file, "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}
