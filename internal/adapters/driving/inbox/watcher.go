// Package inbox imports files dropped into a directory as new items and
// runs the media filter over them.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/mediafilter/internal/logger"
)

// Arrival is a file that appeared or changed in the inbox.
type Arrival struct {
	// Path is the absolute file path.
	Path string

	// Name is the file name.
	Name string
}

// Watcher reports files written to an inbox directory. Subdirectories and
// hidden files are ignored.
type Watcher struct {
	dir string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string) *Watcher {
	return &Watcher{dir: dir}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Existing lists the files already present in the inbox, ordered by name.
func (w *Watcher) Existing() ([]Arrival, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	var arrivals []Arrival
	for _, e := range entries {
		if !e.Type().IsRegular() || isHidden(e.Name()) {
			continue
		}
		arrivals = append(arrivals, Arrival{Path: filepath.Join(w.dir, e.Name()), Name: e.Name()})
	}
	sort.Slice(arrivals, func(i, j int) bool { return arrivals[i].Name < arrivals[j].Name })
	return arrivals, nil
}

// Watch starts watching the inbox. The returned channel is closed when ctx
// is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Arrival, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, errors.New("inbox watcher is closed")
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return nil, fmt.Errorf("inbox path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox path error: %s is not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = fsw

	arrivals := make(chan Arrival)
	go w.loop(ctx, fsw, arrivals)
	return arrivals, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Arrival) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			arrival := w.handleFsEvent(event)
			if arrival == nil {
				continue
			}
			select {
			case out <- *arrival:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("inbox: watch error: %v", err)
		}
	}
}

// handleFsEvent turns a create or write of a regular, visible file into an
// arrival. Other events return nil.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Arrival {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return nil
	}

	name := filepath.Base(event.Name)
	if isHidden(name) {
		return nil
	}

	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	return &Arrival{Path: event.Name, Name: name}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
