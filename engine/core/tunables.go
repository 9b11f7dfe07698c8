package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

// TunablesWatcher re-reads the [tunables] table whenever the config file
// changes. The newest value waits in a one slot channel, so a reader on
// the render thread only ever sees the latest edit.
type TunablesWatcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	updates  chan Tunables
	done     chan struct{}
	wg       sync.WaitGroup
}

func WatchTunables(path string) (*TunablesWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, editors replace files instead of writing them.
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}
	w := &TunablesWatcher{
		path:     abs,
		fsnotify: fsWatch,
		updates:  make(chan Tunables, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

func (w *TunablesWatcher) start() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || !e.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			t, err := readTunables(w.path)
			if err != nil {
				LogWarn("ignoring tunables update: %s", err)
				continue
			}
			w.publish(t)
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			LogError("tunables watcher: %s", err)
		}
	}
}

func (w *TunablesWatcher) publish(t Tunables) {
	select {
	case <-w.updates:
	default:
	}
	w.updates <- t
}

// Poll returns the latest unread tunables without blocking.
func (w *TunablesWatcher) Poll() (Tunables, bool) {
	select {
	case t := <-w.updates:
		return t, true
	default:
		return Tunables{}, false
	}
}

func (w *TunablesWatcher) Close() error {
	close(w.done)
	err := w.fsnotify.Close()
	w.wg.Wait()
	return err
}

func readTunables(path string) (Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, err
	}
	doc := struct {
		Tunables Tunables `toml:"tunables"`
	}{Tunables: DefaultConfig().Tunables}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Tunables{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Tunables.Sanitize(), nil
}
