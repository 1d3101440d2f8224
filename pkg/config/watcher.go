// Copyright 2025 Takhin Data, Inc.

package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a single config file and reloads it on change, debouncing
// rapid successive writes the way editors tend to produce them (a temp-file
// write followed by a rename). Adapted from the retrieval pack's directory
// file watcher, narrowed to one path and one debounce timer since a config
// file has no subtree to walk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan *Config
	errors  chan error
	stop    chan struct{}
}

// NewWatcher starts watching path for changes. Reloads are pushed to
// Changes() as they're detected; Load errors are pushed to Errors()
// instead, leaving the last-good config in effect.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		changes: make(chan *Config, 1),
		errors:  make(chan error, 1),
		stop:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Changes delivers a freshly reloaded Config after each debounced write.
func (w *Watcher) Changes() <-chan *Config { return w.changes }

// Errors delivers reload failures; the caller keeps running on its
// last-known-good config when one arrives.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	var debounce *time.Timer
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			select {
			case w.errors <- err:
			default:
			}
			return
		}
		select {
		case w.changes <- cfg:
		default:
		}
	}

	for {
		select {
		case <-w.stop:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}
