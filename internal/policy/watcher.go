// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the policy document when it changes on disk and hands each
// distinct new version to a callback. A document that fails to decode is
// skipped, never repaired, so a half-saved edit cannot wipe the allow-list.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(*Policy)

	mu    sync.Mutex
	timer *time.Timer
	last  *Policy

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewWatcher creates a watcher for store. Call Start to begin watching.
func NewWatcher(store *Store, debounce time.Duration, onChange func(*Policy)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create policy watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{
		store:    store,
		watcher:  fw,
		debounce: debounce,
		onChange: onChange,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start watches the directory holding the document. Editors and
// AtomicWriteFile replace the file by rename, so the file itself cannot be
// watched.
func (w *Watcher) Start() error {
	if p, err := w.store.Read(); err == nil {
		w.last = p
	}

	if err := w.watcher.Add(filepath.Dir(w.store.Path())); err != nil {
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}

	go w.processEvents()
	return nil
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.watcher.Close()
		<-w.done

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}

func (w *Watcher) processEvents() {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("POLICY_WATCH_PANIC: %v", r)
		}
	}()

	target := filepath.Clean(w.store.Path())

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("POLICY_WATCH_ERROR: %v", err)
		}
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.stop:
		return
	default:
	}

	p, err := w.store.Read()
	if err != nil {
		log.Printf("POLICY_RELOAD_SKIPPED: %v", err)
		return
	}

	w.mu.Lock()
	if p.Equal(w.last) {
		w.mu.Unlock()
		return
	}
	w.last = p
	w.mu.Unlock()

	log.Printf("POLICY_RELOADED: mode=%s programs=%d", p.Mode(), len(p.AllowedPrograms))
	if w.onChange != nil {
		w.onChange(p.Clone())
	}
}
