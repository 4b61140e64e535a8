package vfs

import "github.com/fsnotify/fsnotify"

// ChangeEvent reports that a file backing a mmap'd FILE region changed on
// disk outside of the VM core's own writeback path. Nothing in this model
// re-reads pages automatically; a caller that cares (a diagnostics tool, a
// coherence test) drains Events and decides what to do.
type ChangeEvent struct {
	Path string
}

// Watcher notifies on external modification of file-backed region sources.
// It exists for diagnostics and testing, not for the fault path: the core
// invariant is that page content comes from the first fault's read, not
// from whatever the file holds at TLB-load time.
type Watcher struct {
	w   *fsnotify.Watcher
	evC chan ChangeEvent
	erC chan error
}

// NewWatcher starts a watcher with no paths registered.
func NewWatcher() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	watch := &Watcher{w: w, evC: make(chan ChangeEvent, 32), erC: make(chan error, 1)}
	go watch.loop()
	return watch, nil
}

func (watch *Watcher) loop() {
	for {
		select {
		case ev, ok := <-watch.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				watch.evC <- ChangeEvent{Path: ev.Name}
			}
		case err, ok := <-watch.w.Errors:
			if !ok {
				return
			}
			watch.erC <- err
		}
	}
}

// Watch registers a file-backed region's source file for change notices.
func (watch *Watcher) Watch(path string) error { return watch.w.Add(path) }

// Events yields external-modification notices.
func (watch *Watcher) Events() <-chan ChangeEvent { return watch.evC }

// Errors yields watcher-internal errors.
func (watch *Watcher) Errors() <-chan error { return watch.erC }

// Close stops the watcher.
func (watch *Watcher) Close() error { return watch.w.Close() }
