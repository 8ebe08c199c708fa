package docbase

import (
	"sync"

	"docbase/internal/dberrors"
	"docbase/internal/logger"
	"docbase/internal/watcher"
)

// listenerSet holds the change-listener callbacks registered via
// OnCollectionFileModified/Added/Deleted (spec.md §6) and the
// per-collection "currently dispatching" flag that backs
// ErrReentrantMutation detection.
type listenerSet struct {
	mu       sync.RWMutex
	modified []func(string)
	added    []func(string)
	deleted  []func(string)

	dispatchMu  sync.Mutex
	dispatching map[string]bool
}

// OnCollectionFileModified registers fn to be called after a reload
// triggered by an external edit to an already-open collection's file.
func (db *DB) OnCollectionFileModified(fn func(name string)) {
	db.listeners.mu.Lock()
	defer db.listeners.mu.Unlock()
	db.listeners.modified = append(db.listeners.modified, fn)
}

// OnCollectionFileAdded registers fn to be called when the watcher
// reports a create event for a collection file (a new file, or one
// renamed into place).
func (db *DB) OnCollectionFileAdded(fn func(name string)) {
	db.listeners.mu.Lock()
	defer db.listeners.mu.Unlock()
	db.listeners.added = append(db.listeners.added, fn)
}

// OnCollectionFileDeleted registers fn to be called when a collection's
// file is removed externally.
func (db *DB) OnCollectionFileDeleted(fn func(name string)) {
	db.listeners.mu.Lock()
	defer db.listeners.mu.Unlock()
	db.listeners.deleted = append(db.listeners.deleted, fn)
}

// isDispatching reports whether name's listeners are currently being
// invoked on this goroutine's call chain, used to reject a mutating call
// made from within a listener on the same collection (spec.md §6:
// "Subscribers may not call mutating store operations from within the
// callback on the same collection; doing so yields ReentrantMutation").
func (db *DB) isDispatching(name string) bool {
	db.listeners.dispatchMu.Lock()
	defer db.listeners.dispatchMu.Unlock()
	return db.listeners.dispatching[name]
}

func (db *DB) setDispatching(name string, v bool) {
	db.listeners.dispatchMu.Lock()
	defer db.listeners.dispatchMu.Unlock()
	if db.listeners.dispatching == nil {
		db.listeners.dispatching = make(map[string]bool)
	}
	if v {
		db.listeners.dispatching[name] = true
	} else {
		delete(db.listeners.dispatching, name)
	}
}

func (db *DB) rejectIfDispatching(name string) error {
	if db.isDispatching(name) {
		return dberrors.Wrap(name, dberrors.ErrReentrantMutation)
	}
	return nil
}

// dispatchLoop drains the watcher's debounced event stream and, for each
// event, reloads the affected collection (spec.md §4.E/§4.F) before
// notifying registered listeners. It never holds a store lock while
// calling into listener code (spec.md §4.E, §9).
func (db *DB) dispatchLoop() {
	defer db.dispatchWG.Done()
	log := logger.WithComponent("facade")

	for ev := range db.watcher.Events() {
		switch ev.Kind {
		case watcher.Created, watcher.Modified:
			if err := db.store.Reload(ev.Collection); err != nil {
				// Watcher errors are logged and swallowed (spec.md §7):
				// a malformed external edit never propagates to callers
				// of unrelated operations.
				log.Warn().Err(err).Str("collection", ev.Collection).Msg("reload after external edit failed")
				continue
			}
		case watcher.Deleted:
			if err := db.store.Drop(ev.Collection); err != nil {
				log.Debug().Err(err).Str("collection", ev.Collection).Msg("drop after external delete")
			}
		}

		db.setDispatching(ev.Collection, true)
		db.notify(ev)
		db.setDispatching(ev.Collection, false)
	}
}

func (db *DB) notify(ev watcher.Event) {
	var fns []func(string)
	db.listeners.mu.RLock()
	switch ev.Kind {
	case watcher.Modified:
		fns = append(fns, db.listeners.modified...)
	case watcher.Created:
		fns = append(fns, db.listeners.added...)
	case watcher.Deleted:
		fns = append(fns, db.listeners.deleted...)
	}
	db.listeners.mu.RUnlock()

	for _, fn := range fns {
		fn(ev.Collection)
	}
}
