// Package docbase is an embedded, file-backed document database.
//
// Applications declare entity types (struct fields tagged docbase:"id"
// and, optionally, docbase:"secret") or build a Descriptor by hand, open
// a DB against a directory, and perform CRUD, ad-hoc queries, schema
// migrations, backup/restore, and change-notification subscription
// against it. Each collection is persisted as a single append-structured
// newline-delimited JSON file; the package never requires an external
// database server.
//
// DB wires the Entity Descriptor Registry (internal/descriptor), the
// Collection Store (internal/store), the File Watcher
// (internal/watcher), and the Cipher (internal/cipher) the way
// osakka-entitydb's src/main.go wires its config/logger/repository/API
// layers at startup — minus the HTTP server half, which sits outside
// this package's scope.
package docbase

import (
	"context"
	"fmt"
	"os"
	"sync"

	"docbase/internal/cipher"
	"docbase/internal/config"
	"docbase/internal/dberrors"
	"docbase/internal/descriptor"
	"docbase/internal/logger"
	"docbase/internal/store"
	"docbase/internal/watcher"
)

// DB is an open handle on one database directory. A DB is safe for
// concurrent use by multiple goroutines; its internal locking follows
// spec.md §5's per-collection readers-writer discipline.
type DB struct {
	cfg      *config.Config
	registry *descriptor.Registry
	cipher   *cipher.Cipher
	store    *store.Store
	watcher  *watcher.Watcher

	cancelWatch context.CancelFunc
	dispatchWG  sync.WaitGroup

	listeners listenerSet

	closeOnce sync.Once
}

// Open wires a DB against cfg.DBFilesLocation using registry for entity
// descriptor resolution. Every entity type the caller uses must be
// registered in it (descriptor.Register / descriptor.RegisterNamed),
// before Open or later through Registry() — docbase has no reflective
// package scanner to discover them on its own (spec.md Design Notes, DESIGN.md Open
// Question #3).
//
// If cfg is nil, config.Default() is used. If cfg.CipherSecret is empty,
// any attempt to use a descriptor with secret fields fails with
// ErrCipher; set it whenever any registered descriptor declares secret
// fields.
func Open(cfg *config.Config, registry *descriptor.Registry) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = descriptor.NewRegistry()
	}

	var ciph *cipher.Cipher
	if cfg.CipherSecret != "" {
		c, err := cipher.New(cfg.CipherSecret)
		if err != nil {
			return nil, err
		}
		ciph = c
	}

	if err := os.MkdirAll(cfg.DBFilesLocation, 0o755); err != nil {
		return nil, dberrors.IO("", fmt.Errorf("opening database directory: %w", err))
	}

	db := &DB{
		cfg:      cfg,
		registry: registry,
		cipher:   ciph,
		store:    store.New(cfg.DBFilesLocation, registry, ciph),
	}

	if !cfg.DisableWatcher {
		w, err := watcher.New(cfg.DBFilesLocation, cfg.WatchDebounce)
		if err != nil {
			return nil, fmt.Errorf("docbase: starting file watcher: %w", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		db.watcher = w
		db.cancelWatch = cancel
		w.Start(ctx)
		db.dispatchWG.Add(1)
		go db.dispatchLoop()
	}

	return db, nil
}

// Registry returns the entity descriptor registry this DB was opened
// with, so callers can register additional types after Open.
func (db *DB) Registry() *descriptor.Registry { return db.registry }

// Dir returns the database directory this DB persists under.
func (db *DB) Dir() string { return db.store.Dir() }

// resolveDescriptor resolves the descriptor for a type-keyed call.
func resolveDescriptor[T any](db *DB) (*descriptor.Descriptor, error) {
	return descriptor.DescribeByType[T](db.registry)
}

// resolveNamed resolves the descriptor for a collection-name-keyed call.
func (db *DB) resolveNamed(name string) (*descriptor.Descriptor, error) {
	return db.registry.DescribeByName(name)
}

// Shutdown stops the file watcher, drains any pending reload, and
// releases every file handle the DB holds. Safe to call more than once.
func (db *DB) Shutdown() error {
	db.closeOnce.Do(func() {
		if db.watcher != nil {
			if db.cancelWatch != nil {
				db.cancelWatch()
			}
			db.watcher.Stop()
			db.dispatchWG.Wait()
		}
	})
	return nil
}
