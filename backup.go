package docbase

import (
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"docbase/internal/codec"
	"docbase/internal/dberrors"
	"docbase/internal/journal"
)

// Backup snapshots every open collection and rewrites each into a fresh
// file tree at path. Secret fields remain encrypted — their ciphertext
// bytes are copied directly from the live journal file rather than
// round-tripped through decrypt/encrypt, so no key material beyond what
// is already on disk is ever embedded in the backup (spec.md §4.I).
//
// Collections are processed concurrently via errgroup. Goroutines are
// started in lexicographic name order, but each holds only its own
// collection's read section, so no two locks are held at once (spec.md §5:
// "writes across collections are not ordered; a backup sees each
// collection at a consistent per-collection point but not a globally
// consistent moment").
func (db *DB) Backup(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return dberrors.IO("", err)
	}
	names := db.store.Names()
	sort.Strings(names)

	g := new(errgroup.Group)
	for _, name := range names {
		name := name
		g.Go(func() error { return db.backupOne(path, name) })
	}
	return g.Wait()
}

func (db *DB) backupOne(path, name string) error {
	var data []byte
	err := db.store.WithReadLock(name, func() error {
		raw, readErr := os.ReadFile(journal.New(db.store.Dir(), name).Path())
		data = raw
		return readErr
	})
	if err != nil {
		return dberrors.IO(name, err)
	}

	dst := journal.New(path, name)
	tmp := dst.Path() + ".backup.tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return dberrors.IO(name, err)
	}
	if err := os.Rename(tmp, dst.Path()); err != nil {
		os.Remove(tmp)
		return dberrors.IO(name, err)
	}
	return nil
}

// Restore loads collection files from path. If merge is false, each
// collection named by a file under path entirely replaces the live
// collection of the same name. If merge is true, every document in each
// backup file is upserted by id into the corresponding live collection;
// on an id collision the restored document wins (spec.md §4.I).
//
// Every collection found under path must already have a descriptor
// registered under its filename stem; an unregistered collection fails
// the whole Restore with CollectionNotFound rather than silently skipping
// it. Collections processed concurrently with the failing one are not
// rolled back.
func (db *DB) Restore(path string, merge bool) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return dberrors.IO("", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)

	g := new(errgroup.Group)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if merge {
				return db.restoreMerge(path, name)
			}
			return db.restoreReplace(path, name)
		})
	}
	return g.Wait()
}

func (db *DB) restoreReplace(path, name string) error {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return err
	}
	if err := db.rejectIfDispatching(name); err != nil {
		return err
	}

	// ReplaceFile holds the collection's own write lock across the read,
	// temp-file write, and rename, so this can never interleave with a
	// concurrent Insert/Save/Upsert/Remove on the same collection
	// (spec.md §5, §9: cross-collection operations like restore still
	// need to serialize against ordinary per-collection mutations).
	return db.store.ReplaceFile(name, desc, journal.New(path, name).Path())
}

func (db *DB) restoreMerge(path, name string) error {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return err
	}
	if err := db.rejectIfDispatching(name); err != nil {
		return err
	}

	src := journal.New(path, name)
	loaded, err := src.Load()
	if err != nil {
		return err
	}

	docs := make([]codec.Doc, len(loaded.Docs))
	for i, ld := range loaded.Docs {
		d := ld.Doc
		if db.cipher != nil && len(desc.SecretPaths) > 0 {
			if err := db.cipher.DecryptFields(d, desc.SecretPaths); err != nil {
				return dberrors.WrapLine(name, ld.Line, err)
			}
		}
		docs[i] = d
	}

	if err := db.store.EnsureOpen(name, desc); err != nil {
		return err
	}
	return db.store.Upsert(name, docs)
}
