package docbase

import (
	"fmt"

	"docbase/internal/codec"
	"docbase/internal/dberrors"
	"docbase/internal/descriptor"
)

// Every CRUD operation below offers two entry points (spec.md §4.I): a
// generic one keyed by entity type T, and one keyed by an explicit
// collection name operating on the generic codec.Doc representation.
// Both resolve to the same Descriptor and end in the same Store call;
// the type-keyed path additionally converts to/from T via
// codec.FromTyped/ToTyped, the generic-object<->JSON boundary spec.md §1
// places outside the core's scope.

// Create ensures the collection backing T exists, creating an empty
// file if it doesn't. Fails with CollectionExists if the file is already
// present and non-empty.
func Create[T any](db *DB) error {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return err
	}
	return db.store.Create(desc.CollectionName, desc)
}

// CreateCollection is Create's collection-name-keyed counterpart.
func CreateCollection(db *DB, name string) error {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return err
	}
	return db.store.Create(name, desc)
}

// Drop removes a collection's in-memory mapping and deletes its file.
func Drop(db *DB, name string) error {
	return db.store.Drop(name)
}

// checkCollision implements spec.md §9 Open Question #1: when a caller
// supplies an explicit collection name that differs from the one the
// value's own descriptor resolves to, docbase rejects rather than
// coerces.
func checkCollision(desc *descriptor.Descriptor, name string) error {
	if name != "" && desc.CollectionName != name {
		return fmt.Errorf("%w: value resolves to collection %q but %q was requested", dberrors.ErrBadDescriptor, desc.CollectionName, name)
	}
	return nil
}

// InsertAs behaves like Insert, but additionally requires T's own
// descriptor to resolve to name, rejecting with BadDescriptor if it
// doesn't. This is docbase's resolution of spec.md §9 Open Question #1
// ("the source allows both insert(object) and insert(object, name); it
// is unclear whether the core should reject or coerce on mismatch") —
// the spec's own recommendation, reject, is what's implemented.
func InsertAs[T any](db *DB, name string, docs ...*T) error {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return err
	}
	if err := checkCollision(desc, name); err != nil {
		return err
	}
	generic, err := toDocs(docs)
	if err != nil {
		return err
	}
	return db.insert(desc, generic)
}

// Insert adds docs to the collection backing T, all-or-nothing
// (spec.md §4.F). The collection is opened implicitly if this is its
// first use.
func Insert[T any](db *DB, docs ...*T) error {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return err
	}
	generic, err := toDocs(docs)
	if err != nil {
		return err
	}
	return db.insert(desc, generic)
}

// InsertCollection is Insert's collection-name-keyed counterpart,
// operating directly on the generic document representation.
func InsertCollection(db *DB, name string, docs ...codec.Doc) error {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return err
	}
	return db.insert(desc, docs)
}

func (db *DB) insert(desc *descriptor.Descriptor, docs []codec.Doc) error {
	if err := db.rejectIfDispatching(desc.CollectionName); err != nil {
		return err
	}
	if err := db.store.EnsureOpen(desc.CollectionName, desc); err != nil {
		return err
	}
	return db.store.Insert(desc.CollectionName, docs)
}

// Save replaces an existing document of T by id. Fails with
// DocumentNotFound if no document with that id exists yet.
func Save[T any](db *DB, doc *T) error {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return err
	}
	generic, err := codec.FromTyped(doc)
	if err != nil {
		return err
	}
	return db.save(desc, generic)
}

// SaveCollection is Save's collection-name-keyed counterpart.
func SaveCollection(db *DB, name string, doc codec.Doc) error {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return err
	}
	return db.save(desc, doc)
}

func (db *DB) save(desc *descriptor.Descriptor, doc codec.Doc) error {
	if err := db.rejectIfDispatching(desc.CollectionName); err != nil {
		return err
	}
	if err := db.store.EnsureOpen(desc.CollectionName, desc); err != nil {
		return err
	}
	return db.store.Save(desc.CollectionName, doc)
}

// Upsert inserts-or-replaces each document of T by id.
func Upsert[T any](db *DB, docs ...*T) error {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return err
	}
	generic, err := toDocs(docs)
	if err != nil {
		return err
	}
	return db.upsert(desc, generic)
}

// UpsertCollection is Upsert's collection-name-keyed counterpart.
func UpsertCollection(db *DB, name string, docs ...codec.Doc) error {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return err
	}
	return db.upsert(desc, docs)
}

func (db *DB) upsert(desc *descriptor.Descriptor, docs []codec.Doc) error {
	if err := db.rejectIfDispatching(desc.CollectionName); err != nil {
		return err
	}
	if err := db.store.EnsureOpen(desc.CollectionName, desc); err != nil {
		return err
	}
	return db.store.Upsert(desc.CollectionName, docs)
}

// Remove deletes every document named by ids from the collection
// backing T. Fails with DocumentNotFound if any id is missing; no
// partial removal occurs.
func Remove[T any](db *DB, ids ...string) error {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return err
	}
	return db.remove(desc, ids)
}

// RemoveCollection is Remove's collection-name-keyed counterpart.
func RemoveCollection(db *DB, name string, ids ...string) error {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return err
	}
	return db.remove(desc, ids)
}

func (db *DB) remove(desc *descriptor.Descriptor, ids []string) error {
	if err := db.rejectIfDispatching(desc.CollectionName); err != nil {
		return err
	}
	if err := db.store.EnsureOpen(desc.CollectionName, desc); err != nil {
		return err
	}
	return db.store.Remove(desc.CollectionName, ids)
}

// FindByID returns the document of T with the given id, or
// (nil, false, nil) if none exists.
func FindByID[T any](db *DB, id string) (*T, bool, error) {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return nil, false, err
	}
	doc, ok, err := db.findByID(desc, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	var out T
	if err := codec.ToTyped(doc, &out); err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

// FindByIDCollection is FindByID's collection-name-keyed counterpart.
func FindByIDCollection(db *DB, name, id string) (codec.Doc, bool, error) {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return nil, false, err
	}
	return db.findByID(desc, id)
}

func (db *DB) findByID(desc *descriptor.Descriptor, id string) (codec.Doc, bool, error) {
	if err := db.store.EnsureOpen(desc.CollectionName, desc); err != nil {
		return nil, false, err
	}
	snap, err := db.store.Snapshot(desc.CollectionName)
	if err != nil {
		return nil, false, err
	}
	doc, ok := snap.ByID(desc, id)
	if !ok {
		return nil, false, nil
	}
	return codec.Clone(doc), true, nil
}

// IsReadOnly reports whether the named collection is currently read-only
// (its file's declared schema version diverges from its descriptor's).
func IsReadOnly(db *DB, name string) (bool, error) {
	snap, err := db.store.Snapshot(name)
	if err != nil {
		return false, err
	}
	return snap.ReadOnly, nil
}

// toDocs converts a slice of typed entity pointers to their generic
// representation via each one's own JSON mapping.
func toDocs[T any](docs []*T) ([]codec.Doc, error) {
	out := make([]codec.Doc, len(docs))
	for i, d := range docs {
		generic, err := codec.FromTyped(d)
		if err != nil {
			return nil, err
		}
		out[i] = generic
	}
	return out, nil
}
