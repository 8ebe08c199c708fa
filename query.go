package docbase

import (
	"docbase/internal/codec"
	"docbase/internal/descriptor"
	"docbase/internal/query"
	"docbase/internal/store"
)

// UpdateOp is one field-path-keyed step of a findAndModify Update,
// applied in declared order (spec.md §6 "Update interface").
type UpdateOp = store.UpdateOp

// Update is the ordered list of field operations FindAndModify applies
// to every matched document.
type Update = store.Update

// Re-exported update-op kinds so callers never need to import
// internal/store directly to build an Update.
const (
	UpdateSet       = store.UpdateSet
	UpdateUnset     = store.UpdateUnset
	UpdateIncrement = store.UpdateIncrement
)

// Set returns an UpdateOp that sets path to value.
func Set(path string, value any) UpdateOp {
	return UpdateOp{Kind: UpdateSet, Path: path, Value: value}
}

// Unset returns an UpdateOp that removes path.
func Unset(path string) UpdateOp {
	return UpdateOp{Kind: UpdateUnset, Path: path}
}

// Increment returns an UpdateOp that adds delta to the numeric value at
// path (treating an absent or non-numeric value as zero).
func Increment(path string, delta float64) UpdateOp {
	return UpdateOp{Kind: UpdateIncrement, Path: path, Delta: delta}
}

// Find evaluates an XPath-like query (spec.md §4.H) against the
// collection backing T and returns every matching document, in
// collection iteration order.
func Find[T any](db *DB, queryStr string) ([]*T, error) {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return nil, err
	}
	docs, err := db.find(desc, queryStr)
	if err != nil {
		return nil, err
	}
	return toTyped[T](docs)
}

// FindCollection is Find's collection-name-keyed counterpart.
func FindCollection(db *DB, name, queryStr string) ([]codec.Doc, error) {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return nil, err
	}
	return db.find(desc, queryStr)
}

func (db *DB) find(desc *descriptor.Descriptor, queryStr string) ([]codec.Doc, error) {
	q, err := query.Parse(queryStr)
	if err != nil {
		return nil, err
	}
	if err := db.store.EnsureOpen(desc.CollectionName, desc); err != nil {
		return nil, err
	}
	snap, err := db.store.Snapshot(desc.CollectionName)
	if err != nil {
		return nil, err
	}
	return query.Find(q, snap.Docs)
}

// FindOne returns the first document of T matching queryStr in
// iteration order, or (nil, false, nil) if none match.
func FindOne[T any](db *DB, queryStr string) (*T, bool, error) {
	docs, err := Find[T](db, queryStr)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

// FindOneCollection is FindOne's collection-name-keyed counterpart.
func FindOneCollection(db *DB, name, queryStr string) (codec.Doc, bool, error) {
	docs, err := FindCollection(db, name, queryStr)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

// FindAndModify evaluates queryStr against the collection backing T,
// applies update to every matched document in iteration order, and
// persists the result in one rewrite. Returns the count modified.
func FindAndModify[T any](db *DB, queryStr string, update Update) (int, error) {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return 0, err
	}
	return db.findAndModify(desc, queryStr, update)
}

// FindAndModifyCollection is FindAndModify's collection-name-keyed
// counterpart.
func FindAndModifyCollection(db *DB, name, queryStr string, update Update) (int, error) {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return 0, err
	}
	return db.findAndModify(desc, queryStr, update)
}

func (db *DB) findAndModify(desc *descriptor.Descriptor, queryStr string, update Update) (int, error) {
	if err := db.rejectIfDispatching(desc.CollectionName); err != nil {
		return 0, err
	}
	q, err := query.Parse(queryStr)
	if err != nil {
		return 0, err
	}
	if err := db.store.EnsureOpen(desc.CollectionName, desc); err != nil {
		return 0, err
	}
	return db.store.FindAndModify(desc.CollectionName, q, update)
}

// FindAndRemove evaluates queryStr against the collection backing T and
// removes every match, returning the count removed.
func FindAndRemove[T any](db *DB, queryStr string) (int, error) {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return 0, err
	}
	return db.findAndRemove(desc, queryStr)
}

// FindAndRemoveCollection is FindAndRemove's collection-name-keyed
// counterpart.
func FindAndRemoveCollection(db *DB, name, queryStr string) (int, error) {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return 0, err
	}
	return db.findAndRemove(desc, queryStr)
}

func (db *DB) findAndRemove(desc *descriptor.Descriptor, queryStr string) (int, error) {
	if err := db.rejectIfDispatching(desc.CollectionName); err != nil {
		return 0, err
	}
	q, err := query.Parse(queryStr)
	if err != nil {
		return 0, err
	}
	if err := db.store.EnsureOpen(desc.CollectionName, desc); err != nil {
		return 0, err
	}
	return db.store.FindAndRemove(desc.CollectionName, q)
}

func toTyped[T any](docs []codec.Doc) ([]*T, error) {
	out := make([]*T, len(docs))
	for i, d := range docs {
		var v T
		if err := codec.ToTyped(d, &v); err != nil {
			return nil, err
		}
		out[i] = &v
	}
	return out, nil
}
