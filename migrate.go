package docbase

import (
	"fmt"

	"docbase/internal/dberrors"
	"docbase/internal/descriptor"
	"docbase/internal/schema"
)

// SchemaUpdate is the ordered, declarative transformation a schema
// migration applies to every document in a collection (spec.md §6
// "CollectionSchemaUpdate interface"). Load one from YAML via
// LoadSchemaUpdate. The element type of its Ops field is unexported, so
// code outside package schema can set TargetVersion but cannot list
// operations by hand.
type SchemaUpdate = schema.Update

// LoadSchemaUpdate reads a declarative schema update from a YAML file
// (spec.md §9 supplemented feature: CollectionSchemaUpdate loaded from
// YAML).
func LoadSchemaUpdate(path string) (*SchemaUpdate, error) {
	return schema.LoadUpdateFile(path)
}

// ApplyCollectionSchemaUpdate runs update against every document in the
// collection backing T, rewrites the file under the registered
// descriptor's schema version, and clears the read-only flag on success.
// On any per-document violation the collection is left entirely
// unchanged (spec.md §4.G).
func ApplyCollectionSchemaUpdate[T any](db *DB, update *SchemaUpdate) error {
	desc, err := resolveDescriptor[T](db)
	if err != nil {
		return err
	}
	return db.applySchemaUpdate(desc, update)
}

// ApplyCollectionSchemaUpdateNamed is ApplyCollectionSchemaUpdate's
// collection-name-keyed counterpart.
func ApplyCollectionSchemaUpdateNamed(db *DB, name string, update *SchemaUpdate) error {
	desc, err := db.resolveNamed(name)
	if err != nil {
		return err
	}
	return db.applySchemaUpdate(desc, update)
}

func (db *DB) applySchemaUpdate(desc *descriptor.Descriptor, update *SchemaUpdate) error {
	if err := db.rejectIfDispatching(desc.CollectionName); err != nil {
		return err
	}
	if update.TargetVersion != "" && update.TargetVersion != desc.SchemaVersion {
		return fmt.Errorf("%w: update declares target version %q but the registered descriptor for %q is %q",
			dberrors.ErrSchemaMigrationFailed, update.TargetVersion, desc.CollectionName, desc.SchemaVersion)
	}
	if err := db.store.EnsureOpen(desc.CollectionName, desc); err != nil {
		return err
	}
	ops, err := schema.ResolveOps(update.Ops)
	if err != nil {
		return err
	}
	return db.store.ApplyCollectionSchemaUpdate(desc.CollectionName, desc, ops)
}
