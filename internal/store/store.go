// Package store implements the Collection Store (spec.md §4.F): the
// owner of every live collection's in-memory mapping, copy-on-write
// snapshots, and the read/write coordination that lets many callers use
// the database concurrently from a single process.
//
// The write path — lock, build a new mapping by copying the old one plus
// the change, rewrite the journal, then publish the new mapping — is
// grounded on osakka-entitydb's storage/binary/entity_repository.go
// (Update/Delete/RebuildIndex all take the shard lock, mutate a decoded
// copy, then persist before releasing). The per-collection index shape —
// an id->doc map paired with an ordered id slice — follows the
// other_examples jsonldb Table's byID map[ID]int plus backing slice, a
// closer structural match to a string-identifier document store than
// entitydb's own tag-based secondary index.
package store

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"docbase/internal/cipher"
	"docbase/internal/codec"
	"docbase/internal/dberrors"
	"docbase/internal/descriptor"
	"docbase/internal/journal"
	"docbase/internal/query"
	"docbase/internal/schema"
)

// Snapshot is an immutable view of one collection's mapping, safe to
// read without any lock: the Store never mutates a value once it has
// been published in a Snapshot (spec.md §3, §9 "copy-on-write").
type Snapshot struct {
	CollectionName string
	SchemaVersion  string
	ReadOnly       bool
	Docs           []codec.Doc // in collection iteration order
}

// ByID returns the document with the given id in this snapshot, or
// (nil, false).
func (s Snapshot) ByID(desc *descriptor.Descriptor, id string) (codec.Doc, bool) {
	for _, d := range s.Docs {
		docID, err := desc.GetID(d)
		if err == nil && docID == id {
			return d, true
		}
	}
	return nil, false
}

// collection is the mutable state behind one Snapshot. All mutation
// happens under mu; readers take an RLock only long enough to build a
// fresh slice of the current document references — the documents
// themselves are never mutated in place, so sharing them is safe without
// copying them.
type collection struct {
	mu       sync.RWMutex
	desc     *descriptor.Descriptor
	journal  *journal.Journal
	order    []string
	byID     map[string]codec.Doc
	version  string
	readOnly bool
}

func newCollection(desc *descriptor.Descriptor, j *journal.Journal) *collection {
	return &collection{
		desc:    desc,
		journal: j,
		byID:    make(map[string]codec.Doc),
		version: desc.SchemaVersion,
	}
}

func (c *collection) snapshotLocked() Snapshot {
	docs := make([]codec.Doc, len(c.order))
	for i, id := range c.order {
		docs[i] = c.byID[id]
	}
	return Snapshot{
		CollectionName: c.desc.CollectionName,
		SchemaVersion:  c.version,
		ReadOnly:       c.readOnly,
		Docs:           docs,
	}
}

func (c *collection) snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Store owns every live collection for one database directory.
type Store struct {
	dir      string
	registry *descriptor.Registry
	ciph     *cipher.Cipher // nil if no secret fields are ever used

	mu          sync.RWMutex
	collections map[string]*collection
}

// New returns a Store rooted at dir. ciph may be nil; it is only
// consulted for collections whose descriptor declares secret fields.
func New(dir string, registry *descriptor.Registry, ciph *cipher.Cipher) *Store {
	return &Store{
		dir:         dir,
		registry:    registry,
		ciph:        ciph,
		collections: make(map[string]*collection),
	}
}

// Dir returns the database directory this store persists under.
func (s *Store) Dir() string { return s.dir }

func (s *Store) get(name string) (*collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	return c, ok
}

// Create allocates an empty in-memory mapping for name and writes a
// fresh header-only file. Fails with CollectionExists if the file
// already exists and is non-empty (spec.md §4.F).
func (s *Store) Create(name string, desc *descriptor.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return dberrors.Wrap(name, dberrors.ErrCollectionExists)
	}
	j := journal.New(s.dir, name)
	j.CleanupStaleTemp()
	if err := j.CreateEmpty(desc.SchemaVersion); err != nil {
		return err
	}
	s.collections[name] = newCollection(desc, j)
	return nil
}

// Drop removes the in-memory mapping and deletes the file. Fails with
// CollectionNotFound if neither exists.
func (s *Store) Drop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		j := journal.New(s.dir, name)
		if !j.Exists() {
			return dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
		}
		return j.Remove()
	}
	if err := c.journal.Remove(); err != nil {
		return err
	}
	delete(s.collections, name)
	return nil
}

// Load reads name's file from disk with the append-tolerant loader, so a
// trailing partial line left by a crash mid-append is dropped (creating
// the in-memory entry if this is the collection's first touch), compares
// its schema version against desc via the schema guard, decrypts secret
// fields, and installs the resulting mapping. Corresponds to spec.md
// §4.F's load and §3's "collections ... created implicitly on first read
// against an existing file" lifecycle note.
func (s *Store) Load(name string, desc *descriptor.Descriptor) error {
	return s.load(name, desc, true)
}

// Reload re-reads name's file using the append-tolerant loader, used by
// the watcher dispatch path (spec.md §4.E) so a reload racing an external
// writer's in-flight append doesn't spuriously fail the whole collection
// over one trailing partial line.
//
// If name is not yet tracked — the watcher fires watcher.Created for any
// "*.json" file under the database directory, including one the store
// has never opened (spec.md §4.E, §6 onFileCreated) — its descriptor is
// resolved from the registry and the collection is opened for the first
// time via the same tolerant loader, rather than failing with
// CollectionNotFound.
func (s *Store) Reload(name string) error {
	c, ok := s.get(name)
	if ok {
		return s.load(name, c.desc, true)
	}
	desc, err := s.registry.DescribeByName(name)
	if err != nil {
		return err
	}
	return s.load(name, desc, true)
}

// EnsureOpen installs name's mapping if it isn't already live: loading it
// from an existing file, or creating a fresh header-only file if none
// exists. This is the "collections are created by explicit request or
// implicitly on first read against an existing file" lifecycle (spec.md
// §3), shared by every facade entry point before it touches a collection.
func (s *Store) EnsureOpen(name string, desc *descriptor.Descriptor) error {
	if _, ok := s.get(name); ok {
		return nil
	}
	j := journal.New(s.dir, name)
	if j.Exists() {
		return s.Load(name, desc)
	}
	return s.Create(name, desc)
}

// getOrCreate returns name's collection entry, creating an empty one
// (with its journal handle and any stale rewrite temp file cleaned up)
// if this is the collection's first touch. Callers still need c.mu to
// safely read or mutate the entry's contents.
func (s *Store) getOrCreate(name string, desc *descriptor.Descriptor) *collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		j := journal.New(s.dir, name)
		j.CleanupStaleTemp()
		c = newCollection(desc, j)
		s.collections[name] = c
	}
	return c
}

// installLoaded decrypts and indexes a freshly loaded document set into
// c, under desc. Callers must hold c.mu.
func (s *Store) installLoaded(c *collection, desc *descriptor.Descriptor, loaded *journal.Loaded) error {
	if s.ciph == nil && len(desc.SecretPaths) > 0 {
		return fmt.Errorf("%w: collection %q declares secret fields but no cipher secret is configured", dberrors.ErrCipher, desc.CollectionName)
	}
	order := make([]string, 0, len(loaded.Docs))
	byID := make(map[string]codec.Doc, len(loaded.Docs))
	for _, ld := range loaded.Docs {
		doc := ld.Doc
		if s.ciph != nil && len(desc.SecretPaths) > 0 {
			if err := s.ciph.DecryptFields(doc, desc.SecretPaths); err != nil {
				return dberrors.WrapLine(desc.CollectionName, ld.Line, err)
			}
		}
		id, err := desc.GetID(doc)
		if err != nil {
			return dberrors.WrapLine(desc.CollectionName, ld.Line, err)
		}
		if _, dup := byID[id]; dup {
			return dberrors.WrapLine(desc.CollectionName, ld.Line, dberrors.ErrDuplicateID)
		}
		byID[id] = doc
		order = append(order, id)
	}

	c.desc = desc
	c.order = order
	c.byID = byID
	c.version = loaded.SchemaVersion
	c.readOnly = schema.Check(loaded.SchemaVersion, desc.SchemaVersion)
	return nil
}

func (s *Store) load(name string, desc *descriptor.Descriptor, tolerant bool) error {
	c := s.getOrCreate(name, desc)
	c.mu.Lock()
	defer c.mu.Unlock()

	var loaded *journal.Loaded
	var err error
	if tolerant {
		loaded, err = c.journal.LoadTolerant()
	} else {
		loaded, err = c.journal.Load()
	}
	if err != nil {
		return err
	}
	return s.installLoaded(c, desc, loaded)
}

// ReplaceFile atomically swaps name's collection file for the contents
// at srcPath — via the same temp-file-then-rename sequence Rewrite uses
// — and reloads the in-memory mapping from the new file, all while
// holding the collection's exclusive write lock for the whole
// read-modify-rename sequence. This is what Restore's non-merge path
// uses instead of touching the journal file directly, so a concurrent
// Insert/Save/Upsert/Remove/FindAndModify on the same collection (all of
// which take c.mu around their own rewrite) can never interleave with
// the swap (spec.md §5 "writers hold it exclusively for the duration of
// rewrite").
func (s *Store) ReplaceFile(name string, desc *descriptor.Descriptor, srcPath string) error {
	c := s.getOrCreate(name, desc)
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return dberrors.IO(name, err)
	}
	tmp := c.journal.Path() + ".restore.tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return dberrors.IO(name, err)
	}
	if err := os.Rename(tmp, c.journal.Path()); err != nil {
		os.Remove(tmp)
		return dberrors.IO(name, err)
	}

	loaded, err := c.journal.Load()
	if err != nil {
		return err
	}
	return s.installLoaded(c, desc, loaded)
}

// Snapshot returns collection name's current mapping. Each call builds a
// fresh slice of the current document references, so its cost is linear
// in the collection's document count; the documents themselves are not
// copied.
func (s *Store) Snapshot(name string) (Snapshot, error) {
	c, ok := s.get(name)
	if !ok {
		return Snapshot{}, dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	return c.snapshot(), nil
}

// WithReadLock runs fn while holding name's collection under its shared
// read lock, without ever copying or decoding documents — callers that
// need a byte-consistent view of the underlying file (e.g. a backup
// copying the file directly) use this instead of Snapshot, which hands
// out decoded, decrypted documents.
func (s *Store) WithReadLock(name string, fn func() error) error {
	c, ok := s.get(name)
	if !ok {
		return dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn()
}

// Descriptor returns the descriptor a live collection was opened with.
func (s *Store) Descriptor(name string) (*descriptor.Descriptor, error) {
	c, ok := s.get(name)
	if !ok {
		return nil, dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	return c.desc, nil
}

// Names returns every collection currently open in this store.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for n := range s.collections {
		names = append(names, n)
	}
	return names
}

// Insert adds docs to name, all-or-nothing: every id must be new and
// every document must carry a valid id, or none are applied. On success
// the mapping is rebuilt copy-on-write and the journal persisted — by
// append when exactly one document is inserted, by full rewrite for any
// other batch size (spec.md §4.D, §9 Open Question #2: append is used
// only for this single-insert fast path).
func (s *Store) Insert(name string, docs []codec.Doc) error {
	c, ok := s.get(name)
	if !ok {
		return dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readOnly {
		return dberrors.Wrap(name, dberrors.ErrCollectionReadOnly)
	}

	ids := make([]string, len(docs))
	prepared := make([]codec.Doc, len(docs)) // plaintext; what the live mapping keeps
	seen := make(map[string]bool, len(docs))
	for i, d := range docs {
		nd := codec.Clone(d)
		id, err := c.desc.GetID(nd)
		if err != nil {
			return dberrors.Wrap(name, err)
		}
		if _, exists := c.byID[id]; exists {
			return dberrors.Wrap(name, fmt.Errorf("%w: %s", dberrors.ErrDuplicateID, id))
		}
		if seen[id] {
			return dberrors.Wrap(name, fmt.Errorf("%w: %s", dberrors.ErrDuplicateID, id))
		}
		seen[id] = true
		ids[i] = id
		prepared[i] = nd
	}

	newOrder := append(append([]string{}, c.order...), ids...)
	if len(prepared) == 1 {
		// Pure single-document insert: the append fast path (spec.md
		// §4.D, §9 Open Question #2). A crash mid-write leaves a
		// recoverable trailing partial line; every prior line is
		// untouched. The live map keeps the plaintext copy; only the
		// line actually written to disk is encrypted.
		wire, err := s.encryptCopy(c.desc, prepared[0])
		if err != nil {
			return dberrors.Wrap(name, err)
		}
		if err := c.journal.Append(wire); err != nil {
			return dberrors.Wrap(name, err)
		}
	} else {
		if err := s.rewriteLocked(c, newOrder, mergedByID(c.byID, ids, prepared)); err != nil {
			return dberrors.Wrap(name, err)
		}
	}

	for i, id := range ids {
		c.byID[id] = prepared[i]
	}
	c.order = newOrder
	return nil
}

// mergedByID returns a fresh map containing existing plus the given
// id/doc pairs, used to pass a complete post-insert mapping to
// rewriteLocked without mutating the live map before the journal write
// has succeeded.
func mergedByID(existing map[string]codec.Doc, ids []string, docs []codec.Doc) map[string]codec.Doc {
	out := make(map[string]codec.Doc, len(existing)+len(ids))
	for k, v := range existing {
		out[k] = v
	}
	for i, id := range ids {
		out[id] = docs[i]
	}
	return out
}

// Save replaces an existing document. Fails with DocumentNotFound if id
// is absent.
func (s *Store) Save(name string, doc codec.Doc) error {
	c, ok := s.get(name)
	if !ok {
		return dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readOnly {
		return dberrors.Wrap(name, dberrors.ErrCollectionReadOnly)
	}

	nd := codec.Clone(doc)
	id, err := c.desc.GetID(nd)
	if err != nil {
		return dberrors.Wrap(name, err)
	}
	if _, exists := c.byID[id]; !exists {
		return dberrors.Wrap(name, fmt.Errorf("%w: %s", dberrors.ErrDocumentNotFound, id))
	}

	// nd stays plaintext in the live map; rewriteLocked encrypts secret
	// fields on every document, touched or not, as it serializes the
	// journal (spec.md I4: no cleartext reaches disk or a listener).
	newByID := mergedByID(c.byID, []string{id}, []codec.Doc{nd})
	if err := s.rewriteLocked(c, c.order, newByID); err != nil {
		return dberrors.Wrap(name, err)
	}
	c.byID[id] = nd
	return nil
}

// Upsert inserts-or-replaces each document by id, never failing on
// pre-existence. Persisted via one rewrite covering the whole batch.
func (s *Store) Upsert(name string, docs []codec.Doc) error {
	c, ok := s.get(name)
	if !ok {
		return dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readOnly {
		return dberrors.Wrap(name, dberrors.ErrCollectionReadOnly)
	}

	newByID := make(map[string]codec.Doc, len(c.byID))
	for k, v := range c.byID {
		newByID[k] = v
	}
	newOrder := append([]string{}, c.order...)

	for _, d := range docs {
		nd := codec.Clone(d)
		id, err := c.desc.GetID(nd)
		if err != nil {
			return dberrors.Wrap(name, err)
		}
		// nd stays plaintext here too; rewriteLocked is the single place
		// that encrypts secret fields before they reach the journal.
		if _, exists := newByID[id]; !exists {
			newOrder = append(newOrder, id)
		}
		newByID[id] = nd
	}

	if err := s.rewriteLocked(c, newOrder, newByID); err != nil {
		return dberrors.Wrap(name, err)
	}
	c.byID = newByID
	c.order = newOrder
	return nil
}

// Remove deletes every document named by ids. Atomic: if any id is
// missing, none are removed.
func (s *Store) Remove(name string, ids []string) error {
	c, ok := s.get(name)
	if !ok {
		return dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readOnly {
		return dberrors.Wrap(name, dberrors.ErrCollectionReadOnly)
	}

	for _, id := range ids {
		if _, exists := c.byID[id]; !exists {
			return dberrors.Wrap(name, fmt.Errorf("%w: %s", dberrors.ErrDocumentNotFound, id))
		}
	}
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	newByID := make(map[string]codec.Doc, len(c.byID))
	newOrder := make([]string, 0, len(c.order))
	for _, id := range c.order {
		if remove[id] {
			continue
		}
		newByID[id] = c.byID[id]
		newOrder = append(newOrder, id)
	}

	if err := s.rewriteLocked(c, newOrder, newByID); err != nil {
		return dberrors.Wrap(name, err)
	}
	c.byID = newByID
	c.order = newOrder
	return nil
}

// UpdateOpKind identifies one step of a findAndModify update.
type UpdateOpKind int

const (
	UpdateSet UpdateOpKind = iota
	UpdateUnset
	UpdateIncrement
)

// UpdateOp is one field-path-keyed step of an Update, applied in
// declared order (spec.md §6 "Update interface").
type UpdateOp struct {
	Kind  UpdateOpKind
	Path  string
	Value any     // UpdateSet
	Delta float64 // UpdateIncrement
}

// Update is the ordered list of field operations findAndModify applies
// to every matched document.
type Update struct {
	Ops []UpdateOp
}

func applyUpdate(doc codec.Doc, u Update) error {
	for _, op := range u.Ops {
		switch op.Kind {
		case UpdateSet:
			setDotPath(doc, op.Path, op.Value)
		case UpdateUnset:
			deleteDotPath(doc, op.Path)
		case UpdateIncrement:
			cur, _ := lookupDotPath(doc, op.Path)
			f, ok := asNumber(cur)
			if !ok {
				f = 0
			}
			setDotPath(doc, op.Path, f+op.Delta)
		default:
			return fmt.Errorf("unknown update op kind %d", op.Kind)
		}
	}
	return nil
}

// FindAndModify evaluates q against name's current snapshot, applies u
// to every matched document in iteration order, and persists the result
// via one rewrite. Returns the count of modified documents.
func (s *Store) FindAndModify(name string, q *query.Query, u Update) (int, error) {
	c, ok := s.get(name)
	if !ok {
		return 0, dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readOnly {
		return 0, dberrors.Wrap(name, dberrors.ErrCollectionReadOnly)
	}

	newByID := make(map[string]codec.Doc, len(c.byID))
	for k, v := range c.byID {
		newByID[k] = v
	}

	count := 0
	for _, id := range c.order {
		doc := c.byID[id]
		ok, err := q.Matches(doc)
		if err != nil {
			return 0, dberrors.Wrap(name, err)
		}
		if !ok {
			continue
		}
		nd := codec.Clone(doc)
		if err := applyUpdate(nd, u); err != nil {
			return 0, dberrors.Wrap(name, err)
		}
		newByID[id] = nd
		count++
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.rewriteLocked(c, c.order, newByID); err != nil {
		return 0, dberrors.Wrap(name, err)
	}
	c.byID = newByID
	return count, nil
}

// FindAndRemove evaluates q and removes every matching document,
// returning the removed count.
func (s *Store) FindAndRemove(name string, q *query.Query) (int, error) {
	c, ok := s.get(name)
	if !ok {
		return 0, dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readOnly {
		return 0, dberrors.Wrap(name, dberrors.ErrCollectionReadOnly)
	}

	newByID := make(map[string]codec.Doc, len(c.byID))
	newOrder := make([]string, 0, len(c.order))
	count := 0
	for _, id := range c.order {
		doc := c.byID[id]
		ok, err := q.Matches(doc)
		if err != nil {
			return 0, dberrors.Wrap(name, err)
		}
		if ok {
			count++
			continue
		}
		newByID[id] = doc
		newOrder = append(newOrder, id)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.rewriteLocked(c, newOrder, newByID); err != nil {
		return 0, dberrors.Wrap(name, err)
	}
	c.byID = newByID
	c.order = newOrder
	return count, nil
}

// ApplyCollectionSchemaUpdate runs a schema.Update against every document
// in name, rewrites the file under the descriptor's new schema version,
// and clears the read-only flag on success. On any per-document failure
// the collection is left entirely unchanged (spec.md §4.G).
func (s *Store) ApplyCollectionSchemaUpdate(name string, desc *descriptor.Descriptor, ops []schema.Op) error {
	c, ok := s.get(name)
	if !ok {
		return dberrors.Wrap(name, dberrors.ErrCollectionNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := make([]codec.Doc, len(c.order))
	for i, id := range c.order {
		docs[i] = c.byID[id]
	}
	migrated, err := schema.ApplyOps(docs, ops)
	if err != nil {
		return dberrors.Wrap(name, err)
	}

	newByID := make(map[string]codec.Doc, len(migrated))
	for i, id := range c.order {
		newByID[id] = migrated[i]
	}

	c.desc = desc
	if err := s.rewriteVersionLocked(c, c.order, newByID, desc.SchemaVersion); err != nil {
		return dberrors.Wrap(name, err)
	}
	c.byID = newByID
	c.version = desc.SchemaVersion
	c.readOnly = false
	return nil
}

func (s *Store) rewriteLocked(c *collection, order []string, byID map[string]codec.Doc) error {
	return s.rewriteVersionLocked(c, order, byID, c.version)
}

// rewriteVersionLocked serializes byID (always the plaintext mapping the
// store hands to readers) into the journal. Every document — not only
// the one the triggering mutation touched — is re-encrypted from its
// live plaintext copy here, since a full rewrite replaces the whole
// file; encrypting only the changed document would leave every other
// secret field's ciphertext stale against whatever desc.SecretPaths
// currently names (relevant after a schema rename of a secret field).
func (s *Store) rewriteVersionLocked(c *collection, order []string, byID map[string]codec.Doc, version string) error {
	docs := make([]codec.Doc, len(order))
	for i, id := range order {
		wire, err := s.encryptCopy(c.desc, byID[id])
		if err != nil {
			return err
		}
		docs[i] = wire
	}
	return c.journal.Rewrite(version, docs)
}

// encryptCopy returns a clone of doc with desc's secret fields encrypted,
// leaving doc itself untouched. If desc declares no secret fields, the
// clone is returned as-is; if it declares some and no cipher was
// configured, ErrCipher is returned.
func (s *Store) encryptCopy(desc *descriptor.Descriptor, doc codec.Doc) (codec.Doc, error) {
	wire := codec.Clone(doc)
	if len(desc.SecretPaths) == 0 {
		return wire, nil
	}
	if s.ciph == nil {
		return nil, fmt.Errorf("%w: collection %q declares secret fields but no cipher secret is configured", dberrors.ErrCipher, desc.CollectionName)
	}
	if err := s.ciph.EncryptFields(wire, desc.SecretPaths); err != nil {
		return nil, err
	}
	return wire, nil
}

// --- dot-path helpers shared by Update application ---

func lookupDotPath(doc codec.Doc, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setDotPath(doc codec.Doc, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
}

func deleteDotPath(doc codec.Doc, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for i, p := range parts {
		if i == len(parts)-1 {
			delete(cur, p)
			return
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		if n, ok := v.(interface{ Float64() (float64, error) }); ok {
			f, err := n.Float64()
			return f, err == nil
		}
		return 0, false
	}
}
