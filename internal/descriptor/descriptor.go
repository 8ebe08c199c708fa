// Package descriptor implements the Entity Descriptor Registry (spec.md
// §4.A): the mapping from an application's entity type, or a collection
// name, to the persistence metadata the rest of docbase is driven by —
// collection name, schema version, identifier path, and secret field
// paths.
//
// Go has no runtime equivalent of the reflective annotation scanning the
// original system used to discover entity types at startup (spec.md's
// Design Notes, option "a"); docbase instead requires explicit
// registration (option "b"). Registration typically happens at program
// startup, but the registry is not frozen: types can still be registered
// after a DB is opened. The registry is guarded by a read/write mutex, so
// lookups take a shared lock and registration takes an exclusive one.
package descriptor

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"docbase/internal/dberrors"
)

// Descriptor is the immutable metadata record for one entity type /
// collection. The store, codec, cipher, and query engine are all
// descriptor-driven and never inspect an application's concrete type.
type Descriptor struct {
	CollectionName string
	SchemaVersion  string
	IDPath         string
	SecretPaths    []string

	entityType reflect.Type
	newFunc    func() any
}

// New constructs a zero-value instance of the registered entity type,
// suitable for json.Unmarshal into on a typed read path.
func (d *Descriptor) New() any {
	return d.newFunc()
}

// GetID extracts the document identifier from its generic JSON
// representation by walking IDPath. Returns dberrors.ErrBadDescriptor if
// the path is absent and dberrors.ErrInvalidDocument if the id is an
// empty string; any other value is converted to its string form.
func (d *Descriptor) GetID(doc map[string]any) (string, error) {
	v, ok := lookupPath(doc, d.IDPath)
	if !ok {
		return "", fmt.Errorf("%w: document missing id field %q", dberrors.ErrBadDescriptor, d.IDPath)
	}
	return stringifyID(v)
}

// SetID writes the document identifier at IDPath, creating intermediate
// maps as needed for a dotted path.
func (d *Descriptor) SetID(doc map[string]any, id string) {
	setPath(doc, d.IDPath, id)
}

// stringifyID converts a decoded JSON scalar to its stable string form.
// Identifiers are documented as "string, or any value with a stable
// string form" (spec.md §3).
func stringifyID(v any) (string, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", fmt.Errorf("%w: empty id", dberrors.ErrInvalidDocument)
		}
		return t, nil
	case json.Number:
		// codec.DecodeLine uses json.Number for every decoded numeric
		// value (spec.md P2), so this is the path a numeric id read
		// back from a collection file actually takes.
		return t.String(), nil
	case float64:
		return trimFloat(t), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

// lookupPath walks a dot-separated path through nested maps.
func lookupPath(doc map[string]any, path string) (any, bool) {
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

// setPath writes a value at a dot-separated path, creating intermediate
// maps as needed.
func setPath(doc map[string]any, path string, value any) {
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

// Registry holds every registered Descriptor, keyed by both collection
// name and entity type. Safe for concurrent lookups and registrations.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Descriptor
	byType map[reflect.Type]*Descriptor
}

// NewRegistry returns an empty registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Descriptor),
		byType: make(map[reflect.Type]*Descriptor),
	}
}

// tagOptions parses the `docbase:"id"`, `docbase:"secret"`, and
// `docbase:"id,path=foo.bar"` struct tag forms.
type tagOptions struct {
	kind string // "id", "secret", or ""
	path string
}

func parseTag(tag string) tagOptions {
	if tag == "" || tag == "-" {
		return tagOptions{}
	}
	parts := strings.Split(tag, ",")
	opts := tagOptions{kind: parts[0]}
	for _, p := range parts[1:] {
		if strings.HasPrefix(p, "path=") {
			opts.path = strings.TrimPrefix(p, "path=")
		}
	}
	return opts
}

// jsonFieldName returns the field's effective JSON key: the json tag name
// if present, else the field's Go name.
func jsonFieldName(f reflect.StructField) string {
	jsonTag := f.Tag.Get("json")
	if jsonTag == "" || jsonTag == "-" {
		return f.Name
	}
	name := strings.Split(jsonTag, ",")[0]
	if name == "" {
		return f.Name
	}
	return name
}

// Register discovers a Descriptor for entity type T by scanning its
// struct tags for `docbase:"id"` and `docbase:"secret"` markers, and
// registers it under collectionName. Fails with BadDescriptor if T has
// no id field, if collectionName is already registered, or if a
// secret-tagged field is not string-typed.
func Register[T any](reg *Registry, collectionName, schemaVersion string) (*Descriptor, error) {
	var zero T
	t := reflect.TypeOf(zero)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a struct type", dberrors.ErrBadDescriptor, zero)
	}

	desc := &Descriptor{
		CollectionName: collectionName,
		SchemaVersion:  schemaVersion,
		entityType:     t,
		newFunc:        func() any { return reflect.New(t).Interface() },
	}

	if err := scanFields(t, desc); err != nil {
		return nil, err
	}
	if desc.IDPath == "" {
		return nil, fmt.Errorf("%w: %s has no field tagged docbase:\"id\"", dberrors.ErrBadDescriptor, t.Name())
	}

	return desc, reg.add(desc, t)
}

// RegisterNamed registers a pre-built Descriptor directly, bypassing
// struct-tag discovery. Used for callers that build up id/secret paths
// programmatically instead of via tags (e.g. the CLI, which only ever
// sees generic map[string]any documents and has no static Go type to
// reflect over).
func RegisterNamed(reg *Registry, desc *Descriptor) error {
	if desc.IDPath == "" {
		return fmt.Errorf("%w: descriptor for %q has no id path", dberrors.ErrBadDescriptor, desc.CollectionName)
	}
	if desc.newFunc == nil {
		desc.newFunc = func() any { return map[string]any{} }
	}
	return reg.add(desc, nil)
}

func scanFields(t reflect.Type, desc *Descriptor) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		opts := parseTag(f.Tag.Get("docbase"))
		switch opts.kind {
		case "id":
			if desc.IDPath != "" {
				return fmt.Errorf("%w: %s declares more than one id field", dberrors.ErrBadDescriptor, t.Name())
			}
			if opts.path != "" {
				desc.IDPath = opts.path
			} else {
				desc.IDPath = jsonFieldName(f)
			}
		case "secret":
			if f.Type.Kind() != reflect.String {
				return fmt.Errorf("%w: %s.%s is marked secret but is not a string field", dberrors.ErrBadDescriptor, t.Name(), f.Name)
			}
			path := opts.path
			if path == "" {
				path = jsonFieldName(f)
			}
			desc.SecretPaths = append(desc.SecretPaths, path)
		}
	}
	return nil
}

func (r *Registry) add(desc *Descriptor, t reflect.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[desc.CollectionName]; ok && existing != desc {
		return fmt.Errorf("%w: collection name %q already registered", dberrors.ErrBadDescriptor, desc.CollectionName)
	}
	r.byName[desc.CollectionName] = desc
	if t != nil {
		r.byType[t] = desc
	}
	return nil
}

// DescribeByName returns the Descriptor registered under a collection
// name.
func (r *Registry) DescribeByName(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dberrors.ErrCollectionNotFound, name)
	}
	return d, nil
}

// DescribeByValue returns the Descriptor registered for the type of v
// (v may be a struct, a pointer to struct, or a pointer to slice of
// either, in which case the element type is used).
func (r *Registry) DescribeByValue(v any) (*Descriptor, error) {
	t := reflect.TypeOf(v)
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("%w: no descriptor registered for type %v", dberrors.ErrBadDescriptor, t)
	}
	return d, nil
}

// DescribeByType returns the Descriptor registered for Go type T,
// letting the facade's type-keyed entry points (e.g. Insert[T]) resolve
// a collection without requiring a live value of T in hand.
func DescribeByType[T any](r *Registry) (*Descriptor, error) {
	var zero T
	return r.DescribeByValue(&zero)
}

// Names returns every registered collection name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}
