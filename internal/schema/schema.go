// Package schema implements the Schema Guard (spec.md §4.G): the
// versioning policy that marks a collection read-only when its file's
// declared schema version diverges from its descriptor's, and the
// declarative CollectionSchemaUpdate machinery that reconciles the two.
//
// There is no corpus repo that implements document schema migration
// directly — osakka-entitydb validates a single hardcoded schema version
// per entity type rather than migrating between them — so this package's
// shape is original to docbase; it follows entitydb's broader philosophy
// of versioned, config-driven defaults (config/config.go) and its
// entity_lifecycle.go state-machine style for the read-only/writable
// transition.
package schema

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"docbase/internal/codec"
	"docbase/internal/dberrors"
)

// Check compares a collection file's declared schema version against its
// descriptor's, per spec.md §4.G: equal versions mean the collection is
// writable; any other value means read-only until a schema update runs.
func Check(fileVersion, descriptorVersion string) (readOnly bool) {
	return fileVersion != descriptorVersion
}

// OpKind identifies one step of a CollectionSchemaUpdate.
type OpKind int

const (
	OpRename OpKind = iota
	OpAdd
	OpRemove
	OpRetype
)

// Op is one declarative transformation applied to every document in a
// collection during a schema update.
type Op struct {
	Kind    OpKind
	Path    string // rename: old path; add/remove: path; retype: path
	NewPath string // rename only
	Default any    // add only
	// Converter is looked up by name in the package-level Converters
	// table, since a function value can't round-trip through YAML (spec.md §9
	// keeps docbase's configuration data-driven; naming a converter is
	// how a declarative update file still reaches a retype).
	Converter string
}

// Update is an ordered list of Ops plus the schema version the
// collection should carry once every Op has applied successfully.
type Update struct {
	TargetVersion string `yaml:"targetVersion"`
	Ops           []yamlOp `yaml:"ops"`
}

// yamlOp is the YAML-friendly encoding of an Op; LoadUpdateFile decodes
// into this shape and converts to Op via resolve.
type yamlOp struct {
	Rename *renameSpec `yaml:"rename,omitempty"`
	Add    *addSpec    `yaml:"add,omitempty"`
	Remove string      `yaml:"remove,omitempty"`
	Retype *retypeSpec `yaml:"retype,omitempty"`
}

type renameSpec struct {
	Old string `yaml:"old"`
	New string `yaml:"new"`
}

type addSpec struct {
	Path    string `yaml:"path"`
	Default any    `yaml:"default"`
}

type retypeSpec struct {
	Path      string `yaml:"path"`
	Converter string `yaml:"converter"`
}

func (op yamlOp) resolve() (Op, error) {
	switch {
	case op.Rename != nil:
		return Op{Kind: OpRename, Path: op.Rename.Old, NewPath: op.Rename.New}, nil
	case op.Add != nil:
		return Op{Kind: OpAdd, Path: op.Add.Path, Default: op.Add.Default}, nil
	case op.Remove != "":
		return Op{Kind: OpRemove, Path: op.Remove}, nil
	case op.Retype != nil:
		return Op{Kind: OpRetype, Path: op.Retype.Path, Converter: op.Retype.Converter}, nil
	default:
		return Op{}, fmt.Errorf("%w: schema update op has no recognized action", dberrors.ErrSchemaMigrationFailed)
	}
}

// LoadUpdateFile reads a declarative CollectionSchemaUpdate from a YAML
// file, in the loam/warren convention of keeping operational
// configuration out of Go source.
func LoadUpdateFile(path string) (*Update, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dberrors.ErrIO, err)
	}
	var raw struct {
		TargetVersion string   `yaml:"targetVersion"`
		Ops           []yamlOp `yaml:"ops"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing schema update: %v", dberrors.ErrSchemaMigrationFailed, err)
	}
	return &Update{TargetVersion: raw.TargetVersion, Ops: raw.Ops}, nil
}

// Converter transforms a single field value during a retype Op.
type Converter func(any) (any, error)

// Converters is the named-converter table retype Ops resolve against.
// docbase ships a small set covering the common JSON scalar conversions;
// callers may register their own before calling Apply.
var Converters = map[string]Converter{
	"toString": func(v any) (any, error) {
		return fmt.Sprintf("%v", v), nil
	},
	"toInt": func(v any) (any, error) {
		switch t := v.(type) {
		case string:
			n, err := strconv.Atoi(t)
			if err != nil {
				return nil, err
			}
			return float64(n), nil
		case float64:
			return t, nil
		default:
			return nil, fmt.Errorf("cannot convert %T to int", v)
		}
	},
	"toFloat": func(v any) (any, error) {
		switch t := v.(type) {
		case string:
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, err
			}
			return f, nil
		case float64:
			return t, nil
		default:
			return nil, fmt.Errorf("cannot convert %T to float", v)
		}
	},
	"toBool": func(v any) (any, error) {
		switch t := v.(type) {
		case string:
			b, err := strconv.ParseBool(t)
			if err != nil {
				return nil, err
			}
			return b, nil
		case bool:
			return t, nil
		default:
			return nil, fmt.Errorf("cannot convert %T to bool", v)
		}
	},
}

// ResolveOps converts a YAML-sourced op list (as decoded by
// LoadUpdateFile, or built directly against Update.Ops) into plain Ops,
// letting a caller validate and cache the resolved form once rather than
// re-resolving on every Apply call.
func ResolveOps(rawOps []yamlOp) ([]Op, error) {
	ops := make([]Op, 0, len(rawOps))
	for _, raw := range rawOps {
		op, err := raw.resolve()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Apply runs every Op in update against docs, in order, returning a new
// document set (the input is never mutated, so a failed update leaves
// the caller's copy untouched — spec.md §4.G: "on any per-document
// violation ... the collection is unchanged"). The raw yamlOp slice is
// resolved to Op here rather than at load time, so a YAML-sourced update
// and a programmatically-built one share one Apply path.
func Apply(docs []codec.Doc, rawOps []yamlOp) ([]codec.Doc, error) {
	ops, err := ResolveOps(rawOps)
	if err != nil {
		return nil, err
	}
	return ApplyOps(docs, ops)
}

// ApplyOps runs pre-resolved Ops directly; used by callers building an
// Update programmatically instead of from YAML.
func ApplyOps(docs []codec.Doc, ops []Op) ([]codec.Doc, error) {
	out := make([]codec.Doc, len(docs))
	for i, d := range docs {
		nd := codec.Clone(d)
		for _, op := range ops {
			if err := applyOp(nd, op); err != nil {
				return nil, fmt.Errorf("%w: %v", dberrors.ErrSchemaMigrationFailed, err)
			}
		}
		out[i] = nd
	}
	return out, nil
}

func applyOp(doc codec.Doc, op Op) error {
	switch op.Kind {
	case OpRename:
		v, ok := getPath(doc, op.Path)
		if !ok {
			return nil
		}
		deletePath(doc, op.Path)
		setPath(doc, op.NewPath, v)
		return nil
	case OpAdd:
		if _, ok := getPath(doc, op.Path); !ok {
			setPath(doc, op.Path, op.Default)
		}
		return nil
	case OpRemove:
		deletePath(doc, op.Path)
		return nil
	case OpRetype:
		v, ok := getPath(doc, op.Path)
		if !ok {
			return nil
		}
		conv, ok := Converters[op.Converter]
		if !ok {
			return fmt.Errorf("unknown converter %q", op.Converter)
		}
		nv, err := conv(v)
		if err != nil {
			return fmt.Errorf("retype %s: %w", op.Path, err)
		}
		setPath(doc, op.Path, nv)
		return nil
	default:
		return fmt.Errorf("unknown schema update op kind %d", op.Kind)
	}
}

func getPath(doc codec.Doc, path string) (any, bool) {
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

func setPath(doc codec.Doc, path string, value any) {
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

func deletePath(doc codec.Doc, path string) {
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
