// Package codec implements the line<->document translation (spec.md
// §4.B): one JSON document per line, decoded into the generic
// map[string]any representation the store, cipher, and query engine all
// operate on.
//
// Because the in-memory representation is already generic, "unknown
// fields are preserved verbatim on decode" (the codec's contract) falls
// out for free: there is no typed struct to drop fields from. Encoding
// determinism comes from encoding/json's existing guarantee that
// map[string]any keys are marshaled in sorted order, so the same document
// always serializes to the same bytes regardless of field insertion
// order.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Header is the first line of every collection file.
type Header struct {
	SchemaVersion string `json:"schemaVersion"`
}

// Doc is the generic, descriptor-agnostic representation of one document.
// It is what the store, cipher, and query packages all exchange.
type Doc = map[string]any

// DecodeLine parses one JSON document line into the generic
// representation. json.Number is used for numeric values so that
// round-tripping a document through Decode/Encode never perturbs integer
// vs. float formatting (spec.md P2).
func DecodeLine(line []byte) (Doc, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var doc Doc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("codec: decode line: %w", err)
	}
	return doc, nil
}

// EncodeLine serializes a document to a single JSON line (without a
// trailing newline; callers append one when writing to the journal).
func EncodeLine(doc Doc) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("codec: encode line: %w", err)
	}
	return b, nil
}

// DecodeHeader parses the first line of a collection file.
func DecodeHeader(line []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, fmt.Errorf("codec: decode header: %w", err)
	}
	return h, nil
}

// EncodeHeader serializes a collection file's header line.
func EncodeHeader(h Header) ([]byte, error) {
	return json.Marshal(h)
}

// ToTyped re-marshals a generic document into dst (typically a pointer
// returned by Descriptor.New), delegating the generic-object-to-JSON
// mapping to encoding/json — the boundary spec.md §1 deliberately places
// outside the core's scope.
func ToTyped(doc Doc, dst any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("codec: marshal for typed view: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("codec: unmarshal into typed view: %w", err)
	}
	return nil
}

// FromTyped converts an application value into the generic representation
// via its own JSON mapping (again, explicitly out of core scope per
// spec.md §1 — the core only ever touches the generic form after this).
func FromTyped(v any) (Doc, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal typed value: %w", err)
	}
	return DecodeLine(b)
}

// Clone returns a deep copy of a document, used by the store to hand
// readers an independent snapshot value.
func Clone(doc Doc) Doc {
	out := make(Doc, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}
