package query

import "docbase/internal/codec"

// Matches reports whether doc satisfies q. For a descendant step, doc
// matches if any value found at q.fieldPath (at any depth) satisfies the
// predicate; for a child or self step, there is exactly one candidate
// context.
func (q *Query) Matches(doc codec.Doc) (bool, error) {
	candidates, err := q.contexts(doc)
	if err != nil {
		return false, err
	}
	for _, ctx := range candidates {
		ok, err := q.evalPredicate(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (q *Query) evalPredicate(ctx any) (bool, error) {
	m, ok := ctx.(map[string]any)
	if !ok {
		// A non-object context (string, number, ...) can't be matched
		// against a field predicate; existence alone satisfies a
		// predicate-less query.
		return q.pred == nil, nil
	}
	if q.pred == nil {
		return true, nil
	}
	return q.pred.eval(m)
}

// contexts returns every candidate evaluation context for doc under q's
// step.
func (q *Query) contexts(doc codec.Doc) ([]any, error) {
	switch q.kind {
	case stepSelf:
		return []any{any(doc)}, nil
	case stepChild:
		v, ok := lookup(doc, q.fieldPath)
		if !ok {
			return nil, nil
		}
		return []any{v}, nil
	case stepDescendant:
		var found []any
		collectDescendants(doc, q.fieldPath, &found)
		return found, nil
	default:
		return nil, nil
	}
}

// collectDescendants walks v recursively, appending every value found
// under a key equal to field, at any depth.
func collectDescendants(v any, field string, out *[]any) {
	switch t := v.(type) {
	case map[string]any:
		if fv, ok := t[field]; ok {
			*out = append(*out, fv)
		}
		for _, vv := range t {
			collectDescendants(vv, field, out)
		}
	case []any:
		for _, vv := range t {
			collectDescendants(vv, field, out)
		}
	}
}

// Find returns every document in docs that matches q, preserving order.
func Find(q *Query, docs []codec.Doc) ([]codec.Doc, error) {
	var out []codec.Doc
	for _, d := range docs {
		ok, err := q.Matches(d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}
