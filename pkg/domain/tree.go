package domain

import (
	"strings"
)

// PathSeparator delimits segments in a selector path (e.g. "clock.minute").
const PathSeparator = "."

// Tree is the state container's data model: a string-keyed tree whose
// branches are nested map[string]any values and whose leaves hold arbitrary
// application data. No schema is imposed; shape is implied by the registered
// selectors.
//
// Trees published by a store are never mutated afterwards. Callers must
// treat any Tree they receive as read-only input and derive new values
// instead of writing in place.
type Tree map[string]any

// SplitPath splits a dotted selector path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, PathSeparator)
}

// JoinPath is the inverse of SplitPath.
func JoinPath(segments []string) string {
	return strings.Join(segments, PathSeparator)
}

// At resolves a dotted path against the tree. The boolean reports whether
// every segment resolved; a missing key or a non-branch intermediate value
// yields (nil, false).
func (t Tree) At(path string) (any, bool) {
	return t.AtPath(SplitPath(path))
}

// AtPath is At for pre-split segments.
func (t Tree) AtPath(segments []string) (any, bool) {
	if t == nil || len(segments) == 0 {
		return nil, false
	}
	var cur any = map[string]any(t)
	for _, seg := range segments {
		branch, ok := AsBranch(cur)
		if !ok {
			return nil, false
		}
		next, ok := branch[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// AsBranch reports whether a tree value is a branch (a nested mapping) and
// returns it in canonical map form.
func AsBranch(v any) (map[string]any, bool) {
	switch branch := v.(type) {
	case map[string]any:
		return branch, true
	case Tree:
		return map[string]any(branch), true
	default:
		return nil, false
	}
}

// Clone returns a copy of the tree with every branch map duplicated.
// Leaf values are shared between the original and the copy: the container
// replaces leaves functionally and never mutates them, so sharing is safe
// as long as callers honor the read-only contract.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	branch, ok := AsBranch(v)
	if !ok {
		return v
	}
	dup := make(map[string]any, len(branch))
	for k, nested := range branch {
		dup[k] = cloneValue(nested)
	}
	return dup
}
