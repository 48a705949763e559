package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Snapshot is a read-only view over a published state tree. It is what side
// effects and external observers receive: reads are served from the
// underlying tree without copying, while extraction methods hand out clones
// so the published tree can never be written through a Snapshot.
type Snapshot struct {
	tree Tree
}

// NewSnapshot wraps a published tree. The tree must not be mutated after
// being wrapped.
func NewSnapshot(t Tree) Snapshot {
	return Snapshot{tree: t}
}

// At resolves a dotted path against the snapshot. The returned value is
// shared with the published tree and must be treated as read-only.
func (s Snapshot) At(path string) (any, bool) {
	return s.tree.At(path)
}

// AtPath is At for pre-split segments.
func (s Snapshot) AtPath(segments []string) (any, bool) {
	return s.tree.AtPath(segments)
}

// Tree returns a clone of the snapshot's tree, safe for the caller to own.
func (s Snapshot) Tree() Tree {
	return s.tree.Clone()
}

// Len reports the number of root entries.
func (s Snapshot) Len() int {
	return len(s.tree)
}

// Decode unmarshals the subtree at path into out using "mapstructure" field
// tags. An empty path decodes the whole tree. Decoding a path that does not
// resolve, or whose value is not a branch, fails.
func (s Snapshot) Decode(path string, out any) error {
	var src any = map[string]any(s.tree)
	if path != "" {
		v, ok := s.tree.At(path)
		if !ok {
			return fmt.Errorf("decode %q: path not present in snapshot", path)
		}
		src = v
	}
	if err := mapstructure.Decode(src, out); err != nil {
		return fmt.Errorf("decode %q: %w", path, err)
	}
	return nil
}
