// Package compiler turns a flat set of handler declarations into a single
// composed reducer over the state tree.
//
// Compilation happens once, at store-creation time: declarations are
// partitioned into root leaves (single-segment selectors) and nested leaves
// grouped under their parent path, selector paths are pre-split, and
// declarations targeting the same leaf are chained in registration order.
// The resulting Reducer is immutable configuration; building a different
// handler set means building a new store.
package compiler

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
)

// step is one adapted declaration in a leaf's chain.
type step struct {
	typeTag string
	handler domain.HandlerFunc
}

// leaf is the compiled handler chain for one position in the tree.
type leaf struct {
	key   string // final path segment
	path  string // full dotted selector
	steps []step
}

// branch groups the nested leaves that share one parent path.
type branch struct {
	path     string   // dotted parent path
	segments []string // pre-split parent segments
	leaves   []*leaf
}

// Reducer is the composed update function produced from a registry's
// declarations. It is safe for use by a single dispatcher goroutine; the
// structure itself is never written after Compile returns.
type Reducer struct {
	roots    []*leaf
	branches []*branch
}

// Compile builds the reducer tree from declarations in registration order.
// Declarations are assumed validated by the registry (non-empty selector,
// non-nil handler).
func Compile(decls []domain.Declaration) *Reducer {
	r := &Reducer{}
	for _, d := range decls {
		segments := domain.SplitPath(d.Selector)
		st := step{typeTag: d.Type, handler: d.Handler}

		if len(segments) == 1 {
			if l := findLeaf(r.roots, d.Selector); l != nil {
				l.steps = append(l.steps, st)
				continue
			}
			r.roots = append(r.roots, &leaf{key: segments[0], path: d.Selector, steps: []step{st}})
			continue
		}

		parent := domain.JoinPath(segments[:len(segments)-1])
		b := r.branch(parent)
		if b == nil {
			b = &branch{path: parent, segments: segments[:len(segments)-1]}
			r.branches = append(r.branches, b)
		}
		if l := findLeaf(b.leaves, d.Selector); l != nil {
			l.steps = append(l.steps, st)
			continue
		}
		b.leaves = append(b.leaves, &leaf{key: segments[len(segments)-1], path: d.Selector, steps: []step{st}})
	}
	return r
}

func (r *Reducer) branch(path string) *branch {
	for _, b := range r.branches {
		if b.path == path {
			return b
		}
	}
	return nil
}

func findLeaf(leaves []*leaf, path string) *leaf {
	for _, l := range leaves {
		if l.path == path {
			return l
		}
	}
	return nil
}

// job pairs a leaf with the prior value read for this transition.
type job struct {
	leaf    *leaf
	prior   any
	present bool
}

// outcome is the computed next value for one leaf.
type outcome struct {
	value any
	err   error
}

// Apply runs one transition: it reads every leaf's prior value from base,
// computes the next values concurrently, and, only if every handler
// succeeded, assembles a new tree via copy-on-write along the written
// paths. base is never mutated; on error it is returned unchanged alongside
// the first failure in layout order.
//
// act == nil is the structural pass: leaves that already hold a value pass
// through untouched, absent leaves are materialized with their handler's
// initial value.
func (r *Reducer) Apply(ctx context.Context, base domain.Tree, act *domain.Action) (domain.Tree, error) {
	if base == nil {
		base = domain.Tree{}
	}

	// Phase 1: read priors against the single base snapshot.
	jobs := make([]job, 0, len(r.roots))
	for _, l := range r.roots {
		prior, present := base[l.key]
		jobs = append(jobs, job{leaf: l, prior: prior, present: present})
	}
	for _, b := range r.branches {
		parent, _ := base.AtPath(b.segments)
		pb, isBranch := domain.AsBranch(parent)
		for _, l := range b.leaves {
			var j job
			j.leaf = l
			if isBranch {
				j.prior, j.present = pb[l.key]
			}
			jobs = append(jobs, j)
		}
	}

	// Phase 2: compute every leaf concurrently. Handlers only read their own
	// prior value, so the fan-out shares base without locking.
	outcomes := make([]outcome, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i].err = &domain.HandlerError{
						Selector: j.leaf.path,
						Err:      fmt.Errorf("handler panicked: %v", r),
					}
				}
			}()
			outcomes[i].value, outcomes[i].err = j.leaf.compute(ctx, j.prior, j.present, act)
		}(i, j)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			return base, o.err
		}
	}

	// Phase 3: commit. Clone the root and every branch map along a written
	// path exactly once, then set the new leaf values.
	next := maps.Clone(map[string]any(base))
	cloned := make(map[string]map[string]any)
	idx := 0
	for range r.roots {
		next[jobs[idx].leaf.key] = outcomes[idx].value
		idx++
	}
	for _, b := range r.branches {
		parent := materialize(next, cloned, b.segments)
		for range b.leaves {
			parent[jobs[idx].leaf.key] = outcomes[idx].value
			idx++
		}
	}
	return next, nil
}

// materialize walks parent segments from the new root, cloning each branch
// map the first time this transition touches it and creating missing
// branches as empty mappings. A non-branch value sitting where a branch is
// needed is replaced by a fresh branch: selectors own their paths.
func materialize(root map[string]any, cloned map[string]map[string]any, segments []string) map[string]any {
	cur := root
	path := ""
	for _, seg := range segments {
		if path == "" {
			path = seg
		} else {
			path += domain.PathSeparator + seg
		}
		if c, ok := cloned[path]; ok {
			cur = c
			continue
		}
		var dup map[string]any
		if existing, ok := domain.AsBranch(cur[seg]); ok {
			dup = maps.Clone(existing)
		} else {
			dup = make(map[string]any)
		}
		cur[seg] = dup
		cloned[path] = dup
		cur = dup
	}
	return cur
}

// compute runs the leaf's adapted chain left-to-right: an absent leaf asks
// the first handler for its initial value, a nil action passes existing
// values through, a non-matching type tag passes through, and a matching
// tag invokes the handler with the chain's current value and the payload.
func (l *leaf) compute(ctx context.Context, prior any, present bool, act *domain.Action) (any, error) {
	cur, ok := prior, present
	for _, st := range l.steps {
		switch {
		case !ok:
			v, err := st.handler(ctx, nil, nil)
			if err != nil {
				return nil, &domain.HandlerError{Selector: l.path, Err: err}
			}
			cur, ok = v, true
		case act == nil:
			// Structural pass over an initialized leaf.
		case act.Type != st.typeTag:
			// Not this handler's tag.
		default:
			v, err := st.handler(ctx, cur, act.Payload)
			if err != nil {
				return nil, &domain.HandlerError{Selector: l.path, Type: st.typeTag, Err: err}
			}
			cur = v
		}
	}
	return cur, nil
}

// Layout lists the compiled leaves: roots first, then nested leaves grouped
// by parent path, all in registration order.
func (r *Reducer) Layout() []domain.LayoutEntry {
	entries := make([]domain.LayoutEntry, 0, len(r.roots))
	add := func(l *leaf) {
		e := domain.LayoutEntry{Selector: l.path}
		for _, st := range l.steps {
			e.Types = append(e.Types, st.typeTag)
		}
		entries = append(entries, e)
	}
	for _, l := range r.roots {
		add(l)
	}
	for _, b := range r.branches {
		for _, l := range b.leaves {
			add(l)
		}
	}
	return entries
}
