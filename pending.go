package canopy

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
)

// Pending is the future returned by Dispatch. It resolves once its specific
// transition has been applied or rejected; side effects triggered by the
// transition are not waited for.
//
// Waiting is safe from any goroutine and any number of times, except from
// inside a transition handler, which runs on the dispatch loop that must
// finish this very transition first.
type Pending struct {
	done chan struct{}
	res  domain.Result
}

func newPending(ch <-chan domain.Result) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		p.res = <-ch
		close(p.done)
	}()
	return p
}

func resolvedPending(res domain.Result) *Pending {
	p := &Pending{done: make(chan struct{}), res: res}
	close(p.done)
	return p
}

// Wait blocks until the transition has been served, returning the snapshot
// it published. On failure the unchanged pre-transition snapshot is
// returned alongside the error. A done context abandons the wait; the
// transition itself still runs.
func (p *Pending) Wait(ctx context.Context) (domain.Tree, error) {
	select {
	case <-p.done:
		return p.res.State, p.res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed once the transition has been served, for
// use in select statements.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the transition's outcome. It is only valid after Done is
// closed.
func (p *Pending) Result() domain.Result {
	return p.res
}
