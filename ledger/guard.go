package ledger

import (
	"context"
	"sync"
)

type guardKey struct{ g *Guard }

// Guard serialises the state-mutating entry points of one ledger and rejects
// re-entrant calls.
//
// Enter marks the returned context as being inside the guard. Collaborators
// receive that context, so a collaborator calling back into the same ledger
// with it, or with any context derived from it, gets ErrReentrantCall instead
// of a deadlock. Detection rides on the context only: a callback that enters
// the ledger with an unrelated context, such as context.Background(), blocks
// until the outer call releases the guard, which it never does. Collaborators
// must therefore thread the context they are given.
type Guard struct {
	mu sync.RWMutex
}

// Enter acquires the guard for a mutating call. The caller must invoke the
// returned release func exactly once when err is nil.
func (g *Guard) Enter(ctx context.Context) (context.Context, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(guardKey{g}) != nil {
		return ctx, nil, ErrReentrantCall
	}
	g.mu.Lock()
	return context.WithValue(ctx, guardKey{g}, true), g.mu.Unlock, nil
}

// View acquires the guard for a read-only call.
func (g *Guard) View() func() {
	g.mu.RLock()
	return g.mu.RUnlock
}
