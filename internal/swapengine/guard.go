package swapengine

import (
	"context"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
)

type executingKey struct{}

func markExecuting(ctx context.Context, origin solana.PublicKey) context.Context {
	return context.WithValue(ctx, executingKey{}, origin)
}

// executing reports whether ctx belongs to an execution in progress, e.g. a venue calling back.
func executing(ctx context.Context) bool {
	_, ok := ctx.Value(executingKey{}).(solana.PublicKey)
	return ok
}

// execLock is the non-reentrancy flag around one execution. It never blocks: a venue calling
// back with a fresh context would otherwise wait on the ledger transaction held by its caller.
type execLock struct {
	held atomic.Bool
}

func (l *execLock) acquire() (release func(), ok bool) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false
	}
	return func() { l.held.Store(false) }, true
}

