package testutil

import "context"

// InMemoryTxRunner satisfies the services' transaction runner without any
// transactional behavior: the in-memory stores commit each write immediately,
// so the function just runs against the same context.
type InMemoryTxRunner struct{}

// NewInMemoryTxRunner creates a pass-through transaction runner
func NewInMemoryTxRunner() *InMemoryTxRunner {
	return &InMemoryTxRunner{}
}

func (r *InMemoryTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
