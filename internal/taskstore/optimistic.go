package taskstore

import "context"

// optimistic applies a local change ahead of a remote call.
//
// It snapshots the current value, applies mutate locally, runs remote with
// the mutated value, then either reconciles with the remote result or puts
// the snapshot back. The local state is settled before it returns, so a
// caller that sees an error also sees the restored value.
type optimistic[T any] struct {
	load   func() (T, bool)
	store  func(T)
	mutate func(T) T
	remote func(ctx context.Context, next T) (T, error)
}

func (o optimistic[T]) run(ctx context.Context) (T, error) {
	var zero T

	snapshot, ok := o.load()
	if !ok {
		return zero, ErrNotFound
	}

	next := o.mutate(snapshot)
	o.store(next)

	confirmed, err := o.remote(ctx, next)
	if err != nil {
		o.store(snapshot)
		return zero, err
	}
	o.store(confirmed)
	return confirmed, nil
}
