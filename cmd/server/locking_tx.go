package main

import (
	"context"

	platformredis "procureflow/internal/platform/redis"
	"procureflow/internal/workflow/service"
)

// lockingStoreTx takes a Redis lock on the record before running the inner
// transaction. Across instances this turns most version races into waits
// instead of concurrent_modification rejections; the store's version check
// still decides correctness.
type lockingStoreTx struct {
	inner  service.StoreTx
	locker *platformredis.Locker
}

func newLockingStoreTx(inner service.StoreTx, locker *platformredis.Locker) *lockingStoreTx {
	return &lockingStoreTx{inner: inner, locker: locker}
}

func (t *lockingStoreTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	recordID, ok := service.RecordScope(ctx)
	if !ok {
		return t.inner.RunInTx(ctx, fn)
	}

	release, err := t.locker.Acquire(ctx, recordID.String())
	if err != nil {
		// Lock acquisition is an optimization; fall through to the version
		// check rather than failing the transition.
		return t.inner.RunInTx(ctx, fn)
	}
	defer release()

	return t.inner.RunInTx(ctx, fn)
}
