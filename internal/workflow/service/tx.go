package service

import (
	"context"
	"sync"
	"time"

	id "procureflow/pkg/domain"
	dErrors "procureflow/pkg/domain-errors"
)

// StoreTx provides the atomic boundary for a status update plus its audit
// append. Implementations may wrap a database transaction or, in-memory, a
// per-record lock. The callback receives a context carrying the transaction;
// stores pick it up from there.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// shardedStoreTx serializes mutations with sharded mutexes. Operations are
// distributed across N shards by a hash of the record ID, so concurrent
// applies on different records rarely contend while two applies on the same
// record always serialize.
const numRecordShards = 128

// defaultTxTimeout bounds how long a transition may hold its shard.
const defaultTxTimeout = 5 * time.Second

type shardedStoreTx struct {
	shards  [numRecordShards]sync.Mutex
	timeout time.Duration
}

// NewInMemoryStoreTx returns the lock-based StoreTx used with memory stores.
func NewInMemoryStoreTx() StoreTx {
	return &shardedStoreTx{}
}

func (t *shardedStoreTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

func (t *shardedStoreTx) selectShard(ctx context.Context) int {
	if recordID, ok := ctx.Value(txRecordKeyCtx).(id.RecordID); ok && !recordID.IsNil() {
		return int(hashRecordID(recordID.String()) % numRecordShards)
	}
	return 0
}

// hashRecordID uses FNV-1a for even shard distribution.
func hashRecordID(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type txRecordKey struct{}

var txRecordKeyCtx = txRecordKey{}

// withRecordScope tags the context with the record under mutation so the
// in-memory runner can pick its shard.
func withRecordScope(ctx context.Context, recordID id.RecordID) context.Context {
	return context.WithValue(ctx, txRecordKeyCtx, recordID)
}

// RecordScope returns the record under mutation, if the context carries one.
// Wrapping StoreTx implementations use it to key external locks.
func RecordScope(ctx context.Context) (id.RecordID, bool) {
	recordID, ok := ctx.Value(txRecordKeyCtx).(id.RecordID)
	return recordID, ok
}
