package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "jobmatch/pkg/domain"
	dErrors "jobmatch/pkg/domain-errors"
)

// numJobShards bounds the number of mutexes; jobs hashing to the same shard
// serialize with each other, which is safe but slower.
const numJobShards = 128

// DefaultJobTxTimeout is applied when the caller's context has no deadline.
const DefaultJobTxTimeout = 5 * time.Second

// ShardedJobTx is the in-memory JobTx. It serializes work per job but cannot
// roll back: fn must perform its fallible checks before its first write.
type ShardedJobTx struct {
	shards  [numJobShards]sync.Mutex
	timeout time.Duration
}

func NewShardedJobTx(timeout time.Duration) *ShardedJobTx {
	return &ShardedJobTx{timeout: timeout}
}

func (t *ShardedJobTx) RunInJobTx(ctx context.Context, jobID id.JobID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultJobTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := shardFor(jobID)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// the wait for the shard may have outlived the deadline
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

func shardFor(jobID id.JobID) int {
	h := fnv.New32a()
	_, _ = h.Write(jobID[:])
	return int(h.Sum32() % numJobShards)
}
