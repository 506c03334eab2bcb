package storage

import (
	"context"
	"time"

	"github.com/docvault-db/docvault/internal/metrics"
)

// connPool bounds concurrent use of the underlying *sql.DB to
// PoolConfig.MaxConnections. database/sql already pools
// physical connections internally, but docvault additionally bounds
// the number of in-flight logical operations so that a burst of
// concurrent ingests or searches blocks callers instead of piling up
// unbounded goroutines against the driver. Acquire blocks until a slot
// is free or ctx is done; Release always returns a slot to the pool.
type connPool struct {
	slots chan struct{}
}

// newConnPool creates a pool that admits at most size concurrent
// operations. size <= 0 is treated as 1.
func newConnPool(size int) *connPool {
	if size <= 0 {
		size = 1
	}
	return &connPool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is available or ctx is cancelled. It
// records time spent waiting in metrics.PoolWaitDuration.
func (p *connPool) Acquire(ctx context.Context) error {
	start := time.Now()
	select {
	case p.slots <- struct{}{}:
		metrics.PoolWaitDuration.Observe(time.Since(start).Seconds())
		return nil
	default:
	}

	select {
	case p.slots <- struct{}{}:
		metrics.PoolWaitDuration.Observe(time.Since(start).Seconds())
		return nil
	case <-ctx.Done():
		metrics.PoolWaitDuration.Observe(time.Since(start).Seconds())
		return ctx.Err()
	}
}

// Release returns a slot to the pool. It must be called exactly once
// per successful Acquire.
func (p *connPool) Release() {
	select {
	case <-p.slots:
	default:
		// Release without a matching Acquire is a programmer error;
		// draining nothing is safer than blocking or panicking.
	}
}

// Len reports the number of slots currently in use.
func (p *connPool) Len() int { return len(p.slots) }

// Cap reports the pool's configured size.
func (p *connPool) Cap() int { return cap(p.slots) }
