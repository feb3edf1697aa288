package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultLockTimeout bounds how long an append waits for the serializer.
const DefaultLockTimeout = 10 * time.Second

// Serializer grants exclusive access to the append path. Acquire blocks for
// at most the serializer's timeout and fails with ErrLockTimeout after that.
type Serializer interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalSerializer is an in-process Serializer backed by a one-slot semaphore.
type LocalSerializer struct {
	sem     chan struct{}
	timeout time.Duration
}

// NewLocalSerializer creates a LocalSerializer. A zero timeout selects
// DefaultLockTimeout.
func NewLocalSerializer(timeout time.Duration) *LocalSerializer {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &LocalSerializer{sem: make(chan struct{}, 1), timeout: timeout}
}

// Acquire implements Serializer.
func (s *LocalSerializer) Acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrLockTimeout, s.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// advisoryPollInterval is how often AdvisorySerializer retries the lock.
const advisoryPollInterval = 25 * time.Millisecond

// AdvisorySerializer serialises appends across processes with a PostgreSQL
// session-level advisory lock. The key must be the same on every instance
// writing to the same ledger.
type AdvisorySerializer struct {
	pool    *pgxpool.Pool
	key     int64
	timeout time.Duration
	logger  *zap.Logger
}

// NewAdvisorySerializer creates an AdvisorySerializer.
func NewAdvisorySerializer(pool *pgxpool.Pool, key int64, timeout time.Duration, logger *zap.Logger) *AdvisorySerializer {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &AdvisorySerializer{pool: pool, key: key, timeout: timeout, logger: logger}
}

// Acquire implements Serializer. The lock is held on a dedicated pooled
// connection until release is called.
func (s *AdvisorySerializer) Acquire(ctx context.Context) (func(), error) {
	return pollLock(ctx, s.timeout, advisoryPollInterval, s.tryLock)
}

// tryLock makes one attempt on a pooled connection. The connection is kept
// only when it ends up holding the lock, so waiters never pin pool slots
// that the holder's store queries need.
func (s *AdvisorySerializer) tryLock(ctx context.Context) (func(), bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", s.key).Scan(&ok); err != nil {
		// The lock may have been granted before the error; closing the
		// session is the only way to be sure it is not left behind.
		_ = conn.Hijack().Close(context.Background())
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	return func() {
		// Background context: the caller's may already be cancelled.
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", s.key); err != nil {
			s.logger.Error("release advisory lock", zap.Error(err))
			// Closing the session drops every advisory lock it holds.
			_ = conn.Hijack().Close(context.Background())
			return
		}
		conn.Release()
	}, true, nil
}

// pollLock calls try every interval until it takes the lock. Each attempt
// runs under a context bounded by timeout; reaching it is ErrLockTimeout.
// Cancellation of ctx itself is returned as is.
func pollLock(ctx context.Context, timeout, interval time.Duration, try func(context.Context) (func(), bool, error)) (func(), error) {
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		release, ok, err := try(dctx)
		if ok {
			return release, nil
		}
		if err == nil {
			select {
			case <-ticker.C:
				continue
			case <-dctx.Done():
			}
		}
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case dctx.Err() != nil:
			return nil, fmt.Errorf("%w after %s", ErrLockTimeout, timeout)
		}
		return nil, err
	}
}
