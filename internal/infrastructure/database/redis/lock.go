package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
)

var (
	// ErrLockNotAcquired is returned when the lock is held by another owner
	// and the retry budget is exhausted.
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "failed to acquire writer lock")
	// ErrLockNotHeld is returned on unlock or extend when the lock is no
	// longer held by this owner, typically after TTL expiry.
	ErrLockNotHeld = errors.New(errors.ErrCodeConflict, "writer lock not held by this owner")
)

// Unlock and extend must verify ownership and act atomically, otherwise a
// lock that expired and was re-acquired by another writer could be released
// out from under it.
var (
	unlockScript = goredis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0`)

	extendScript = goredis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0`)
)

// WriterLock serialises index writers when the similarity index runs against
// a shared vector backend.  The in-process index has a single writer per
// instance already; this lock extends that guarantee across instances.
//
// Each successful acquisition returns a Lease carrying its own owner token.
// Tokens are per acquisition, not per WriterLock: goroutines sharing one
// WriterLock never hold interchangeable tokens, so a lease that expired and
// was re-acquired by a sibling cannot release the sibling's hold.
type WriterLock struct {
	client     *Client
	name       string
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
	log        logging.Logger
}

// Lease is one held acquisition of a WriterLock.  Unlock and Extend verify
// this lease's token before acting.
type Lease struct {
	lock  *WriterLock
	token string
}

// LockOption adjusts lock behaviour.
type LockOption func(*WriterLock)

// WithLockTTL sets the expiry applied on acquisition.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(l *WriterLock) { l.ttl = ttl }
}

// WithRetry sets the acquisition retry budget.
func WithRetry(count int, delay time.Duration) LockOption {
	return func(l *WriterLock) {
		l.retryCount = count
		l.retryDelay = delay
	}
}

// NewWriterLock builds a lock on the given name.
func NewWriterLock(client *Client, name string, log logging.Logger, opts ...LockOption) *WriterLock {
	if log == nil {
		log = logging.NewNopLogger()
	}
	l := &WriterLock{
		client:     client,
		name:       name,
		ttl:        30 * time.Second,
		retryDelay: 100 * time.Millisecond,
		retryCount: 30,
		log:        log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryLock attempts a single acquisition.  It returns the lease on success and
// (nil, nil) when the lock is held by another owner.
func (l *WriterLock) TryLock(ctx context.Context) (*Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, l.key(), token, l.ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "writer lock acquisition failed")
	}
	if !ok {
		return nil, nil
	}
	return &Lease{lock: l, token: token}, nil
}

// Lock blocks until the lock is acquired, the retry budget runs out, or the
// context is cancelled.
func (l *WriterLock) Lock(ctx context.Context) (*Lease, error) {
	for attempt := 0; ; attempt++ {
		lease, err := l.TryLock(ctx)
		if err != nil {
			return nil, err
		}
		if lease != nil {
			return lease, nil
		}
		if attempt >= l.retryCount {
			return nil, ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeComputationTimeout,
				"cancelled while waiting for writer lock")
		case <-time.After(l.retryDelay):
		}
	}
}

// Acquire blocks like Lock and returns the release callback of the new lease.
// It matches the acquisition seam the locked vector backend expects.
func (l *WriterLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	lease, err := l.Lock(ctx)
	if err != nil {
		return nil, err
	}
	return lease.Unlock, nil
}

// Unlock releases the lock if this lease still owns it.
func (le *Lease) Unlock(ctx context.Context) error {
	l := le.lock
	n, err := unlockScript.Run(ctx, l.client.rdb, []string{l.key()}, le.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "writer lock release failed")
	}
	if n == 0 {
		l.log.Warn("writer lock expired before release", logging.String("lock", l.name))
		return ErrLockNotHeld
	}
	return nil
}

// Extend renews the TTL on a held lease, for writers that outlive the initial
// expiry.
func (le *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	l := le.lock
	n, err := extendScript.Run(ctx, l.client.rdb,
		[]string{l.key()}, le.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "writer lock extension failed")
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (l *WriterLock) key() string {
	return l.client.key("lock", l.name)
}
