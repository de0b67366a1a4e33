// Package distlock serializes newsletter send cycles across processes.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every lock key this module takes.
const KeyPrefix = "newsletter:lock:"

// ErrNotAcquired is returned by Guard when another holder owns the lock.
var ErrNotAcquired = errors.New("lock held by another owner")

// Locker is a non-blocking mutual exclusion primitive. A Locker instance
// belongs to one owner; concurrent owners need separate instances.
type Locker interface {
	// Acquire tries to take the lock and reports whether it succeeded.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still owns it.
	Release(ctx context.Context) error
}

// New picks a backend: redis when a client is given, otherwise a postgres
// advisory lock when a database is given, otherwise an in-process lock.
func New(rdb *redis.Client, db *sql.DB, key string, ttl time.Duration) Locker {
	switch {
	case rdb != nil:
		return NewRedisLock(rdb, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	default:
		return NewLocalLock(key)
	}
}

// Guard runs fn while holding l. It returns ErrNotAcquired without running
// fn when the lock is taken. Release uses a fresh context so a cancelled
// cycle still gives the lock back.
func Guard(ctx context.Context, l Locker, fn func(ctx context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = l.Release(relCtx)
	}()
	return fn(ctx)
}

// PGAdvisoryLock uses session-scoped pg_try_advisory_lock. The lock goes
// away with the connection, so a crashed holder never wedges the cycle.
// The connection is pinned between Acquire and Release because the unlock
// must run in the session that took the lock.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock derives a stable advisory lock id from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(KeyPrefix + key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// ID returns the advisory lock id.
func (l *PGAdvisoryLock) ID() int64 { return l.lockID }

func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock %d: %w", l.lockID, err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock %d: %w", l.lockID, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer conn.Close()

	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

var localLocks sync.Map // key -> *sync.Mutex

// LocalLock is an in-process lock for single-node deployments and tests.
// Instances created with the same key exclude each other.
type LocalLock struct {
	mu   *sync.Mutex
	held bool
}

// NewLocalLock returns a lock shared by every LocalLock with the same key.
func NewLocalLock(key string) *LocalLock {
	mu, _ := localLocks.LoadOrStore(key, &sync.Mutex{})
	return &LocalLock{mu: mu.(*sync.Mutex)}
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = l.mu.TryLock()
	return l.held, nil
}

func (l *LocalLock) Release(context.Context) error {
	if l.held {
		l.held = false
		l.mu.Unlock()
	}
	return nil
}
