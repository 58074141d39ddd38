package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rbright/parley/internal/backend"
)

type closer interface {
	Close() error
}

// slot pairs a live instance with the sub-bundle it was built from.
type slot[T closer, C comparable] struct {
	cfg      C
	instance T
	limit    int
	limiter  *semaphore.Weighted
	refs     sync.WaitGroup
	builtAt  time.Time
}

func newSlot[T closer, C comparable](cfg C, instance T) *slot[T, C] {
	limit := backend.MaxConcurrency(instance)
	return &slot[T, C]{
		cfg:      cfg,
		instance: instance,
		limit:    limit,
		limiter:  semaphore.NewWeighted(int64(limit)),
		builtAt:  time.Now(),
	}
}

// lease pins the slot; callers must hold the context's read lock.
func (s *slot[T, C]) lease() *Lease[T, C] {
	s.refs.Add(1)
	return &Lease[T, C]{slot: s}
}

// retire waits for every outstanding lease and then closes the instance.
func (s *slot[T, C]) retire() error {
	s.refs.Wait()
	return s.instance.Close()
}

// Lease is a request's consistent view of one capability: the instance and
// the configuration it was built from. The instance stays open until every
// lease on it is released, even if a newer configuration is applied.
type Lease[T closer, C comparable] struct {
	slot *slot[T, C]
	once sync.Once
}

// Instance returns the leased backend.
func (l *Lease[T, C]) Instance() T {
	return l.slot.instance
}

// Config returns the sub-bundle the instance was built from.
func (l *Lease[T, C]) Config() C {
	return l.slot.cfg
}

// MaxConcurrency is the number of concurrent Calls the instance admits.
func (l *Lease[T, C]) MaxConcurrency() int {
	return l.slot.limit
}

// Call runs fn once a concurrency slot on the instance is free. A done ctx
// fails fast without calling fn.
func (l *Lease[T, C]) Call(ctx context.Context, fn func(T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.slot.limiter.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.slot.limiter.Release(1)
	return fn(l.slot.instance)
}

// Release unpins the instance. It is safe to call more than once.
func (l *Lease[T, C]) Release() {
	l.once.Do(l.slot.refs.Done)
}
