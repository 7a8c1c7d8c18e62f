package mutation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pders01/restodash/internal/notify"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Store is the part of the cache accessor the Coordinator needs
type Store[T any] interface {
	// Replace writes v and returns the value it replaced, atomically
	Replace(key string, v T) (T, bool)
	Write(key string, v T)
	Forget(key string)
}

// RemoteWrite sends a proposed value to the server
type RemoteWrite[T any] func(ctx context.Context, key string, v T) error

// Observer is told when submits start and settle
type Observer interface {
	MutationStarted(key string)
	MutationSettled(key string, state State, elapsed time.Duration)
}

// Policy decides how submits to the same key interact
type Policy int

const (
	// PolicyConcurrent lets submits to one key overlap. Each restores only
	// its own captured value on failure.
	PolicyConcurrent Policy = iota
	// PolicySerialized holds a per-key lock from capture until settlement.
	PolicySerialized
)

// Option configures a Coordinator
type Option func(*options)

type options struct {
	policy     Policy
	observer   Observer
	logger     *slog.Logger
	successMsg string
	failureMsg string
}

// WithPolicy sets the concurrency policy (default PolicyConcurrent)
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithObserver registers an Observer
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMessages sets the notification message keys for success and failure
func WithMessages(success, failure string) Option {
	return func(o *options) {
		o.successMsg = success
		o.failureMsg = failure
	}
}

// Coordinator runs optimistic mutations against a Store
type Coordinator[T any] struct {
	store    Store[T]
	write    RemoteWrite[T]
	notifier notify.Notifier
	opts     options
	locks    keyLocks
	inflight conc.WaitGroup
}

// New creates a Coordinator. A nil notifier discards notifications.
func New[T any](store Store[T], write RemoteWrite[T], notifier notify.Notifier, opts ...Option) *Coordinator[T] {
	o := options{
		policy:     PolicyConcurrent,
		logger:     slog.Default(),
		successMsg: "mutation succeeded",
		failureMsg: "mutation failed",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if notifier == nil {
		notifier = notify.Discard
	}

	return &Coordinator[T]{
		store:    store,
		write:    write,
		notifier: notifier,
		opts:     o,
		locks:    keyLocks{locks: make(map[string]*keyLock)},
	}
}

// Pending is one submit in progress. It holds the value to restore on failure.
type Pending[T any] struct {
	key         string
	previous    T
	hadPrevious bool
	state       atomic.Int32
	done        chan struct{}
	outcome     Outcome
}

// Key returns the cache key of the submit
func (p *Pending[T]) Key() string {
	return p.key
}

// State returns the current state of the submit
func (p *Pending[T]) State() State {
	return State(p.state.Load())
}

// Done is closed once the submit has settled and its notification was sent
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the submit settles. The error is a *RemoteWriteError
// when the remote write failed.
func (p *Pending[T]) Wait() (Outcome, error) {
	<-p.done
	return p.outcome, p.outcome.Err
}

// Start applies proposed to the cache and issues the remote write in the
// background. The optimistic value is visible to readers when Start returns.
//
// If the write fails, the value key held before Start is restored. When key
// held no value, the rollback removes the optimistic value instead of leaving
// it in place, so the next read fetches the server's state.
//
// proposed must already be valid; the Coordinator does not check fields.
// Under PolicySerialized, Start blocks while an earlier submit to the same
// key is still in flight.
func (c *Coordinator[T]) Start(ctx context.Context, key string, proposed T) *Pending[T] {
	var unlock func()
	if c.opts.policy == PolicySerialized {
		unlock = c.locks.lock(key)
	}

	p := &Pending[T]{key: key, done: make(chan struct{})}
	p.previous, p.hadPrevious = c.store.Replace(key, proposed)
	p.state.Store(int32(StateOptimisticApplied))

	if c.opts.observer != nil {
		c.opts.observer.MutationStarted(key)
	}
	c.opts.logger.Debug("optimistic value applied", "key", key, "had_previous", p.hadPrevious)

	c.inflight.Go(func() {
		c.settle(ctx, p, proposed, unlock)
	})

	return p
}

// Submit is Start followed by Wait
func (c *Coordinator[T]) Submit(ctx context.Context, key string, proposed T) (Outcome, error) {
	return c.Start(ctx, key, proposed).Wait()
}

// Drain waits for every submit started so far to settle
func (c *Coordinator[T]) Drain() {
	c.inflight.Wait()
}

func (c *Coordinator[T]) settle(ctx context.Context, p *Pending[T], proposed T, unlock func()) {
	start := time.Now()

	var err error
	if r := panics.Try(func() { err = c.write(ctx, p.key, proposed) }); r != nil {
		err = r.AsError()
	}

	outcome := Outcome{Key: p.key, Duration: time.Since(start)}

	if err == nil {
		outcome.State = StateSettledOK
	} else {
		c.rollback(p)
		outcome.State = StateSettledRolledBack
		outcome.Err = &RemoteWriteError{Key: p.key, Err: err}
	}
	p.outcome = outcome
	p.state.Store(int32(outcome.State))

	if unlock != nil {
		unlock()
	}

	if c.opts.observer != nil {
		c.opts.observer.MutationSettled(p.key, outcome.State, outcome.Duration)
	}

	if outcome.OK() {
		c.opts.logger.Info("mutation settled", "key", p.key, "state", outcome.State, "duration", outcome.Duration)
		c.notifier.Notify(ctx, notify.Notification{Level: notify.LevelSuccess, Message: c.opts.successMsg})
	} else {
		c.opts.logger.Warn("mutation rolled back", "key", p.key, "error", err, "duration", outcome.Duration)
		c.notifier.Notify(ctx, notify.Notification{Level: notify.LevelError, Message: c.opts.failureMsg, Err: outcome.Err})
	}

	close(p.done)
}

// rollback restores the captured value. With nothing captured, the key goes
// back to having no value so the next read fetches the server's state.
func (c *Coordinator[T]) rollback(p *Pending[T]) {
	if p.hadPrevious {
		c.store.Write(p.key, p.previous)
		return
	}
	c.store.Forget(p.key)
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// keyLocks hands out one mutex per key and drops it when unused
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
