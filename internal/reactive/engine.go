// Package reactive provides live queries over the RetroPlay store: a
// subscribed read function is re-executed whenever any collection it
// actually read from is mutated through the repository.
package reactive

import (
	"fmt"
	"sync"

	"github.com/retroplay/backend/internal/db"
	"github.com/retroplay/backend/internal/logging"
)

// QueryFunc is a subscribed read function. It receives a Queries facade
// whose reads are tracked per execution; the subscription's dependency set
// is exactly the collections the last execution touched.
type QueryFunc func(q *Queries) (interface{}, error)

// Result is the caller-visible state of a subscription. Loading is true
// until the first execution resolves, so "no data yet" is distinguishable
// from "resolved to zero results". A failed execution is captured in Err;
// it never escapes as a panic.
type Result struct {
	Loading bool
	Value   interface{}
	Err     error
}

// Engine re-runs subscribed queries on collection changes. It implements
// db.Notifier and registers itself with the repository on construction.
type Engine struct {
	repo *db.Repository

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewEngine creates an Engine bound to repo and registers it for change
// events.
func NewEngine(repo *db.Repository) *Engine {
	e := &Engine{
		repo: repo,
		subs: make(map[*Subscription]struct{}),
	}
	repo.AddNotifier(e)
	return e
}

// CollectionChanged implements db.Notifier. Subscriptions depending on col
// are scheduled for re-execution; changes landing while an execution is in
// flight coalesce into a single re-run.
func (e *Engine) CollectionChanged(col db.Collection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for sub := range e.subs {
		if sub.dependsOn(col) {
			sub.schedule()
		}
	}
}

// Subscribe registers query under name and starts its first execution.
// The returned subscription delivers refreshed results on Updates until
// Unsubscribe is called.
func (e *Engine) Subscribe(name string, query QueryFunc) *Subscription {
	sub := &Subscription{
		name:    name,
		engine:  e,
		query:   query,
		current: Result{Loading: true},
		updates: make(chan Result, 1),
	}

	e.mu.Lock()
	e.subs[sub] = struct{}{}
	e.mu.Unlock()

	sub.schedule()
	return sub
}

// Close unsubscribes every active subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	subs := make([]*Subscription, 0, len(e.subs))
	for sub := range e.subs {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (e *Engine) remove(sub *Subscription) {
	e.mu.Lock()
	delete(e.subs, sub)
	e.mu.Unlock()
}

// Subscription is one registered live query.
type Subscription struct {
	name   string
	engine *Engine
	query  QueryFunc

	mu      sync.Mutex
	deps    map[db.Collection]struct{} // nil until the first execution completes
	current Result
	gen     uint64
	running bool
	closed  bool
	updates chan Result
}

// Name returns the dependency key the subscription was registered under.
func (s *Subscription) Name() string {
	return s.name
}

// Current returns the latest delivered result. Loading is set until the
// first execution resolves.
func (s *Subscription) Current() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Updates delivers refreshed results. The channel holds only the latest
// result; an unread stale result is replaced, never queued behind.
func (s *Subscription) Updates() <-chan Result {
	return s.updates
}

// Unsubscribe stops the subscription and closes Updates. An in-flight
// execution finishing after this call delivers nothing; consumers ranging
// over Updates terminate.
func (s *Subscription) Unsubscribe() {
	s.engine.remove(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	// Drop an undelivered result so late readers observe nothing.
	select {
	case <-s.updates:
	default:
	}
	close(s.updates)
}

// dependsOn reports whether col is in the dependency set. Before the first
// execution completes the set is unknown, so every collection matches.
func (s *Subscription) dependsOn(col db.Collection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.deps == nil {
		return true
	}
	_, ok := s.deps[col]
	return ok
}

// schedule queues a (re-)execution. If one is already running its result
// becomes stale and exactly one re-run follows.
func (s *Subscription) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.gen++
	if !s.running {
		s.running = true
		go s.run()
	}
}

func (s *Subscription) run() {
	for {
		s.mu.Lock()
		if s.closed {
			s.running = false
			s.mu.Unlock()
			return
		}
		myGen := s.gen
		s.mu.Unlock()

		q := newQueries(s.engine.repo)
		value, err := safeQuery(s.query, q)
		if err != nil {
			logging.Warn("reactive query failed", map[string]interface{}{
				"subscription": s.name,
				"error":        err.Error(),
			})
		}

		s.mu.Lock()
		if s.closed {
			s.running = false
			s.mu.Unlock()
			return
		}
		if s.gen != myGen {
			// A newer change arrived while running; this result is stale.
			s.mu.Unlock()
			continue
		}

		s.deps = q.touched
		s.current = Result{Value: value, Err: err}
		s.running = false
		s.deliverLocked(s.current)
		s.mu.Unlock()
		return
	}
}

// deliverLocked pushes res into the updates channel, replacing an unread
// older result. Called with s.mu held; sends are non-blocking.
func (s *Subscription) deliverLocked(res Result) {
	select {
	case s.updates <- res:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- res:
	default:
	}
}

// safeQuery runs query and converts a panic into an error result.
func safeQuery(query QueryFunc, q *Queries) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return query(q)
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("query panicked: %v", e.value)
}
