package kvstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/transportops/field-service-api/internal/ports/out/kvstore"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	value    string
	deadline time.Time // zero means no TTL
}

// Store is an in-memory implementation of kvstore.Store.
// It is safe for concurrent use.
type Store struct {
	clock Clock

	mu sync.Mutex
	m  map[string]entry
}

func NewStore() *Store {
	return NewStoreWithClock(nil)
}

func NewStoreWithClock(clock Clock) *Store {
	if clock == nil {
		clock = realClock{}
	}
	return &Store{
		clock: clock,
		m:     make(map[string]entry),
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = entry{value: value, deadline: s.deadline(ttl)}
	return nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		// Redis semantics: INCR on a missing key creates it at 1, no TTL.
		s.m[key] = entry{value: "1"}
		return 1, nil
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, kvstore.ErrNotInteger
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	s.m[key] = e
	return n, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return nil
	}
	e.deadline = s.deadline(ttl)
	s.m[key] = e
	return nil
}

// live returns the entry at key, evicting it first if its TTL has lapsed.
// Callers must hold s.mu.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.m[key]
	if !ok {
		return entry{}, false
	}
	if !e.deadline.IsZero() && !s.clock.Now().Before(e.deadline) {
		delete(s.m, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.clock.Now().Add(ttl)
}
