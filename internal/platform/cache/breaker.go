package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit around a remote Store.
type BreakerConfig struct {
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
	}
}

// BreakerStore stops calling the wrapped Store after repeated failures.
// While open, reads miss and writes are dropped. Invalidations that could not
// be delivered (Incr, DeletePrefix) are owed: they are replayed before the
// next call reaches the store, and until they land every read misses.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[[]byte]

	mu         sync.Mutex
	owedIncr   map[string]struct{}
	owedDelete map[string]struct{}
}

func NewBreakerStore(next Store, cfg BreakerConfig, log zerolog.Logger) *BreakerStore {
	if cfg.FailureThreshold == 0 {
		cfg = DefaultBreakerConfig()
	}
	settings := gobreaker.Settings{
		Name:        "cache",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("cache circuit breaker state changed")
		},
	}
	return &BreakerStore{
		next:       next,
		cb:         gobreaker.NewCircuitBreaker[[]byte](settings),
		owedIncr:   make(map[string]struct{}),
		owedDelete: make(map[string]struct{}),
	}
}

func isOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (s *BreakerStore) incr(ctx context.Context, key string) (int64, error) {
	var n int64
	_, err := s.cb.Execute(func() ([]byte, error) {
		var err error
		n, err = s.next.Incr(ctx, key)
		return nil, err
	})
	return n, err
}

func (s *BreakerStore) deletePrefix(ctx context.Context, prefix string) error {
	_, err := s.cb.Execute(func() ([]byte, error) { return nil, s.next.DeletePrefix(ctx, prefix) })
	return err
}

// settle replays owed invalidations and reports whether none are left.
func (s *BreakerStore) settle(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.owedIncr {
		if _, err := s.incr(ctx, key); err != nil {
			return false
		}
		delete(s.owedIncr, key)
	}
	for prefix := range s.owedDelete {
		if err := s.deletePrefix(ctx, prefix); err != nil {
			return false
		}
		delete(s.owedDelete, prefix)
	}
	return true
}

func (s *BreakerStore) owe(set map[string]struct{}, key string) {
	s.mu.Lock()
	set[key] = struct{}{}
	s.mu.Unlock()
}

// Owed reports how many invalidations are waiting to be replayed.
func (s *BreakerStore) Owed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owedIncr) + len(s.owedDelete)
}

func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.settle(ctx) {
		return nil, ErrMiss
	}
	v, err := s.cb.Execute(func() ([]byte, error) { return s.next.Get(ctx, key) })
	if isOpen(err) {
		return nil, ErrMiss
	}
	return v, err
}

func (s *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.settle(ctx) {
		return nil
	}
	_, err := s.cb.Execute(func() ([]byte, error) { return nil, s.next.Set(ctx, key, value, ttl) })
	if isOpen(err) {
		return nil
	}
	return err
}

func (s *BreakerStore) Incr(ctx context.Context, key string) (int64, error) {
	s.settle(ctx)
	n, err := s.incr(ctx, key)
	if err != nil {
		s.owe(s.owedIncr, key)
	}
	return n, err
}

func (s *BreakerStore) DeletePrefix(ctx context.Context, prefix string) error {
	s.settle(ctx)
	err := s.deletePrefix(ctx, prefix)
	if err != nil {
		s.owe(s.owedDelete, prefix)
	}
	return err
}

// State reports the breaker state for health output.
func (s *BreakerStore) State() string { return s.cb.State().String() }
