package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and valkey-less runs.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

func (s *MemoryStore) TrimAndCount(_ context.Context, identifier string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.windows[identifier]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.windows[identifier] = kept
	return int64(len(kept)), nil
}

func (s *MemoryStore) Add(_ context.Context, identifier string, ts time.Time, _ time.Duration) error {
	s.mu.Lock()
	s.windows[identifier] = append(s.windows[identifier], ts)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Oldest(_ context.Context, identifier string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.windows[identifier]
	if len(window) == 0 {
		return time.Time{}, nil
	}
	oldest := window[0]
	for _, ts := range window[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
	}
	return oldest, nil
}

func (s *MemoryStore) Reset(_ context.Context, identifier string) error {
	s.mu.Lock()
	delete(s.windows, identifier)
	s.mu.Unlock()
	return nil
}

// Snapshot returns the window timestamps in order, for tests.
func (s *MemoryStore) Snapshot(identifier string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]time.Time(nil), s.windows[identifier]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
