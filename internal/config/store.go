package config

import (
	"sync"
	"sync/atomic"
)

// Store holds the live configuration snapshot. Readers get a consistent
// Config without locking; Replace swaps the whole snapshot and notifies
// subscribers, so gates never observe a partially updated configuration.
type Store struct {
	value atomic.Value // Config

	mu          sync.Mutex // serializes writers and the subscriber list
	subscribers []func(Config)
}

// NewStore constructs a Store seeded with cfg.
func NewStore(cfg Config) *Store {
	s := &Store{}
	s.value.Store(cfg)
	return s
}

// Current returns the live configuration snapshot.
func (s *Store) Current() Config {
	return s.value.Load().(Config)
}

// Replace swaps the snapshot and invokes every subscriber with the new
// configuration. Subscribers run synchronously under the writer lock, so a
// reload is fully applied before Replace returns.
func (s *Store) Replace(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value.Store(cfg)
	for _, fn := range s.subscribers {
		fn(cfg)
	}
}

// Subscribe registers fn to run on every future Replace. Callers initialize
// themselves from Current before subscribing.
func (s *Store) Subscribe(fn func(Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}
