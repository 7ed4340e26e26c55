package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultTTL applies when issuance does not specify a lifetime.
	DefaultTTL = time.Hour
	// MaxTTL caps how long an issued token may live.
	MaxTTL = 24 * time.Hour

	rawTokenBytes = 48
)

var (
	// ErrIssuanceDisabled is returned when token issuance is switched off.
	ErrIssuanceDisabled = errors.New("token issuance is disabled")
	// ErrInvalidTTL is returned for non-positive or excessive lifetimes.
	ErrInvalidTTL = fmt.Errorf("token lifetime must be within (0, %s]", MaxTTL)
)

// Issued is a dynamically generated short-lived credential. Value is opaque;
// the string is URL-safe base64 and satisfies the token format accepted by
// the authenticator.
type Issued struct {
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Active    bool
}

// Expired reports whether the token's lifetime has elapsed at now.
func (i Issued) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Store holds issued tokens in memory. When singleActive is set, issuing a
// new token evicts every previously issued one, enforcing a single active
// token system-wide.
type Store struct {
	issuanceEnabled bool
	singleActive    bool
	clock           func() time.Time

	mu     sync.Mutex
	tokens map[string]*Issued
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithSingleActive toggles the one-active-token-at-a-time policy.
func WithSingleActive(enabled bool) StoreOption {
	return func(s *Store) {
		s.singleActive = enabled
	}
}

// WithIssuance toggles whether Issue is permitted at all. Issuance is a
// development convenience and ships disabled in a production posture.
func WithIssuance(enabled bool) StoreOption {
	return func(s *Store) {
		s.issuanceEnabled = enabled
	}
}

// NewStore constructs an empty token store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		clock:  func() time.Time { return time.Now().UTC() },
		tokens: make(map[string]*Issued),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a new token valid for ttl. Under the single-active policy
// all previously issued tokens are evicted in the same critical section, so
// concurrent issuance never leaves two active tokens behind.
func (s *Store) Issue(ttl time.Duration) (Issued, error) {
	if !s.issuanceEnabled {
		return Issued{}, ErrIssuanceDisabled
	}
	if ttl <= 0 || ttl > MaxTTL {
		return Issued{}, ErrInvalidTTL
	}

	value, err := generateValue()
	if err != nil {
		return Issued{}, fmt.Errorf("generate token: %w", err)
	}

	now := s.clock()
	issued := Issued{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Active:    true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.singleActive {
		s.tokens = make(map[string]*Issued, 1)
	}
	stored := issued
	s.tokens[value] = &stored
	return issued, nil
}

// Valid reports whether presented matches an issued token that is active and
// unexpired.
func (s *Store) Valid(presented string) bool {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[presented]
	if !ok {
		return false
	}
	if tok.Expired(now) {
		delete(s.tokens, presented)
		return false
	}
	return tok.Active
}

// Revoke deactivates and evicts the token with the given value. It reports
// whether the value was known.
func (s *Store) Revoke(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[value]
	if !ok {
		return false
	}
	tok.Active = false
	delete(s.tokens, value)
	return true
}

// List returns a snapshot of live tokens ordered by creation time, pruning
// expired ones as it goes.
func (s *Store) List() []Issued {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Issued, 0, len(s.tokens))
	for value, tok := range s.tokens {
		if tok.Expired(now) {
			delete(s.tokens, value)
			continue
		}
		out = append(out, *tok)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func generateValue() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
