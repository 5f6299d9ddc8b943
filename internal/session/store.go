// Package session owns who is logged in.
//
// A Store is the single source of truth for one browser: it restores the
// identity persisted in its Cache, performs login and logout through an
// Authenticator and tells subscribers about every transition. A Manager maps
// browser session ids to Stores and their backend clients.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kvitt/internal/core"
)

// UserKey is the cache key of the persisted identity.
const UserKey = "user"

// Authenticator performs the backend side of login and logout.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (core.User, error)
	Logout(ctx context.Context) error
}

// State is a snapshot of a Store. User is nil when unauthenticated; Loading is
// true only until Restore has run.
type State struct {
	User    *core.User
	Loading bool
}

// Authenticated reports whether a user is logged in.
func (s State) Authenticated() bool {
	return s.User != nil
}

type record struct {
	Username  string     `json:"username"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithExpiry sets the source of the credential expiry recorded on login.
func WithExpiry(fn func() (time.Time, bool)) StoreOption {
	return func(s *Store) { s.expiry = fn }
}

// WithStoreClock overrides time.Now.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// Store holds the authenticated identity of one browser session.
type Store struct {
	auth   Authenticator
	cache  Cache
	expiry func() (time.Time, bool)
	now    func() time.Time

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
	closed  bool
}

// NewStore creates a store in the loading state.
func NewStore(auth Authenticator, cache Cache, opts ...StoreOption) *Store {
	s := &Store{
		auth:  auth,
		cache: cache,
		now:   time.Now,
		state: State{Loading: true},
		subs:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted identity. A record that cannot be used is
// removed and the store continues unauthenticated. Loading is false afterwards.
func (s *Store) Restore(ctx context.Context) {
	user := s.readRecord(ctx)

	s.mu.Lock()
	s.state = State{User: user}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) readRecord(ctx context.Context) *core.User {
	raw, ok, err := s.cache.Get(ctx, UserKey)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read persisted user", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var rec record
	reason := ""
	switch {
	case json.Unmarshal(raw, &rec) != nil:
		reason = "malformed"
	case strings.TrimSpace(rec.Username) == "":
		reason = "empty username"
	case rec.ExpiresAt != nil && !s.now().Before(*rec.ExpiresAt):
		reason = "expired"
	}
	if reason != "" {
		slog.WarnContext(ctx, "Discarding persisted user", "reason", reason)
		if err := s.cache.Delete(ctx, UserKey); err != nil {
			slog.WarnContext(ctx, "Failed to delete persisted user", "error", err)
		}
		return nil
	}
	return &core.User{Username: rec.Username}
}

// Login authenticates against the backend. It reports success and never
// returns an error; failures are logged and leave the store unauthenticated.
func (s *Store) Login(ctx context.Context, username, password string) bool {
	user, err := s.auth.Login(ctx, username, password)
	if err != nil {
		slog.WarnContext(ctx, "Login failed", "username", username, "error", err)
		s.clear(ctx)
		return false
	}
	if !user.Valid() {
		slog.WarnContext(ctx, "Login returned no user", "username", username)
		s.clear(ctx)
		return false
	}

	rec := record{Username: user.Username}
	if s.expiry != nil {
		if exp, ok := s.expiry(); ok {
			rec.ExpiresAt = &exp
		}
	}
	if raw, err := json.Marshal(rec); err == nil {
		if err := s.cache.Set(ctx, UserKey, raw); err != nil {
			slog.WarnContext(ctx, "Failed to persist user", "error", err)
		}
	}

	s.mu.Lock()
	s.state = State{User: &user}
	s.mu.Unlock()
	s.notify()

	slog.InfoContext(ctx, "User logged in", "username", user.Username)
	return true
}

// Logout forgets the user locally, notifies subscribers and then asks the
// backend to revoke the credential. The backend call is best effort.
func (s *Store) Logout(ctx context.Context) {
	s.clear(ctx)
	if err := s.auth.Logout(ctx); err != nil {
		slog.WarnContext(ctx, "Backend logout failed", "error", err)
	}
}

// clear drops the user from memory and cache. Subscribers are notified only
// when the state changes.
func (s *Store) clear(ctx context.Context) {
	if err := s.cache.Delete(ctx, UserKey); err != nil {
		slog.WarnContext(ctx, "Failed to delete persisted user", "error", err)
	}
	s.mu.Lock()
	changed := s.state.User != nil || s.state.Loading
	s.state = State{}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// User returns the logged in user, if any.
func (s *Store) User() (core.User, bool) {
	st := s.State()
	if st.User == nil {
		return core.User{}, false
	}
	return *st.User, true
}

// Subscribe registers fn for every future transition. Calling the returned
// function unsubscribes.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notify runs subscribers synchronously, outside the lock, with the state
// current at call time.
func (s *Store) notify() {
	st := s.State()
	s.mu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// Close drops every subscriber. The store stays usable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[int]func(State))
}
