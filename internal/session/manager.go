package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"kvitt/internal/cache"
	"kvitt/internal/form"
	"kvitt/internal/gateway"
	"kvitt/internal/services"
	"kvitt/internal/view"
)

// CookiesKey is the cache key of the persisted backend cookies.
const CookiesKey = "cookies"

// Session is everything the server keeps for one browser.
type Session struct {
	ID           string
	Store        *Store
	Client       *gateway.Client
	Dashboard    *view.Dashboard
	Form         *form.Controller
	Transactions *services.TransactionService

	unsubscribe func()
	lastTouch   atomic.Int64
}

// Username returns the logged in username or "".
func (s *Session) Username() string {
	if u, ok := s.Store.User(); ok {
		return u.Username
	}
	return ""
}

// Refresh reloads the dashboard for the logged in user.
func (s *Session) Refresh(ctx context.Context) error {
	username := s.Username()
	if username == "" {
		return errors.New("session: not logged in")
	}
	return s.Dashboard.Refresh(ctx, username)
}

func (s *Session) close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Store.Close()
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Gateway     gateway.Config
	Storage     Storage
	Publisher   services.Publisher
	MaxSessions int
	TTL         time.Duration
	AccountType string
}

// Manager keeps the live sessions of the server in an LRU cache. Evicted
// sessions keep their persisted state and are rebuilt on the next request.
type Manager struct {
	cfg      ManagerConfig
	sessions *cache.LRUCache[*Session]
	janitor  *cache.Janitor
	builds   singleflight.Group
}

// NewManager creates a manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Storage == nil {
		return nil, errors.New("session: nil storage")
	}
	if _, err := gateway.New(cfg.Gateway); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	m := &Manager{cfg: cfg}
	m.sessions = cache.NewLRUCache(cfg.MaxSessions, cfg.TTL,
		cache.WithEvict(func(id string, s *Session) {
			slog.Debug("Session evicted", "session_id", id)
			s.close()
		}))
	m.janitor = cache.NewJanitor(func(removed int) {
		slog.Info("Expired sessions swept", "count", removed)
	}, m.sessions)
	return m, nil
}

// Run sweeps idle sessions and prunes abandoned persisted state until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	go m.janitor.Run(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-m.janitor.Done()
			return
		case <-ticker.C:
			m.prune(ctx)
		}
	}
}

func (m *Manager) prune(ctx context.Context) {
	if m.cfg.TTL <= 0 {
		return
	}
	n, err := m.cfg.Storage.Prune(ctx, time.Now().Add(-m.cfg.TTL))
	if err != nil {
		slog.WarnContext(ctx, "Failed to prune persisted sessions", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pruned persisted sessions", "count", n)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Open returns the live session for id, rebuilding it from storage when it
// is not in memory. An empty or malformed id gets a fresh one.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
		if s, ok := m.sessions.Get(id); ok {
			m.touch(ctx, s)
			return s, nil
		}
	} else {
		id = uuid.NewString()
	}

	// Parallel requests of one browser share a single rebuild.
	v, err, _ := m.builds.Do(id, func() (any, error) {
		if s, ok := m.sessions.Get(id); ok {
			return s, nil
		}
		s, err := m.build(ctx, id)
		if err != nil {
			return nil, err
		}
		m.sessions.Set(id, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// touch keeps the persisted state of a live session from being pruned while
// the LRU still holds it. Writes are spaced a tenth of the TTL apart.
func (m *Manager) touch(ctx context.Context, s *Session) {
	if m.cfg.TTL <= 0 {
		return
	}
	now := time.Now().UnixNano()
	last := s.lastTouch.Load()
	if now-last < int64(m.cfg.TTL/10) || !s.lastTouch.CompareAndSwap(last, now) {
		return
	}
	if err := m.cfg.Storage.Touch(ctx, s.ID); err != nil {
		slog.WarnContext(ctx, "Failed to touch persisted session", "session_id", s.ID, "error", err)
	}
}

// Forget drops a live session, e.g. after logout.
func (m *Manager) Forget(id string) {
	m.sessions.Delete(id)
}

func (m *Manager) build(ctx context.Context, id string) (*Session, error) {
	client, err := gateway.New(m.cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	store := m.cfg.Storage.Cache(id)
	restoreCookies(ctx, store, client)

	s := &Session{
		ID:           id,
		Client:       client,
		Store:        NewStore(client, store, WithExpiry(client.TokenExpiry)),
		Dashboard:    view.NewDashboard(client),
		Transactions: services.NewTransactionService(client, m.cfg.Publisher),
	}
	s.Form = form.NewController(s.Transactions, s.Refresh, form.WithAccountType(m.cfg.AccountType))

	// Transitions happen in later requests; ctx only lives as long as this one.
	bg := context.WithoutCancel(ctx)
	var (
		ownerMu sync.Mutex
		owner   string
	)
	s.unsubscribe = s.Store.Subscribe(func(st State) {
		if st.Loading {
			return
		}
		ownerMu.Lock()
		prev := owner
		owner = ""
		if st.Authenticated() {
			owner = st.User.Username
		}
		ownerMu.Unlock()

		if st.Authenticated() {
			// Another user logged in over this browser session.
			if prev != "" && prev != owner {
				s.Dashboard.Reset()
				s.Form.Cancel()
			}
			saveCookies(bg, store, client)
			return
		}
		s.Dashboard.Reset()
		s.Form.Cancel()
		if err := store.Delete(bg, CookiesKey); err != nil {
			slog.WarnContext(bg, "Failed to delete persisted cookies", "session_id", id, "error", err)
		}
	})
	s.Store.Restore(ctx)
	if _, ok := s.Store.User(); !ok {
		client.ResetCookies()
	}
	return s, nil
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func saveCookies(ctx context.Context, c Cache, client *gateway.Client) {
	var out []storedCookie
	for _, ck := range client.Cookies() {
		out = append(out, storedCookie{Name: ck.Name, Value: ck.Value})
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := c.Set(context.WithoutCancel(ctx), CookiesKey, raw); err != nil {
		slog.WarnContext(ctx, "Failed to persist backend cookies", "error", err)
	}
}

func restoreCookies(ctx context.Context, c Cache, client *gateway.Client) {
	raw, ok, err := c.Get(ctx, CookiesKey)
	if err != nil || !ok {
		return
	}
	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		slog.WarnContext(ctx, "Discarding malformed persisted cookies", "error", err)
		_ = c.Delete(ctx, CookiesKey)
		return
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	client.SetCookies(cookies)
}
