package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvitt/internal/core"
	"kvitt/internal/form"
	"kvitt/internal/gateway"
	"kvitt/internal/gateway/gatewaytest"
)

func newManager(t *testing.T, backend *gatewaytest.Backend, storage Storage, max int) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{
		Gateway:     gateway.Config{BaseURL: backend.URL(), Timeout: 5 * time.Second},
		Storage:     storage,
		MaxSessions: max,
		TTL:         time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(ManagerConfig{Gateway: gateway.Config{BaseURL: "http://localhost"}})
	assert.Error(t, err)

	_, err = NewManager(ManagerConfig{Gateway: gateway.Config{BaseURL: "nope"}, Storage: NewMemoryStorage()})
	assert.Error(t, err)
}

func TestManagerOpenAssignsIDs(t *testing.T) {
	m := newManager(t, gatewaytest.New(t), NewMemoryStorage(), 10)
	ctx := context.Background()

	s, err := m.Open(ctx, "")
	require.NoError(t, err)
	_, err = uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.False(t, s.Store.State().Loading)

	again, err := m.Open(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, again)

	other, err := m.Open(ctx, "../../etc/passwd")
	require.NoError(t, err)
	assert.NotEqual(t, "../../etc/passwd", other.ID)
	assert.Equal(t, 2, m.Len())
}

func TestManagerLoginLogoutAgainstBackend(t *testing.T) {
	backend := gatewaytest.New(t)
	backend.AddUser("anna", "hemligt")
	backend.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(6000), DateTime: "2025-01-01T08:00:00", Username: "anna"})
	m := newManager(t, backend, NewMemoryStorage(), 10)
	ctx := context.Background()

	s, err := m.Open(ctx, "")
	require.NoError(t, err)

	require.True(t, s.Store.Login(ctx, "anna", "hemligt"))
	require.NoError(t, s.Refresh(ctx))
	snap := s.Dashboard.Snapshot()
	require.NotNil(t, snap.Summary)
	assert.Equal(t, "6000", snap.Summary.TotalIncome.String())

	s.Store.Logout(ctx)
	assert.Equal(t, 1, backend.Calls("/api/v1/kvittUser/logout"))
	assert.Empty(t, s.Client.Cookies())
	assert.Nil(t, s.Dashboard.Snapshot().Summary)
	assert.Error(t, s.Refresh(ctx))
}

func TestManagerLoginAsOtherUserDropsPreviousData(t *testing.T) {
	backend := gatewaytest.New(t)
	backend.AddUser("anna", "hemligt")
	backend.AddUser("bertil", "losen")
	backend.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(6000), DateTime: "2025-01-01T08:00:00", Username: "anna"})
	m := newManager(t, backend, NewMemoryStorage(), 10)
	ctx := context.Background()

	s, err := m.Open(ctx, "")
	require.NoError(t, err)
	require.True(t, s.Store.Login(ctx, "anna", "hemligt"))
	require.NoError(t, s.Refresh(ctx))
	events := s.Dashboard.Snapshot().Events
	require.Len(t, events, 1)
	s.Form.OpenEdit(events[0])

	require.True(t, s.Store.Login(ctx, "bertil", "losen"))
	snap := s.Dashboard.Snapshot()
	assert.Nil(t, snap.Summary)
	assert.Empty(t, snap.Events)
	assert.IsType(t, form.Closed{}, s.Form.State())

	require.NoError(t, s.Refresh(ctx))
	require.True(t, s.Store.Login(ctx, "bertil", "losen"))
	assert.NotNil(t, s.Dashboard.Snapshot().Summary, "logging in again as the same user keeps the dashboard")
}

func TestManagerRebuildsEvictedSessionFromStorage(t *testing.T) {
	backend := gatewaytest.New(t)
	backend.AddUser("anna", "hemligt")
	backend.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(100), DateTime: "2025-01-01", Username: "anna"})
	storage := NewMemoryStorage()
	m := newManager(t, backend, storage, 1)
	ctx := context.Background()

	first, err := m.Open(ctx, "")
	require.NoError(t, err)
	require.True(t, first.Store.Login(ctx, "anna", "hemligt"))

	// Pushes the first session out of the LRU.
	_, err = m.Open(ctx, "")
	require.NoError(t, err)

	rebuilt, err := m.Open(ctx, first.ID)
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
	assert.Equal(t, "anna", rebuilt.Username())
	require.NoError(t, rebuilt.Refresh(ctx), "persisted backend cookie should authenticate the rebuilt client")
	assert.Len(t, rebuilt.Dashboard.Snapshot().Events, 1)
}

func TestManagerDropsExpiredPersistedUser(t *testing.T) {
	backend := gatewaytest.New(t)
	backend.AddUser("anna", "hemligt")
	backend.SetTokenTTL(-time.Minute)
	m := newManager(t, backend, NewMemoryStorage(), 1)
	ctx := context.Background()

	first, err := m.Open(ctx, "")
	require.NoError(t, err)
	require.True(t, first.Store.Login(ctx, "anna", "hemligt"))

	m.Forget(first.ID)
	rebuilt, err := m.Open(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "", rebuilt.Username())
	assert.Empty(t, rebuilt.Client.Cookies())
}

func TestMemoryStoragePrune(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.Cache("a").Set(ctx, UserKey, []byte(`{}`)))

	n, err := s.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.Prune(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, _ := s.Cache("a").Get(ctx, UserKey)
	assert.False(t, ok)
}

func TestManagerOpenKeepsPersistedStateAlive(t *testing.T) {
	backend := gatewaytest.New(t)
	backend.AddUser("anna", "hemligt")
	storage := NewMemoryStorage()
	m := newManager(t, backend, storage, 10)
	ctx := context.Background()

	s, err := m.Open(ctx, "")
	require.NoError(t, err)
	require.True(t, s.Store.Login(ctx, "anna", "hemligt"))

	// Logged in long ago and in use ever since.
	storage.mu.Lock()
	storage.caches[s.ID].touched = time.Now().Add(-2 * time.Hour)
	storage.mu.Unlock()

	again, err := m.Open(ctx, s.ID)
	require.NoError(t, err)
	require.Same(t, s, again)

	n, err := storage.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok, _ := storage.Cache(s.ID).Get(ctx, UserKey)
	assert.True(t, ok)
}

func TestManagerConcurrentOpenSharesSession(t *testing.T) {
	m := newManager(t, gatewaytest.New(t), NewMemoryStorage(), 10)
	id := uuid.NewString()

	const n = 8
	got := make(chan *Session, n)
	for i := 0; i < n; i++ {
		go func() {
			s, err := m.Open(context.Background(), id)
			assert.NoError(t, err)
			got <- s
		}()
	}
	first := <-got
	for i := 1; i < n; i++ {
		assert.Same(t, first, <-got)
	}
	assert.Equal(t, 1, m.Len())
}
