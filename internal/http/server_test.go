package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvitt/internal/core"
	"kvitt/internal/gateway"
	"kvitt/internal/gateway/gatewaytest"
	klog "kvitt/internal/log"
	"kvitt/internal/session"
)

const nbsp = "\u00a0"

type testEnv struct {
	backend *gatewaytest.Backend
	server  *httptest.Server
	client  *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := gatewaytest.New(t)
	backend.AddUser("anna", "hemligt")

	mgr, err := session.NewManager(session.ManagerConfig{
		Gateway:     gateway.Config{BaseURL: backend.URL(), Timeout: 5 * time.Second},
		Storage:     session.NewMemoryStorage(),
		MaxSessions: 10,
		TTL:         time.Hour,
	})
	require.NoError(t, err)

	srv, err := NewServer(Config{
		Addr:            ":0",
		Sessions:        mgr,
		CookieMaxAge:    time.Hour,
		RateLimitPerMin: 1000,
		Checks: map[string]Check{
			"backend": func(context.Context) error { return nil },
		},
		Logger: klog.New(klog.Config{Level: slog.LevelError, Output: io.Discard}),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{backend: backend, server: ts, client: client}
}

type response struct {
	code   int
	header http.Header
	body   string
}

func (e *testEnv) do(t *testing.T, method, path string, form url.Values, htmx bool) response {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{code: resp.StatusCode, header: resp.Header, body: string(raw)}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/login", url.Values{"username": {"anna"}, "password": {"hemligt"}}, false)
	require.Equal(t, http.StatusSeeOther, resp.code)
	require.Equal(t, "/", resp.header.Get("Location"))
}

func TestGuardRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusSeeOther, resp.code)
	assert.Equal(t, "/login", resp.header.Get("Location"))

	resp = env.do(t, http.MethodGet, "/ui/overview", nil, true)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, "/login", resp.header.Get("HX-Redirect"))

	resp = env.do(t, http.MethodGet, "/login", nil, false)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Välkommen till Kvitt")
	assert.NotEmpty(t, resp.header.Get("Content-Security-Policy"))
	assert.NotEmpty(t, resp.header.Get("X-Request-ID"))
}

func TestLoginAndLogout(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/login", url.Values{"username": {"anna"}, "password": {"fel"}}, false)
	assert.Equal(t, http.StatusUnauthorized, resp.code)
	assert.Contains(t, resp.body, msgLoginFailed)
	assert.Contains(t, resp.body, `value="anna"`)

	resp = env.do(t, http.MethodPost, "/login", url.Values{"username": {"anna"}}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.code)

	env.login(t)
	resp = env.do(t, http.MethodGet, "/", nil, false)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Hej, anna!")
	assert.Contains(t, resp.body, "Inga transaktioner hittades")
	assert.Equal(t, "no-store", resp.header.Get("Cache-Control"))

	resp = env.do(t, http.MethodGet, "/login", nil, false)
	assert.Equal(t, http.StatusSeeOther, resp.code, "logged in users skip the login page")

	resp = env.do(t, http.MethodPost, "/logout", nil, false)
	assert.Equal(t, http.StatusSeeOther, resp.code)
	assert.Equal(t, 1, env.backend.Calls("/api/v1/kvittUser/logout"))

	resp = env.do(t, http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusSeeOther, resp.code)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/register", url.Values{"username": {"bo"}, "password": {"a"}, "confirm": {"b"}}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.code)
	assert.Contains(t, resp.body, msgPasswordMatch)
	assert.Zero(t, env.backend.Calls("/api/v1/kvittUser/create"))

	resp = env.do(t, http.MethodPost, "/register", url.Values{"username": {"bo"}, "password": {"pw"}, "confirm": {"pw"}}, false)
	assert.Equal(t, http.StatusSeeOther, resp.code)
	assert.Equal(t, "/login?registered=true", resp.header.Get("Location"))

	resp = env.do(t, http.MethodGet, "/login?registered=true", nil, false)
	assert.Contains(t, resp.body, msgRegistered)

	resp = env.do(t, http.MethodPost, "/register", url.Values{"username": {"bo"}, "password": {"pw"}, "confirm": {"pw"}}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.code)
	assert.Contains(t, resp.body, "Användarnamnet är upptaget")

	env.backend.Server.Close()
	resp = env.do(t, http.MethodPost, "/register", url.Values{"username": {"cy"}, "password": {"pw"}, "confirm": {"pw"}}, false)
	assert.Equal(t, http.StatusBadGateway, resp.code)
	assert.Contains(t, resp.body, msgNetworkError)
}

func TestCreateExpenseUpdatesBalance(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(6000), DateTime: "2025-01-01T08:00:00", Username: "anna", AccountType: "Vardag"})
	env.login(t)

	resp := env.do(t, http.MethodGet, "/ui/transactions/new?type=expense", nil, true)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Lägg till utgift")

	resp = env.do(t, http.MethodPost, "/transactions", url.Values{"title": {"Hyra"}, "amount": {"abc"}}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.code)
	assert.Contains(t, resp.body, "Vänligen ange ett giltigt belopp")
	assert.Zero(t, env.backend.Calls("/api/v1/event/create"))

	resp = env.do(t, http.MethodPost, "/transactions", url.Values{"title": {"Hyra"}, "amount": {"5000"}}, true)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, `<div id="modal"></div>`)
	assert.Contains(t, resp.body, `hx-swap-oob="true"`)
	assert.Contains(t, resp.body, "6"+nbsp+"000"+nbsp+"kr")
	assert.Contains(t, resp.body, "1"+nbsp+"000"+nbsp+"kr")
	assert.Contains(t, resp.header.Get("HX-Trigger"), "show-notification")

	events := env.backend.Events("anna")
	require.Len(t, events, 2)
	assert.Equal(t, "Hyra", events[1].Title)
	assert.True(t, events[1].Expense)
	assert.Equal(t, "Vardag", events[1].AccountType)
}

func TestSubmitWithoutOpenForm(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp := env.do(t, http.MethodPost, "/transactions", url.Values{"title": {"Hyra"}, "amount": {"1"}}, true)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, `<div id="modal"></div>`)
	assert.Zero(t, env.backend.Calls("/api/v1/event/create"))
}

func TestEditTransaction(t *testing.T) {
	env := newTestEnv(t)
	id := env.backend.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(6000), DateTime: "2025-01-01T08:00:00", Username: "anna", AccountType: "Vardag"})
	env.login(t)

	resp := env.do(t, http.MethodGet, "/ui/transactions/edit?id="+string(id), nil, true)
	assert.Equal(t, http.StatusNotFound, resp.code, "the list has not been fetched yet")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/", nil, false).code)
	resp = env.do(t, http.MethodGet, "/ui/transactions/edit?id="+string(id), nil, true)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Redigera inkomst")
	assert.Contains(t, resp.body, `value="6000"`)
	assert.Contains(t, resp.body, `value="2025-01-01"`)

	resp = env.do(t, http.MethodPost, "/transactions", url.Values{"title": {"Lön"}, "amount": {"6500"}, "date": {"2025-01-01"}}, true)
	require.Equal(t, http.StatusOK, resp.code)
	events := env.backend.Events("anna")
	require.Len(t, events, 1)
	assert.Equal(t, "6500", events[0].Amount.String())
	assert.Equal(t, "2025-01-01T08:00:00", events[0].DateTime)
}

func TestCancelClosesModal(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	env.do(t, http.MethodGet, "/ui/transactions/new?type=income", nil, true)
	resp := env.do(t, http.MethodPost, "/ui/transactions/cancel", nil, true)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, `<div id="modal"></div>`)

	resp = env.do(t, http.MethodGet, "/ui/transactions/new?type=loan", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.code)
}

func TestDeleteTransaction(t *testing.T) {
	env := newTestEnv(t)
	keep := env.backend.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(6000), DateTime: "2025-01-01T08:00:00", Username: "anna"})
	drop := env.backend.AddEvent(core.Event{Title: "Hyra", Amount: core.AmountFromInt(5000), Expense: true, DateTime: "2025-01-02T08:00:00", Username: "anna"})
	env.login(t)

	env.backend.Fail("/api/v1/event/delete", http.StatusInternalServerError)
	resp := env.do(t, http.MethodDelete, "/transactions/delete?id="+string(drop), nil, true)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, msgDeleteFailed)
	assert.Len(t, env.backend.Events("anna"), 2)

	env.backend.Fail("/api/v1/event/delete", 0)
	resp = env.do(t, http.MethodDelete, "/transactions/delete?id="+string(drop), nil, true)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.NotContains(t, resp.body, msgDeleteFailed)
	assert.Contains(t, resp.body, "6"+nbsp+"000"+nbsp+"kr")
	events := env.backend.Events("anna")
	require.Len(t, events, 1)
	assert.Equal(t, keep, events[0].ID)

	resp = env.do(t, http.MethodPost, "/transactions/delete", url.Values{"id": {string(keep)}}, true)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Empty(t, env.backend.Events("anna"))

	resp = env.do(t, http.MethodDelete, "/transactions/delete", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.code)
}

func TestExpiredBackendSessionLogsOut(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	env.backend.Fail("/api/v1/event/getAllEvents", http.StatusUnauthorized)
	resp := env.do(t, http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusSeeOther, resp.code)
	assert.Equal(t, "/login", resp.header.Get("Location"))

	env.backend.Fail("/api/v1/event/getAllEvents", 0)
	resp = env.do(t, http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusSeeOther, resp.code, "the session stays logged out")
}

func TestExpiredBackendSessionOnDelete(t *testing.T) {
	env := newTestEnv(t)
	id := env.backend.AddEvent(core.Event{Title: "Hyra", Amount: core.AmountFromInt(5000), Expense: true, DateTime: "2025-01-02T08:00:00", Username: "anna"})
	env.login(t)

	env.backend.Fail("/api/v1/event/delete", http.StatusUnauthorized)
	resp := env.do(t, http.MethodDelete, "/transactions/delete?id="+string(id), nil, true)
	assert.Equal(t, "/login", resp.header.Get("HX-Redirect"))
	assert.Len(t, env.backend.Events("anna"), 1)

	resp = env.do(t, http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusSeeOther, resp.code)
}

func TestPartialFailureDegradesOverview(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(6000), DateTime: "2025-01-01T08:00:00", Username: "anna"})
	env.login(t)

	env.backend.Fail("/api/v1/event/getKvittStatus", http.StatusInternalServerError)
	resp := env.do(t, http.MethodGet, "/ui/overview", nil, true)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, msgRefreshDegraded)
	assert.Contains(t, resp.body, "Lön")
	assert.NotContains(t, resp.body, "GRATTIS")
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp := env.do(t, http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusOK, resp.code, path)
		assert.Equal(t, "application/json", resp.header.Get("Content-Type"), path)
	}

	resp := env.do(t, http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "kvitt_http_requests_total")

	resp = env.do(t, http.MethodGet, "/static/app.css", nil, false)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, "public, max-age=3600", resp.header.Get("Cache-Control"))
}

func TestReadyReportsFailedCheck(t *testing.T) {
	mgr, err := session.NewManager(session.ManagerConfig{
		Gateway: gateway.Config{BaseURL: "http://localhost:1"},
		Storage: session.NewMemoryStorage(),
	})
	require.NoError(t, err)
	srv, err := NewServer(Config{
		Sessions: mgr,
		Checks: map[string]Check{
			"storage": func(context.Context) error { return assert.AnError },
		},
		Logger: klog.New(klog.Config{Level: slog.LevelError, Output: io.Discard}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"storage":"failed: `)
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	mgr, err := session.NewManager(session.ManagerConfig{
		Gateway: gateway.Config{BaseURL: "http://localhost:1"},
		Storage: session.NewMemoryStorage(),
	})
	require.NoError(t, err)
	srv, err := NewServer(Config{
		Sessions:        mgr,
		RateLimitPerMin: 1,
		Logger:          klog.New(klog.Config{Level: slog.LevelError, Output: io.Discard}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	post := func() int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=&password="))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusUnprocessableEntity, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
}
