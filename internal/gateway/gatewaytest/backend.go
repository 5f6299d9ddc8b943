// Package gatewaytest provides an in-memory Kvitt backend for tests.
//
// It speaks the same REST surface as the real service: bcrypt-hashed
// passwords, an HS256 JWT in an HttpOnly cookie, per-user events and the
// derived totals and kvitt status.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"kvitt/internal/core"
)

// CookieName is the name of the session cookie the backend issues.
const CookieName = "jwt"

// TotalShape selects how total endpoints encode their value.
type TotalShape int

const (
	TotalObject TotalShape = iota // {"totalIncome": 6000}
	TotalNumber                   // 6000
	TotalString                   // "6000"
)

// Backend is a fake Kvitt service.
type Backend struct {
	Server *httptest.Server

	mu         sync.Mutex
	key        []byte
	tokenTTL   time.Duration
	users      map[string][]byte
	events     map[string][]core.Event
	nextID     int
	revoked    map[string]bool
	failures   map[string]int
	calls      map[string]int
	totalShape TotalShape
	stringAmts bool
}

// New starts a backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		key:        []byte("test-signing-key"),
		tokenTTL:   time.Hour,
		users:      make(map[string][]byte),
		events:     make(map[string][]core.Event),
		nextID:     1,
		revoked:    make(map[string]bool),
		failures:   make(map[string]int),
		calls:      make(map[string]int),
		stringAmts: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/kvittUser/create", b.handleRegister)
	mux.HandleFunc("/api/v1/kvittUser/login", b.handleLogin)
	mux.HandleFunc("/api/v1/kvittUser/logout", b.handleLogout)
	mux.HandleFunc("/api/v1/event/getTotalIncome", b.authed(b.handleTotal(false)))
	mux.HandleFunc("/api/v1/event/getTotalExpense", b.authed(b.handleTotal(true)))
	mux.HandleFunc("/api/v1/event/getKvittStatus", b.authed(b.handleKvitt))
	mux.HandleFunc("/api/v1/event/getAllEvents", b.authed(b.handleList))
	mux.HandleFunc("/api/v1/event/create", b.authed(b.handleCreate))
	mux.HandleFunc("/api/v1/event/edit", b.authed(b.handleEdit))
	mux.HandleFunc("/api/v1/event/delete", b.authed(b.handleDelete))

	b.Server = httptest.NewServer(b.count(mux))
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the backend origin.
func (b *Backend) URL() string { return b.Server.URL }

// AddUser registers username directly.
func (b *Backend) AddUser(username, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[username] = hash
}

// AddEvent stores e for its username and returns the assigned id.
func (b *Backend) AddEvent(e core.Event) core.EventID {
	b.mu.Lock()
	defer b.mu.Unlock()
	e.ID = core.EventID(strconv.Itoa(b.nextID))
	b.nextID++
	b.events[e.Username] = append(b.events[e.Username], e)
	return e.ID
}

// Events returns a copy of the stored events of username.
func (b *Backend) Events(username string) []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.Event, len(b.events[username]))
	copy(out, b.events[username])
	return out
}

// Fail makes every request to path answer with status until cleared with 0.
func (b *Backend) Fail(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, path)
		return
	}
	b.failures[path] = status
}

// Calls returns how many requests hit path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// SetTotalShape changes the encoding of the total endpoints.
func (b *Backend) SetTotalShape(s TotalShape) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalShape = s
}

// SetTokenTTL changes the lifetime of tokens issued from now on.
func (b *Backend) SetTokenTTL(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenTTL = d
}

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		status := b.failures[r.URL.Path]
		b.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(CookieName)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing token"})
			return
		}
		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(ck.Value, claims, func(*jwt.Token) (interface{}, error) {
			return b.key, nil
		})
		b.mu.Lock()
		revoked := b.revoked[ck.Value]
		b.mu.Unlock()
		if err != nil || !token.Valid || revoked {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		if u := r.URL.Query().Get("username"); u != "" && u != claims.Subject {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
			return
		}
		next(w, r, claims.Subject)
	}
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Användarnamn och lösenord krävs"})
		return
	}
	b.mu.Lock()
	_, exists := b.users[req.Username]
	b.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Användarnamnet är upptaget"})
		return
	}
	b.AddUser(req.Username, req.Password)
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	b.mu.Lock()
	hash, ok := b.users[req.Username]
	ttl := b.tokenTTL
	b.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Fel användarnamn eller lösenord"})
		return
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   req.Username,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString(b.key)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: signed, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"username": req.Username})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(CookieName); err == nil {
		b.mu.Lock()
		b.revoked[ck.Value] = true
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleTotal(expense bool) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, username string) {
		b.mu.Lock()
		total := decimal.Zero
		for _, e := range b.events[username] {
			if e.Expense == expense {
				total = total.Add(e.Amount.Decimal)
			}
		}
		shape := b.totalShape
		b.mu.Unlock()

		switch shape {
		case TotalNumber:
			writeRaw(w, total.String())
		case TotalString:
			writeJSON(w, http.StatusOK, total.String())
		default:
			field := "totalIncome"
			if expense {
				field = "totalExpense"
			}
			writeRaw(w, fmt.Sprintf(`{%q: %s}`, field, total.String()))
		}
	}
}

// settle walks events chronologically and pays expenses out of accumulated income.
func settle(events []core.Event) (status core.KvittStatus, paid map[core.EventID]bool) {
	sorted := make([]core.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, _ := sorted[i].Time()
		tj, _ := sorted[j].Time()
		return ti.Before(tj)
	})
	available := decimal.Zero
	for _, e := range sorted {
		if !e.Expense {
			available = available.Add(e.Amount.Decimal)
		}
	}
	paid = make(map[core.EventID]bool)
	for _, e := range sorted {
		if !e.Expense {
			continue
		}
		if available.GreaterThanOrEqual(e.Amount.Decimal) {
			available = available.Sub(e.Amount.Decimal)
			paid[e.ID] = true
			status.LastKvittDate = e.DateTime
			continue
		}
		status.ExpensesBack++
	}
	return status, paid
}

func (b *Backend) handleKvitt(w http.ResponseWriter, r *http.Request, username string) {
	b.mu.Lock()
	status, _ := settle(b.events[username])
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, status)
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request, username string) {
	b.mu.Lock()
	events := b.events[username]
	_, paid := settle(events)
	stringAmts := b.stringAmts
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		var amount any = e.Amount.Decimal.InexactFloat64()
		if stringAmts {
			amount = e.Amount.String()
		}
		out = append(out, map[string]any{
			"id":          e.ID.String(),
			"title":       e.Title,
			"amount":      amount,
			"expense":     e.Expense,
			"paid":        paid[e.ID],
			"dateTime":    e.DateTime,
			"username":    e.Username,
			"accountType": e.AccountType,
		})
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) decodeEvent(w http.ResponseWriter, r *http.Request, username string) (core.Event, bool) {
	var e core.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return e, false
	}
	if e.Username != username {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
		return e, false
	}
	if err := e.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return e, false
	}
	return e, true
}

func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request, username string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	e, ok := b.decodeEvent(w, r, username)
	if !ok {
		return
	}
	id := b.AddEvent(e)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

func (b *Backend) handleEdit(w http.ResponseWriter, r *http.Request, username string) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	e, ok := b.decodeEvent(w, r, username)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.events[username] {
		if existing.ID == e.ID {
			b.events[username][i] = e
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request, username string) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := core.EventID(r.URL.Query().Get("id"))
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.events[username]
	for i, e := range events {
		if e.ID == id {
			b.events[username] = append(events[:i:i], events[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
