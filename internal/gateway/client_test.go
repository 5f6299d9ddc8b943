package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvitt/internal/core"
	"kvitt/internal/gateway"
	"kvitt/internal/gateway/gatewaytest"
)

func newClient(t *testing.T, b *gatewaytest.Backend) *gateway.Client {
	t.Helper()
	c, err := gateway.New(gateway.Config{BaseURL: b.URL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func loggedIn(t *testing.T) (*gatewaytest.Backend, *gateway.Client) {
	t.Helper()
	b := gatewaytest.New(t)
	b.AddUser("anna", "hemligt")
	c := newClient(t, b)
	user, err := c.Login(context.Background(), "anna", "hemligt")
	require.NoError(t, err)
	require.Equal(t, "anna", user.Username)
	return b, c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com", "://nope"} {
		_, err := gateway.New(gateway.Config{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestLoginStoresCookie(t *testing.T) {
	_, c := loggedIn(t)

	cookies := c.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, gatewaytest.CookieName, cookies[0].Name)

	exp, ok := c.TokenExpiry()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)
}

func TestLoginWrongPassword(t *testing.T) {
	b := gatewaytest.New(t)
	b.AddUser("anna", "hemligt")
	c := newClient(t, b)

	_, err := c.Login(context.Background(), "anna", "fel")
	require.Error(t, err)
	assert.True(t, gateway.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, "Fel användarnamn eller lösenord", gateway.Message(err))
	assert.Empty(t, c.Cookies())
}

func TestRegisterDuplicate(t *testing.T) {
	b := gatewaytest.New(t)
	c := newClient(t, b)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "bo", "pw"))
	err := c.Register(ctx, "bo", "pw")
	assert.True(t, gateway.IsStatus(err, http.StatusConflict))
	assert.Equal(t, "Användarnamnet är upptaget", gateway.Message(err))

	_, err = c.Login(ctx, "bo", "pw")
	assert.NoError(t, err)
}

func TestTotalsInEveryShape(t *testing.T) {
	b, c := loggedIn(t)
	b.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(6000), DateTime: "2024-01-01T08:00:00", Username: "anna", AccountType: core.DefaultAccountType})
	b.AddEvent(core.Event{Title: "Mat", Amount: core.NewAmount(decimal.RequireFromString("250.50")), Expense: true, DateTime: "2024-01-02T08:00:00", Username: "anna", AccountType: core.DefaultAccountType})

	for name, shape := range map[string]gatewaytest.TotalShape{
		"object": gatewaytest.TotalObject,
		"number": gatewaytest.TotalNumber,
		"string": gatewaytest.TotalString,
	} {
		t.Run(name, func(t *testing.T) {
			b.SetTotalShape(shape)
			income, err := c.TotalIncome(context.Background(), "anna")
			require.NoError(t, err)
			assert.True(t, income.Equal(decimal.NewFromInt(6000)), income.String())

			expense, err := c.TotalExpense(context.Background(), "anna")
			require.NoError(t, err)
			assert.True(t, expense.Equal(decimal.RequireFromString("250.5")), expense.String())
		})
	}
}

func TestEventsNormalizesStringAmounts(t *testing.T) {
	b, c := loggedIn(t)
	id := b.AddEvent(core.Event{Title: "Hyra", Amount: core.NewAmount(decimal.RequireFromString("5000.00")), Expense: true, DateTime: "2024-02-01T10:00:00", Username: "anna", AccountType: core.DefaultAccountType})

	events, err := c.Events(context.Background(), "anna")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.True(t, events[0].Amount.Equal(decimal.NewFromInt(5000)))
	assert.False(t, events[0].Paid)
}

func TestKvittStatus(t *testing.T) {
	b, c := loggedIn(t)
	b.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(100), DateTime: "2024-01-01T08:00:00", Username: "anna"})
	b.AddEvent(core.Event{Title: "Hyra", Amount: core.AmountFromInt(500), Expense: true, DateTime: "2024-01-02T08:00:00", Username: "anna"})

	status, err := c.KvittStatus(context.Background(), "anna")
	require.NoError(t, err)
	assert.Equal(t, 1, status.ExpensesBack)
	assert.False(t, status.Settled())
}

func TestCreateEditDelete(t *testing.T) {
	b, c := loggedIn(t)
	ctx := context.Background()

	err := c.CreateEvent(ctx, core.Event{
		ID:          "ignored",
		Title:       "Kaffe",
		Amount:      core.AmountFromInt(45),
		Expense:     true,
		DateTime:    "2024-03-01T09:00:00",
		Username:    "anna",
		AccountType: core.DefaultAccountType,
	})
	require.NoError(t, err)

	stored := b.Events("anna")
	require.Len(t, stored, 1)
	assert.Equal(t, core.EventID("1"), stored[0].ID)

	edited := stored[0]
	edited.Title = "Kaffe och bulle"
	edited.Amount = core.AmountFromInt(60)
	require.NoError(t, c.EditEvent(ctx, edited))
	assert.Equal(t, "Kaffe och bulle", b.Events("anna")[0].Title)

	require.NoError(t, c.DeleteEvent(ctx, edited.ID))
	assert.Empty(t, b.Events("anna"))

	err = c.DeleteEvent(ctx, edited.ID)
	assert.True(t, gateway.IsStatus(err, http.StatusNotFound))
}

func TestEditAndDeleteRequireID(t *testing.T) {
	_, c := loggedIn(t)
	assert.Error(t, c.EditEvent(context.Background(), core.Event{Title: "x"}))
	assert.Error(t, c.DeleteEvent(context.Background(), ""))
}

func TestUnauthenticatedCallsFail(t *testing.T) {
	b := gatewaytest.New(t)
	c := newClient(t, b)

	_, err := c.Events(context.Background(), "anna")
	var se *gateway.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "/api/v1/event/getAllEvents", se.Path)
}

func TestLogoutRevokesAndResets(t *testing.T) {
	b, c := loggedIn(t)
	stolen := c.Cookies()

	require.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, c.Cookies())
	assert.Equal(t, 1, b.Calls("/api/v1/kvittUser/logout"))

	other := newClient(t, b)
	other.SetCookies(stolen)
	_, err := other.Events(context.Background(), "anna")
	assert.True(t, gateway.IsStatus(err, http.StatusUnauthorized))
}

func TestLogoutResetsEvenOnFailure(t *testing.T) {
	b, c := loggedIn(t)
	b.Fail("/api/v1/kvittUser/logout", http.StatusBadGateway)

	err := c.Logout(context.Background())
	assert.True(t, gateway.IsStatus(err, http.StatusBadGateway))
	assert.Empty(t, c.Cookies())
}

func TestCookiesRoundTripIntoNewClient(t *testing.T) {
	b, c := loggedIn(t)
	b.AddEvent(core.Event{Title: "Lön", Amount: core.AmountFromInt(10), DateTime: "2024-01-01", Username: "anna"})

	restored := newClient(t, b)
	restored.SetCookies(c.Cookies())
	events, err := restored.Events(context.Background(), "anna")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestFailureInjectionCarriesMessage(t *testing.T) {
	b, c := loggedIn(t)
	b.Fail("/api/v1/event/getKvittStatus", http.StatusInternalServerError)

	_, err := c.KvittStatus(context.Background(), "anna")
	assert.True(t, gateway.IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, "Internal Server Error", gateway.Message(err))
	assert.Equal(t, 1, b.Calls("/api/v1/event/getKvittStatus"))
}
