package http

import (
	"testing"

	"github.com/shopspring/decimal"

	"kvitt/internal/core"
	"kvitt/internal/form"
	"kvitt/internal/view"
)

func TestNewModal(t *testing.T) {
	tests := []struct {
		name    string
		state   form.State
		heading string
		submit  string
	}{
		{"closed", form.Closed{}, "", ""},
		{"create income", form.Creating{Draft: form.Draft{}}, "Lägg till inkomst", "Lägg till inkomst"},
		{"create expense", form.Creating{Draft: form.Draft{Expense: true}}, "Lägg till utgift", "Lägg till utgift"},
		{"edit expense", form.Editing{EventID: "1", Draft: form.Draft{Expense: true, Title: "Hyra"}}, "Redigera utgift", "Spara ändringar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModal(tt.state)
			if m.Open != (tt.heading != "") {
				t.Errorf("Open = %v", m.Open)
			}
			if m.Heading != tt.heading || m.SubmitLabel != tt.submit {
				t.Errorf("got %q / %q, want %q / %q", m.Heading, m.SubmitLabel, tt.heading, tt.submit)
			}
		})
	}

	m := newModal(form.Editing{Draft: form.Draft{Title: "Hyra", Amount: "5000", Date: "2025-01-02", Error: "fel"}})
	if !m.Editing || m.Title != "Hyra" || m.Amount != "5000" || m.Date != "2025-01-02" || m.Error != "fel" {
		t.Errorf("draft not carried over: %+v", m)
	}
}

func TestNewOverview(t *testing.T) {
	empty := newOverview(view.Snapshot{})
	if empty.Income != "0"+nbsp+"kr" || empty.BalanceClass != "zero" || empty.Kvitt != nil || len(empty.Events) != 0 {
		t.Errorf("empty overview = %+v", empty)
	}

	summary := core.NewFinancialSummary(decimal.NewFromInt(6000), decimal.NewFromInt(7000))
	ov := newOverview(view.Snapshot{
		Summary: &summary,
		Kvitt:   &core.KvittStatus{ExpensesBack: 2},
		Events: []core.Event{{
			ID: "9", Title: "Hyra", Amount: core.AmountFromInt(7000), Expense: true,
			DateTime: "2025-01-02T08:00:00",
		}},
	})
	if ov.Balance != "-1"+nbsp+"000"+nbsp+"kr" || ov.BalanceClass != "negative" {
		t.Errorf("balance = %q (%s)", ov.Balance, ov.BalanceClass)
	}
	if ov.Kvitt == nil || ov.Kvitt.Settled || ov.Kvitt.Detail != "Du är back 2 utgifter." {
		t.Errorf("kvitt = %+v", ov.Kvitt)
	}
	if len(ov.Events) != 1 || ov.Events[0].Date != "2 jan. 2025" || ov.Events[0].Amount != "7"+nbsp+"000"+nbsp+"kr" {
		t.Errorf("events = %+v", ov.Events)
	}
}
