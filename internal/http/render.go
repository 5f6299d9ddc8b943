package http

import (
	"kvitt/internal/core"
	"kvitt/internal/form"
	"kvitt/internal/view"
)

const (
	msgLoginFailed     = "Inloggning misslyckades. Kontrollera användarnamn och lösenord."
	msgPasswordMatch   = "Lösenorden matchar inte."
	msgRegisterFailed  = "Kunde inte skapa konto. Användarnamnet kan vara upptaget."
	msgNetworkError    = "Ett nätverksfel uppstod. Kontrollera att din backend körs."
	msgRegistered      = "Kontot är skapat. Logga in för att fortsätta."
	msgMissingCreds    = "Fyll i användarnamn och lösenord."
	msgDeleteFailed    = "Kunde inte ta bort transaktionen."
	msgDeleted         = "Transaktionen togs bort."
	msgSaved           = "Transaktionen sparades."
	msgRefreshDegraded = "Vissa uppgifter kunde inte hämtas."
	msgNotFound        = "Transaktionen hittades inte."
	msgBadRequest      = "Ogiltig begäran."
)

type loginPage struct {
	Title    string
	Notice   string
	Error    string
	Username string
}

type registerPage struct {
	Title    string
	Error    string
	Username string
}

type dashboardPage struct {
	Title    string
	Username string
	Overview overviewView
	Modal    modalView
}

type overviewView struct {
	// OOB marks the fragment as an out-of-band swap.
	OOB          bool
	Error        string
	Income       string
	Expense      string
	Balance      string
	BalanceClass string
	Kvitt        *view.KvittView
	Events       []eventRow
}

type eventRow struct {
	ID      string
	Title   string
	Date    string
	Amount  string
	Expense bool
	Paid    bool
}

type modalView struct {
	Open        bool
	Expense     bool
	Editing     bool
	Heading     string
	Title       string
	Amount      string
	Date        string
	Error       string
	SubmitLabel string
}

type modalResponse struct {
	Modal    modalView
	Overview *overviewView
}

// newOverview renders a snapshot. Sections never fetched show as zero.
func newOverview(snap view.Snapshot) overviewView {
	summary := core.FinancialSummary{}
	if snap.Summary != nil {
		summary = *snap.Summary
	}
	ov := overviewView{
		Income:       view.FormatAmount(summary.TotalIncome),
		Expense:      view.FormatAmount(summary.TotalExpense),
		Balance:      view.FormatAmount(summary.Balance),
		BalanceClass: view.BalanceClass(summary.Balance),
	}
	if snap.Kvitt != nil {
		k := view.DescribeKvitt(*snap.Kvitt)
		ov.Kvitt = &k
	}
	ov.Events = make([]eventRow, 0, len(snap.Events))
	for _, e := range snap.Events {
		ov.Events = append(ov.Events, eventRow{
			ID:      e.ID.String(),
			Title:   e.Title,
			Date:    view.FormatEventDate(e),
			Amount:  view.FormatAmount(e.Amount.Decimal),
			Expense: e.Expense,
			Paid:    e.Paid,
		})
	}
	return ov
}

// newModal renders the form state.
func newModal(st form.State) modalView {
	var (
		d       form.Draft
		editing bool
	)
	switch s := st.(type) {
	case form.Creating:
		d = s.Draft
	case form.Editing:
		d = s.Draft
		editing = true
	default:
		return modalView{}
	}

	kind := "inkomst"
	if d.Expense {
		kind = "utgift"
	}
	m := modalView{
		Open:        true,
		Expense:     d.Expense,
		Editing:     editing,
		Heading:     "Lägg till " + kind,
		Title:       d.Title,
		Amount:      d.Amount,
		Date:        d.Date,
		Error:       d.Error,
		SubmitLabel: "Lägg till " + kind,
	}
	if editing {
		m.Heading = "Redigera " + kind
		m.SubmitLabel = "Spara ändringar"
	}
	return m
}
