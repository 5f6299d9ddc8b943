// Package view turns backend data into what the dashboard renders.
package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kvitt/internal/core"
)

// SortEvents returns a copy of events, newest first. Ties on dateTime are
// broken by id, highest first. Events whose dateTime cannot be parsed sort last.
func SortEvents(events []core.Event) []core.Event {
	type keyed struct {
		event core.Event
		at    time.Time
		ok    bool
	}
	keys := make([]keyed, len(events))
	for i, e := range events {
		at, ok := e.Time()
		keys[i] = keyed{event: e, at: at, ok: ok}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch {
		case a.ok != b.ok:
			return a.ok
		case a.ok && !a.at.Equal(b.at):
			return a.at.After(b.at)
		}
		return a.event.ID.Compare(b.event.ID) > 0
	})

	out := make([]core.Event, len(keys))
	for i, k := range keys {
		out[i] = k.event
	}
	return out
}

// Summarize derives the financial summary from the two totals.
func Summarize(income, expense decimal.Decimal) core.FinancialSummary {
	return core.NewFinancialSummary(income, expense)
}

// KvittView is the banner shown above the transaction list.
type KvittView struct {
	Settled  bool
	Headline string
	Detail   string
	// LastKvitt is the formatted date the user was last settled, if known.
	LastKvitt string
}

// DescribeKvitt phrases a kvitt status.
func DescribeKvitt(status core.KvittStatus) KvittView {
	if status.Settled() {
		return KvittView{
			Settled:  true,
			Headline: "GRATTIS! Du är KVITT",
			Detail:   "Ditt saldo täcker alla utgifter i historiken.",
		}
	}
	detail := fmt.Sprintf("Du är back %d utgifter.", status.ExpensesBack)
	if status.ExpensesBack == 1 {
		detail = "Du är back 1 utgift."
	}
	v := KvittView{Headline: "Du är back", Detail: detail}
	if t, err := core.ParseDateTime(status.LastKvittDate); err == nil {
		v.LastKvitt = FormatDate(t)
	}
	return v
}

var swedishMonths = [...]string{"jan.", "feb.", "mars", "apr.", "maj", "juni", "juli", "aug.", "sep.", "okt.", "nov.", "dec."}

// FormatDate renders t as "2 jan. 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), swedishMonths[t.Month()-1], t.Year())
}

// FormatEventDate formats an event's dateTime, or returns it raw if unparseable.
func FormatEventDate(e core.Event) string {
	if t, ok := e.Time(); ok {
		return FormatDate(t)
	}
	return e.DateTime
}

// nbsp separates digit groups and the currency.
const nbsp = "\u00a0"

// FormatAmount renders d with Swedish digit grouping, e.g. "5 000 kr" or
// "-1 234,50 kr", using non-breaking spaces. Whole amounts drop the decimals.
func FormatAmount(d decimal.Decimal) string {
	d = d.Round(2)
	neg := d.IsNegative()
	whole, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")

	var b strings.Builder
	if neg {
		b.WriteString("-")
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteString(nbsp)
		}
		b.WriteRune(r)
	}
	if frac != "00" {
		b.WriteString(",")
		b.WriteString(frac)
	}
	b.WriteString(nbsp + "kr")
	return b.String()
}

// BalanceClass is the CSS class for a balance: positive, negative or zero.
func BalanceClass(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "positive"
	case -1:
		return "negative"
	}
	return "zero"
}
