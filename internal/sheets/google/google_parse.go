package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ports "kvitt/internal/sheets"
)

// Column order: recorded at, op, event id, username, title, amount, kind, date.
const columnCount = 8

func rowValues(r ports.LedgerRow) []interface{} {
	return []interface{}{
		r.RecordedAt.UTC().Format(time.RFC3339),
		r.Op,
		r.EventID,
		r.Username,
		r.Title,
		r.Amount.String(),
		r.Kind(),
		r.DateTime,
	}
}

func parseRow(values []interface{}) (ports.LedgerRow, error) {
	cells := toStrings(values)
	if len(cells) < 4 {
		return ports.LedgerRow{}, fmt.Errorf("expected %d columns, got %d", columnCount, len(cells))
	}
	for len(cells) < columnCount {
		cells = append(cells, "")
	}

	recorded, err := time.Parse(time.RFC3339, cells[0])
	if err != nil {
		return ports.LedgerRow{}, fmt.Errorf("recorded at: %w", err)
	}
	amount := decimal.Zero
	if s := strings.TrimSpace(cells[5]); s != "" {
		// Sheets in a Swedish locale may render "5000,5".
		amount, err = decimal.NewFromString(strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", "."))
		if err != nil {
			return ports.LedgerRow{}, fmt.Errorf("amount %q: %w", s, err)
		}
	}
	return ports.LedgerRow{
		RecordedAt: recorded,
		Op:         cells[1],
		EventID:    cells[2],
		Username:   cells[3],
		Title:      cells[4],
		Amount:     amount,
		Expense:    strings.EqualFold(cells[6], "utgift"),
		DateTime:   cells[7],
	}, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
