package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/catering-cart/internal/cart"
)

// grandTotalLabels are the backend total titles that carry the final amount.
var grandTotalLabels = []string{"total", "gesamt", "gesamtsumme", "summe"}

// Reconciliation compares the computed grand total with the backend's.
type Reconciliation struct {
	Found    bool            `json:"found"`
	Server   decimal.Decimal `json:"server"`
	Computed decimal.Decimal `json:"computed"`
	Matches  bool            `json:"matches"`
}

// Reconcile looks up the backend's grand total line and compares it with
// totals.GrandTotal. When no labelled line exists the last line is used, as
// the backend lists the grand total last.
func Reconcile(totals Totals, server []cart.ServerTotal) Reconciliation {
	rec := Reconciliation{Computed: totals.GrandTotal}
	if len(server) == 0 {
		return rec
	}

	line := server[len(server)-1]
	for _, t := range server {
		label := strings.ToLower(strings.TrimSpace(t.Label))
		for _, want := range grandTotalLabels {
			if label == want {
				line = t
			}
		}
	}

	rec.Found = true
	rec.Server = cart.ParseAmount(line.Amount).Round(currencyPlaces)
	rec.Matches = rec.Server.Equal(totals.GrandTotal)
	return rec
}
