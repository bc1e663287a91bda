package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/catering-cart/internal/cart"
)

// PackageTotals breaks down what one committed package contributes.
type PackageTotals struct {
	Package    string          `json:"package"`
	OrderID    string          `json:"orderId,omitempty"`
	GuestCount int             `json:"guestCount"`
	Base       decimal.Decimal `json:"base"`
	Surcharge  decimal.Decimal `json:"surcharge"`
	Extras     decimal.Decimal `json:"extras"`
}

// Totals is the result of pricing a cart. SubTotal + ExtrasTotal == GrandTotal.
type Totals struct {
	SubTotal    decimal.Decimal `json:"subTotal"`
	ExtrasTotal decimal.Decimal `json:"extrasTotal"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
	Packages    []PackageTotals `json:"packages"`
}

// Calculator describes the behaviour required from a cart price calculator.
type Calculator interface {
	Calculate(snap *cart.Snapshot) Totals
}
