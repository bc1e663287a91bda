package cart

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

const sampleCart = `{
  "cart": {
    "menu": {
      "id": "1",
      "name": "Salat Buffet Menü (Basic)",
      "price": 12.5,
      "contents": [
        {"name": "Salate", "ids": [75], "count": 2, "currentCount": "1"},
        {"name": "Dips", "ids": ["76"], "count": 1}
      ],
      "products": {
        "75": [{"cart_id": "c1", "product_id": 501, "name": "Caesar", "quantity": "1", "price": 0, "total": 0}]
      }
    },
    "order": {
      "pkg-a": {
        "package": "Salat Buffet Menü (Basic)",
        "price": "12.50",
        "guests": "10",
        "products": {
          "75": [{"cart_id": "c2", "product_id": "501", "name": "Caesar", "quantity": "10", "price": "2.00", "total": "20.00"}],
          "74": [{"cart_id": "c3", "product_id": "900", "name": "Lemonade", "quantity": 1, "price": 5, "total": 5}]
        }
      },
      "pkg-b": {
        "id": "explicit",
        "package": "Fingerfood Menü (Basic)",
        "price": 10.5,
        "products": []
      }
    }
  },
  "totals": [{"title": "Zwischensumme", "text": "145,00€"}]
}`

func TestDecodeSnapshot(t *testing.T) {
	t.Parallel()

	snap, err := DecodeSnapshot([]byte(sampleCart))
	if err != nil {
		t.Fatalf("DecodeSnapshot returned error: %v", err)
	}

	if snap.Active == nil {
		t.Fatalf("expected active menu")
	}
	if snap.Active.ID != 1 || !snap.Active.PricePerGuest.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected active menu: %+v", snap.Active)
	}
	salads, ok := snap.Active.Content("Salate")
	if !ok || salads.CurrentCount == nil || *salads.CurrentCount != 1 {
		t.Fatalf("expected backend-reported count for Salate, got %+v", salads)
	}
	dips, ok := snap.Active.Content("Dips")
	if !ok || dips.CurrentCount != nil {
		t.Fatalf("expected no reported count for Dips, got %+v", dips)
	}
	if diff := cmp.Diff([]int{76}, dips.CategoryIDs); diff != "" {
		t.Fatalf("dips ids mismatch (-want +got):\n%s", diff)
	}

	if len(snap.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(snap.Orders))
	}
	first := snap.Orders[0]
	if first.OrderID != "pkg-a" || first.GuestCount != 10 {
		t.Fatalf("unexpected first order: %+v", first)
	}
	if diff := cmp.Diff([]int{74, 75}, first.CategoryIDs()); diff != "" {
		t.Fatalf("category ids mismatch (-want +got):\n%s", diff)
	}
	line := first.Lines[75][0]
	if line.CartID != "c2" || line.ProductID != "501" || line.Quantity != 10 || line.CategoryID != 75 {
		t.Fatalf("unexpected line: %+v", line)
	}
	if !line.LineTotal.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("unexpected line total %s", line.LineTotal)
	}

	second := snap.Orders[1]
	if second.OrderID != "explicit" || len(second.Lines) != 0 || second.GuestCount != 0 {
		t.Fatalf("unexpected second order: %+v", second)
	}

	if diff := cmp.Diff([]ServerTotal{{Label: "Zwischensumme", Amount: "145,00€"}}, snap.Totals); diff != "" {
		t.Fatalf("totals mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSnapshotOrderList(t *testing.T) {
	t.Parallel()

	snap, err := DecodeSnapshot([]byte(`{"cart": {"order": [
		{"package": "A", "price": 5, "products": {}},
		{"package": "B", "price": 6, "products": {}}
	]}}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot returned error: %v", err)
	}
	if len(snap.Orders) != 2 || snap.Orders[0].Package != "A" || snap.Orders[1].Package != "B" {
		t.Fatalf("unexpected orders: %+v", snap.Orders)
	}
	if snap.Orders[0].OrderID != "" {
		t.Fatalf("expected empty order id for list entries, got %q", snap.Orders[0].OrderID)
	}
	if snap.Active != nil {
		t.Fatalf("expected no active menu")
	}
}

func TestDecodeSnapshotEmptyCart(t *testing.T) {
	t.Parallel()

	snap, err := DecodeSnapshot([]byte(`{}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot returned error: %v", err)
	}
	if len(snap.Orders) != 0 || snap.Active != nil {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestDecodeSnapshotRejectsUnknownShapes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"NotJSON":           `<html>`,
		"OrderIsString":     `{"cart": {"order": "nope"}}`,
		"CategoryKeyNotInt": `{"cart": {"order": [{"package": "A", "products": {"salads": []}}]}}`,
		"ProductsNotMap":    `{"cart": {"order": [{"package": "A", "products": [1, 2]}]}}`,
		"FractionalQty":     `{"cart": {"order": [{"package": "A", "products": {"1": [{"quantity": "1.5"}]}}]}}`,
		"PriceNotNumeric":   `{"cart": {"order": [{"package": "A", "price": "12,50€"}]}}`,
		"QtyOutOfRange":     `{"cart": {"order": [{"package": "A", "products": {"1": [{"quantity": 1e20}]}}]}}`,
		"MenuIDOutOfRange":  `{"cart": {"menu": {"id": "-1e20", "name": "A"}}}`,
	}

	for name, payload := range cases {
		payload := payload
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeSnapshot([]byte(payload)); !errors.Is(err, ErrInconsistentState) {
				t.Fatalf("expected ErrInconsistentState, got %v", err)
			}
		})
	}
}

func TestDecodeSnapshotBackendError(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{
		`{"error": "Warning: You do not have permission to access the API!"}`,
		`{"error": {"warning": "session expired"}}`,
	} {
		if _, err := DecodeSnapshot([]byte(payload)); !errors.Is(err, ErrBackendUnavailable) {
			t.Fatalf("expected ErrBackendUnavailable for %s, got %v", payload, err)
		}
	}

	if _, err := DecodeSnapshot([]byte(`{"error": [], "cart": {}}`)); err != nil {
		t.Fatalf("empty error list should be ignored, got %v", err)
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"12.50":      "12.5",
		"12,50€":     "12.5",
		"1.234,56 €": "1234.56",
		"€1,234.56":  "1234.56",
		"":           "0",
		"free":       "0",
	}
	for in, want := range tests {
		if got := ParseAmount(in); !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("ParseAmount(%q) = %s, want %s", in, got, want)
		}
	}
}
