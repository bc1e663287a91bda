package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = flexString(n.String())
	return nil
}

// flexNumber accepts a JSON number or a numeric string ("12.50", "3").
// Currency decorations such as a trailing "€" are not accepted.
type flexNumber struct {
	set   bool
	value decimal.Decimal
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	var raw flexString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	if raw == "" {
		*n = flexNumber{}
		return nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return fmt.Errorf("invalid number %q", string(raw))
	}
	*n = flexNumber{set: true, value: d}
	return nil
}

func (n flexNumber) decimal() decimal.Decimal {
	if !n.set {
		return decimal.Zero
	}
	return n.value
}

var (
	minInt = decimal.NewFromInt(math.MinInt)
	maxInt = decimal.NewFromInt(math.MaxInt)
)

func (n flexNumber) int(field string) (int, error) {
	if !n.set {
		return 0, nil
	}
	if !n.value.IsInteger() {
		return 0, fmt.Errorf("%w: %s must be an integer, got %s", ErrInconsistentState, field, n.value)
	}
	if n.value.LessThan(minInt) || n.value.GreaterThan(maxInt) {
		return 0, fmt.Errorf("%w: %s out of range, got %s", ErrInconsistentState, field, n.value)
	}
	return int(n.value.IntPart()), nil
}

type wireEnvelope struct {
	Cart   *wireCart       `json:"cart"`
	Totals []wireTotal     `json:"totals"`
	Error  json.RawMessage `json:"error"`
}

type wireCart struct {
	Menu  *wireMenu       `json:"menu"`
	Order json.RawMessage `json:"order"`
}

type wireMenu struct {
	ID       flexNumber      `json:"id"`
	Name     string          `json:"name"`
	Price    flexNumber      `json:"price"`
	Contents []wireContent   `json:"contents"`
	Products json.RawMessage `json:"products"`
}

type wireContent struct {
	Name         string       `json:"name"`
	IDs          []flexNumber `json:"ids"`
	Count        flexNumber   `json:"count"`
	CurrentCount *flexNumber  `json:"currentCount"`
}

type wireOrder struct {
	Package  string          `json:"package"`
	Price    flexNumber      `json:"price"`
	Products json.RawMessage `json:"products"`
	ID       flexString      `json:"id"`
	Guests   flexNumber      `json:"guests"`
}

type wireLine struct {
	CartID    flexString `json:"cart_id"`
	ProductID flexString `json:"product_id"`
	Name      string     `json:"name"`
	Quantity  flexNumber `json:"quantity"`
	Price     flexNumber `json:"price"`
	Total     flexNumber `json:"total"`
}

type wireTotal struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// DecodeSnapshot converts a backend cart payload into a Snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentState, err)
	}
	if msg := backendError(env.Error); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, msg)
	}

	snap := &Snapshot{
		Orders: []PackageOrder{},
		Totals: make([]ServerTotal, 0, len(env.Totals)),
	}
	for _, t := range env.Totals {
		snap.Totals = append(snap.Totals, ServerTotal{Label: t.Title, Amount: t.Text})
	}
	if env.Cart == nil {
		return snap, nil
	}

	if env.Cart.Menu != nil {
		active, err := decodeMenu(env.Cart.Menu)
		if err != nil {
			return nil, err
		}
		snap.Active = active
	}

	orders, err := decodeOrders(env.Cart.Order)
	if err != nil {
		return nil, err
	}
	snap.Orders = orders
	return snap, nil
}

func decodeMenu(m *wireMenu) (*ActiveMenu, error) {
	id, err := m.ID.int("menu id")
	if err != nil {
		return nil, err
	}
	lines, err := decodeProducts(m.Products)
	if err != nil {
		return nil, fmt.Errorf("menu products: %w", err)
	}

	active := &ActiveMenu{
		ID:            id,
		Name:          m.Name,
		PricePerGuest: m.Price.decimal(),
		Contents:      make([]MenuContent, 0, len(m.Contents)),
		Lines:         lines,
	}
	for _, c := range m.Contents {
		required, err := c.Count.int("content count")
		if err != nil {
			return nil, err
		}
		content := MenuContent{Name: c.Name, Required: required, CategoryIDs: make([]int, 0, len(c.IDs))}
		for _, raw := range c.IDs {
			id, err := raw.int("content id")
			if err != nil {
				return nil, err
			}
			content.CategoryIDs = append(content.CategoryIDs, id)
		}
		if c.CurrentCount != nil && c.CurrentCount.set {
			current, err := c.CurrentCount.int("currentCount")
			if err != nil {
				return nil, err
			}
			content.CurrentCount = &current
		}
		active.Contents = append(active.Contents, content)
	}
	return active, nil
}

// decodeOrders accepts either a JSON array of orders or an object keyed by
// order id. Object key order is preserved.
func decodeOrders(raw json.RawMessage) ([]PackageOrder, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []PackageOrder{}, nil
	}

	var wires []wireOrder
	var keys []string
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &wires); err != nil {
			return nil, fmt.Errorf("%w: order list: %v", ErrInconsistentState, err)
		}
		keys = make([]string, len(wires))
	case '{':
		var err error
		keys, wires, err = decodeOrderedOrders(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: order map: %v", ErrInconsistentState, err)
		}
	default:
		return nil, fmt.Errorf("%w: order must be a list or an object", ErrInconsistentState)
	}

	orders := make([]PackageOrder, 0, len(wires))
	for i, w := range wires {
		guests, err := w.Guests.int("guests")
		if err != nil {
			return nil, err
		}
		lines, err := decodeProducts(w.Products)
		if err != nil {
			return nil, fmt.Errorf("order %d products: %w", i, err)
		}
		id := string(w.ID)
		if id == "" {
			id = keys[i]
		}
		orders = append(orders, PackageOrder{
			Package:       w.Package,
			GuestCount:    guests,
			PricePerGuest: w.Price.decimal(),
			Lines:         lines,
			OrderID:       id,
		})
	}
	return orders, nil
}

func decodeOrderedOrders(raw json.RawMessage) ([]string, []wireOrder, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	var keys []string
	var orders []wireOrder
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key %v", tok)
		}
		var w wireOrder
		if err := dec.Decode(&w); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		orders = append(orders, w)
	}
	return keys, orders, nil
}

// decodeProducts decodes a category-id keyed product map. An empty JSON array
// stands for an empty map.
func decodeProducts(raw json.RawMessage) (map[int][]LineItem, error) {
	out := make(map[int][]LineItem)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("[]")) {
		return out, nil
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("%w: products must be keyed by category id", ErrInconsistentState)
	}

	var byCategory map[string][]wireLine
	if err := json.Unmarshal(raw, &byCategory); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentState, err)
	}
	for key, wires := range byCategory {
		categoryID, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("%w: category key %q is not an integer", ErrInconsistentState, key)
		}
		lines := make([]LineItem, 0, len(wires))
		for _, w := range wires {
			qty, err := w.Quantity.int("quantity")
			if err != nil {
				return nil, err
			}
			lines = append(lines, LineItem{
				CartID:     string(w.CartID),
				ProductID:  string(w.ProductID),
				Name:       w.Name,
				CategoryID: categoryID,
				UnitPrice:  w.Price.decimal(),
				Quantity:   qty,
				LineTotal:  w.Total.decimal(),
			})
		}
		out[categoryID] = append(out[categoryID], lines...)
	}
	return out, nil
}

// backendError extracts a message from an OpenCart style "error" field, which
// may be a string or an object of field messages.
func backendError(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		if len(fields) == 0 {
			return ""
		}
		parts := make([]string, 0, len(fields))
		for k, v := range fields {
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil && len(list) == 0 {
		return ""
	}
	return string(raw)
}
