package cart

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product line in the cart. CartID is assigned by the backend.
type LineItem struct {
	CartID     string          `json:"cartId"`
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	CategoryID int             `json:"categoryId"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
}

// PackageOrder is a package that was committed to the cart.
type PackageOrder struct {
	Package       string             `json:"package"`
	GuestCount    int                `json:"guestCount"`
	PricePerGuest decimal.Decimal    `json:"pricePerGuest"`
	Lines         map[int][]LineItem `json:"lines"`
	OrderID       string             `json:"orderId,omitempty"`
}

// CategoryIDs returns the category ids present in the order, ascending.
func (p PackageOrder) CategoryIDs() []int {
	return sortedKeys(p.Lines)
}

// MenuContent is the backend's view of one requirement of the package being
// configured. CurrentCount is set only when the backend pre-aggregates it.
type MenuContent struct {
	Name         string `json:"name"`
	CategoryIDs  []int  `json:"ids"`
	Required     int    `json:"count"`
	CurrentCount *int   `json:"currentCount,omitempty"`
}

// ActiveMenu is the package currently being configured, before it is committed.
type ActiveMenu struct {
	ID            int                `json:"id"`
	Name          string             `json:"name"`
	PricePerGuest decimal.Decimal    `json:"pricePerGuest"`
	Contents      []MenuContent      `json:"contents"`
	Lines         map[int][]LineItem `json:"lines"`
}

// Content returns the menu content with the given requirement name.
func (m *ActiveMenu) Content(name string) (MenuContent, bool) {
	if m == nil {
		return MenuContent{}, false
	}
	for _, c := range m.Contents {
		if c.Name == name {
			return c, true
		}
	}
	return MenuContent{}, false
}

// ServerTotal is a label/amount pair as formatted by the backend.
type ServerTotal struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// Snapshot is the decoded server-side cart state. Snapshots are shared by the
// cache and must be treated as read-only.
type Snapshot struct {
	Orders    []PackageOrder `json:"orders"`
	Active    *ActiveMenu    `json:"active,omitempty"`
	Totals    []ServerTotal  `json:"totals"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// Product is a selectable product returned for a category.
type Product struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Thumb       string          `json:"thumb,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  int             `json:"categoryId"`
}

// LineMutation adds (empty LineID), edits, or removes (Quantity 0) a line.
type LineMutation struct {
	LineID    string `json:"lineId,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// MutationResult reports the backend's verdict on a cart write.
type MutationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CommitResult reports the outcome of committing a package.
type CommitResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

func sortedKeys(m map[int][]LineItem) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
