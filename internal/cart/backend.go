package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxResponseBytes = 4 << 20

// Backend is the commerce backend as seen by the cart core. Every call is
// scoped by the shopper's backend token.
type Backend interface {
	FetchCart(ctx context.Context, token string) (*Snapshot, error)
	MutateLine(ctx context.Context, token string, m LineMutation) (MutationResult, error)
	CommitPackage(ctx context.Context, token string, guests int) (CommitResult, error)
	// DeletePackage removes one package, or the unfinished packages when
	// packageID is empty.
	DeletePackage(ctx context.Context, token, packageID string) error
	// SelectMenu makes menuID the shopper's active package.
	SelectMenu(ctx context.Context, token string, menuID int) error
	ProductsByCategory(ctx context.Context, token string, categoryID int) ([]Product, error)
}

// HTTPBackend speaks the OpenCart style API: form-encoded POSTs against
// index.php?route=<prefix>/<route>&api_token=<token>.
type HTTPBackend struct {
	baseURL     *url.URL
	routePrefix string
	client      *http.Client
	logger      *zap.Logger
}

// HTTPBackendOption configures HTTPBackend.
type HTTPBackendOption func(*HTTPBackend)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) HTTPBackendOption {
	return func(b *HTTPBackend) {
		if client != nil {
			b.client = client
		}
	}
}

// WithRoutePrefix overrides the "api" route prefix.
func WithRoutePrefix(prefix string) HTTPBackendOption {
	return func(b *HTTPBackend) {
		b.routePrefix = strings.Trim(prefix, "/")
	}
}

// NewHTTPBackend creates a backend client for the given index.php URL.
func NewHTTPBackend(rawURL string, timeout time.Duration, logger *zap.Logger, opts ...HTTPBackendOption) (*HTTPBackend, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend URL must be http or https, got %q", rawURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &HTTPBackend{
		baseURL:     u,
		routePrefix: "api",
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// FetchCart implements Backend.
func (b *HTTPBackend) FetchCart(ctx context.Context, token string) (*Snapshot, error) {
	body, err := b.post(ctx, token, "sale/cart", nil)
	if err != nil {
		return nil, err
	}
	snap, err := DecodeSnapshot(body)
	if err != nil {
		b.logger.Warn("cart payload rejected", zap.Error(err))
		return nil, err
	}
	return snap, nil
}

// MutateLine implements Backend. An empty LineID adds the product, quantity
// zero removes the line, anything else edits the quantity.
func (b *HTTPBackend) MutateLine(ctx context.Context, token string, m LineMutation) (MutationResult, error) {
	if m.Quantity < 0 {
		return MutationResult{}, fmt.Errorf("quantity must be >= 0, got %d", m.Quantity)
	}

	form := url.Values{}
	var route string
	switch {
	case m.LineID == "":
		if m.ProductID == "" {
			return MutationResult{}, errors.New("product id is required to add a line")
		}
		if m.Quantity == 0 {
			return MutationResult{Success: true}, nil
		}
		route = "sale/cart.add"
		form.Set("product_id", m.ProductID)
		form.Set("quantity", strconv.Itoa(m.Quantity))
	case m.Quantity == 0:
		route = "sale/cart.remove"
		form.Set("key", m.LineID)
	default:
		route = "sale/cart.edit"
		form.Set("key", m.LineID)
		form.Set("quantity", strconv.Itoa(m.Quantity))
	}

	body, err := b.post(ctx, token, route, form)
	if err != nil {
		return MutationResult{}, err
	}
	resp, err := decodeResult(body)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Success: resp.errMsg == "", Message: resp.message()}, nil
}

// CommitPackage implements Backend.
func (b *HTTPBackend) CommitPackage(ctx context.Context, token string, guests int) (CommitResult, error) {
	form := url.Values{}
	form.Set("guests", strconv.Itoa(guests))

	body, err := b.post(ctx, token, "sale/addPackage", form)
	if err != nil {
		return CommitResult{}, err
	}
	resp, err := decodeResult(body)
	if err != nil {
		return CommitResult{}, err
	}
	return CommitResult{Success: resp.errMsg == "", OrderID: resp.orderID, Message: resp.message()}, nil
}

// DeletePackage implements Backend.
func (b *HTTPBackend) DeletePackage(ctx context.Context, token, packageID string) error {
	form := url.Values{}
	if packageID != "" {
		form.Set("package_id", packageID)
	}

	body, err := b.post(ctx, token, "sale/deletePackage", form)
	if err != nil {
		return err
	}
	resp, err := decodeResult(body)
	if err != nil {
		return err
	}
	if resp.errMsg != "" {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, resp.errMsg)
	}
	return nil
}

// SelectMenu implements Backend.
func (b *HTTPBackend) SelectMenu(ctx context.Context, token string, menuID int) error {
	form := url.Values{}
	form.Set("menu", strconv.Itoa(menuID))

	body, err := b.post(ctx, token, "sale/menu", form)
	if err != nil {
		return err
	}
	resp, err := decodeResult(body)
	if err != nil {
		return err
	}
	if resp.errMsg != "" {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, resp.errMsg)
	}
	return nil
}

type wireProduct struct {
	ProductID   flexString `json:"product_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Thumb       string     `json:"thumb"`
	Price       flexString `json:"price"`
}

// ProductsByCategory implements Backend.
func (b *HTTPBackend) ProductsByCategory(ctx context.Context, token string, categoryID int) ([]Product, error) {
	form := url.Values{}
	form.Set("category_id", strconv.Itoa(categoryID))

	body, err := b.post(ctx, token, "product/category", form)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Products []wireProduct   `json:"products"`
		Error    json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: products: %v", ErrInconsistentState, err)
	}
	if msg := backendError(payload.Error); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, msg)
	}

	products := make([]Product, 0, len(payload.Products))
	for _, p := range payload.Products {
		products = append(products, Product{
			ProductID:   string(p.ProductID),
			Name:        p.Name,
			Description: p.Description,
			Thumb:       p.Thumb,
			Price:       ParseAmount(string(p.Price)),
			CategoryID:  categoryID,
		})
	}
	return products, nil
}

func (b *HTTPBackend) post(ctx context.Context, token, route string, form url.Values) ([]byte, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	if form == nil {
		form = url.Values{}
	}

	u := *b.baseURL
	q := u.Query()
	q.Set("route", b.routePrefix+"/"+route)
	q.Set("api_token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Warn("backend request failed",
			zap.String("route", route),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, route, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrBackendUnavailable, route, err)
	}

	b.logger.Debug("backend request completed",
		zap.String("route", route),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrBackendUnavailable, route, resp.StatusCode)
	}
	return body, nil
}

type resultPayload struct {
	successMsg string
	errMsg     string
	orderID    string
}

func (r resultPayload) message() string {
	if r.errMsg != "" {
		return r.errMsg
	}
	return r.successMsg
}

func decodeResult(body []byte) (resultPayload, error) {
	var raw struct {
		Success json.RawMessage `json:"success"`
		Error   json.RawMessage `json:"error"`
		OrderID flexString      `json:"order_id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return resultPayload{}, fmt.Errorf("%w: %v", ErrInconsistentState, err)
	}

	out := resultPayload{
		errMsg:  backendError(raw.Error),
		orderID: string(raw.OrderID),
	}
	var msg string
	if err := json.Unmarshal(raw.Success, &msg); err == nil {
		out.successMsg = msg
	}
	return out, nil
}

// ParseAmount reads amounts the backend decorates with a currency sign or a
// German decimal comma ("12,50€", "1.234,56 €"). Unparseable values are zero.
func ParseAmount(raw string) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	// The separator that comes last is the decimal one.
	if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}
