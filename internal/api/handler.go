package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eugenenazirov/catering-cart/internal/cart"
	"github.com/eugenenazirov/catering-cart/internal/catalog"
	"github.com/eugenenazirov/catering-cart/internal/pricing"
	"github.com/eugenenazirov/catering-cart/internal/wizard"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	sessionCookie = "session"
	sessionHeader = "X-Session-Token"
	maxBodyBytes  = 1 << 20
)

// CartService is the cart accessor as seen by the HTTP layer.
type CartService interface {
	Fetch(ctx context.Context, scope string) (*cart.Snapshot, error)
	MutateLine(ctx context.Context, scope string, m cart.LineMutation) (cart.MutationResult, error)
	DeletePackage(ctx context.Context, scope, packageID string) error
	ProductsByCategory(ctx context.Context, scope string, categoryID int) ([]cart.Product, error)
}

// Handler wires the catalog, cart, wizard and pricing into HTTP handlers.
type Handler struct {
	catalog   *catalog.Catalog
	carts     CartService
	wizard    *wizard.Controller
	pricing   pricing.Calculator
	formatter pricing.Formatter
	text      translator
	logger    *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithLogger sets the logger used for error details that are not shown to shoppers.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies. Shopper
// messages follow the formatter's language.
func NewHandler(cat *catalog.Catalog, carts CartService, wiz *wizard.Controller, calc pricing.Calculator, formatter pricing.Formatter, opts ...HandlerOption) *Handler {
	h := &Handler{
		catalog:   cat,
		carts:     carts,
		wizard:    wiz,
		pricing:   calc,
		formatter: formatter,
		text:      newTranslator(formatter.Locale()),
		logger:    zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListPackages(w http.ResponseWriter, r *http.Request) {
	_ = r
	pkgs := h.catalog.Packages()
	resp := packagesResponse{Packages: make([]packageResponse, 0, len(pkgs))}
	for _, pkg := range pkgs {
		resp.Packages = append(resp.Packages, h.packageResponse(pkg))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.catalog.Lookup(r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.packageResponse(pkg))
}

func (h *Handler) packageResponse(pkg catalog.PackageDefinition) packageResponse {
	resp := packageResponse{
		ID:                     pkg.ID,
		Name:                   pkg.Name,
		PricePerGuest:          pkg.PricePerGuest,
		PricePerGuestFormatted: h.formatter.Format(pkg.PricePerGuest),
		MinimumGuests:          pkg.MinimumGuests,
		Categories:             make([]categoryResponse, 0, len(pkg.Categories)),
	}
	for _, req := range pkg.Categories {
		resp.Categories = append(resp.Categories, categoryResponse{
			Name:        req.Name,
			CategoryIDs: req.CategoryIDs,
			Required:    req.Required,
			Extras:      req.IsExtras(),
		})
	}
	return resp
}

// writeDomainError maps errors of the cart core onto HTTP responses. Technical
// details of backend failures are logged, never returned.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: h.text.validation(verr),
			Validation: &validationDetail{
				Kind:          string(verr.Kind),
				MinimumGuests: verr.MinimumGuests,
				Category:      verr.Category,
				Required:      verr.Required,
				Current:       verr.Current,
				Shortfall:     verr.Shortfall,
			},
		})
	case errors.Is(err, catalog.ErrPackageNotFound):
		writeError(w, http.StatusNotFound, h.text.text(msgPackageNotFound), err.Error())
	case errors.Is(err, cart.ErrMissingToken):
		writeError(w, http.StatusUnauthorized, h.text.text(msgSessionRequired), "")
	case errors.Is(err, wizard.ErrSessionGone):
		writeError(w, http.StatusConflict, h.text.text(msgWizardGone), "")
	case errors.Is(err, wizard.ErrInvalidTransition):
		writeError(w, http.StatusConflict, h.text.text(msgWizardTransition), err.Error())
	case errors.Is(err, wizard.ErrRejected):
		_, detail, _ := strings.Cut(err.Error(), ": ")
		writeError(w, http.StatusUnprocessableEntity, h.text.text(msgRejected), detail)
	case errors.Is(err, cart.ErrBackendUnavailable):
		h.logFailure(r, "commerce backend unavailable", err)
		writeError(w, http.StatusBadGateway, h.text.text(msgBackendUnavailable), "", "retry")
	case errors.Is(err, cart.ErrInconsistentState):
		h.logFailure(r, "inconsistent cart payload", err)
		writeError(w, http.StatusBadGateway, h.text.text(msgInconsistentCart), "")
	default:
		h.logFailure(r, "request failed", err)
		writeInternalError(w, h.text.text(msgInternal))
	}
}

func (h *Handler) logFailure(r *http.Request, msg string, err error) {
	h.logger.Warn(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Error(err),
	)
}

// requireScope returns the shopper's backend token or writes a 401.
func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request) (string, bool) {
	scope := scopeFromRequest(r)
	if scope == "" {
		writeError(w, http.StatusUnauthorized, h.text.text(msgSessionRequired), "")
		return "", false
	}
	return scope, true
}

// decodeBody reads a JSON body into dst, writing a 400 on failure.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, h.text.text(msgInvalidRequest), "unable to parse JSON payload")
		return false
	}
	return true
}

// scopeFromRequest reads the shopper's backend token from the session cookie
// or, for non-browser clients, the X-Session-Token header.
func scopeFromRequest(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	return strings.TrimSpace(r.Header.Get(sessionHeader))
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type categoryResponse struct {
	Name        string `json:"name"`
	CategoryIDs []int  `json:"categoryIds"`
	Required    int    `json:"required"`
	Extras      bool   `json:"extras"`
}

type packageResponse struct {
	ID                     int                `json:"id"`
	Name                   string             `json:"name"`
	PricePerGuest          decimal.Decimal    `json:"pricePerGuest"`
	PricePerGuestFormatted string             `json:"pricePerGuestFormatted"`
	MinimumGuests          int                `json:"minimumGuests"`
	Categories             []categoryResponse `json:"categories"`
}

type packagesResponse struct {
	Packages []packageResponse `json:"packages"`
}

type validationDetail struct {
	Kind          string `json:"kind"`
	MinimumGuests int    `json:"minimumGuests,omitempty"`
	Category      string `json:"category,omitempty"`
	Required      int    `json:"required,omitempty"`
	Current       int    `json:"current"`
	Shortfall     int    `json:"shortfall,omitempty"`
}

type errorResponse struct {
	Error      string            `json:"error"`
	Details    string            `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Validation *validationDetail `json:"validation,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

// writeInternalError answers 500 without detail. The cause belongs in the log.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message, "")
}
