package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/eugenenazirov/catering-cart/internal/cart"
	"github.com/eugenenazirov/catering-cart/internal/catalog"
	"github.com/eugenenazirov/catering-cart/internal/pricing"
)

func (h *Handler) handleCategoryProducts(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	categoryID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || categoryID <= 0 {
		writeError(w, http.StatusBadRequest, h.text.text(msgInvalidRequest), "category id must be a positive integer")
		return
	}

	products, err := h.carts.ProductsByCategory(r.Context(), scope, categoryID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := productsResponse{CategoryID: categoryID, Products: make([]productResponse, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, productResponse{
			Product:        p,
			PriceFormatted: h.formatter.Format(p.Price),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	snap, err := h.carts.Fetch(r.Context(), scope)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	totals := h.pricing.Calculate(snap)
	resp := cartResponse{
		Packages: make([]cartPackageResponse, 0, len(snap.Orders)),
		Active:   snap.Active,
		Totals:   h.totalsResponse(r, snap, totals),
	}
	for i, order := range snap.Orders {
		resp.Packages = append(resp.Packages, h.cartPackage(order, totals.Packages[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetTotals(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	snap, err := h.carts.Fetch(r.Context(), scope)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.totalsResponse(r, snap, h.pricing.Calculate(snap)))
}

func (h *Handler) handleMutateLine(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	var req lineRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, h.text.text(msgInvalidRequest), "quantity must be zero or positive")
		return
	}
	if req.LineID == "" && req.ProductID == "" {
		writeError(w, http.StatusBadRequest, h.text.text(msgInvalidRequest), "lineId or productId is required")
		return
	}

	res, err := h.carts.MutateLine(r.Context(), scope, cart.LineMutation{
		LineID:    req.LineID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !res.Success {
		writeError(w, http.StatusUnprocessableEntity, h.text.text(msgRejected), res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDeletePackage(w http.ResponseWriter, r *http.Request) {
	h.deletePackage(w, r, r.PathValue("id"))
}

func (h *Handler) handleClearUnfinished(w http.ResponseWriter, r *http.Request) {
	h.deletePackage(w, r, "")
}

func (h *Handler) deletePackage(w http.ResponseWriter, r *http.Request, packageID string) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	if err := h.carts.DeletePackage(r.Context(), scope, packageID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart.MutationResult{Success: true})
}

func (h *Handler) totalsResponse(r *http.Request, snap *cart.Snapshot, totals pricing.Totals) totalsResponse {
	rec := pricing.Reconcile(totals, snap.Totals)
	if rec.Found && !rec.Matches {
		h.logger.Warn("computed grand total differs from backend",
			zap.String("computed", rec.Computed.StringFixed(2)),
			zap.String("backend", rec.Server.StringFixed(2)),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
	}
	return totalsResponse{
		Totals:         totals,
		Formatted:      h.formatter.FormatTotals(totals),
		Reconciliation: rec,
	}
}

// cartPackage groups an order's lines under the names of the package's
// requirements, in menu order, with unknown categories last.
func (h *Handler) cartPackage(order cart.PackageOrder, totals pricing.PackageTotals) cartPackageResponse {
	pkg, err := h.catalog.Lookup(order.Package)
	if err != nil {
		pkg = catalog.PackageDefinition{}
	}

	groups := make(map[string][]cart.LineItem)
	for _, categoryID := range order.CategoryIDs() {
		name := h.catalog.CategoryName(pkg, categoryID)
		groups[name] = append(groups[name], order.Lines[categoryID]...)
	}

	resp := cartPackageResponse{
		Package:       order.Package,
		OrderID:       order.OrderID,
		GuestCount:    order.GuestCount,
		PricePerGuest: h.formatter.Format(order.PricePerGuest),
		Totals:        totals,
		Categories:    make([]lineGroupResponse, 0, len(groups)),
	}
	for _, req := range pkg.Categories {
		if lines, ok := groups[req.Name]; ok {
			resp.Categories = append(resp.Categories, lineGroupResponse{Name: req.Name, Lines: lines})
			delete(groups, req.Name)
		}
	}
	if lines, ok := groups[catalog.UnknownCategoryName]; ok {
		resp.Categories = append(resp.Categories, lineGroupResponse{Name: catalog.UnknownCategoryName, Lines: lines})
	}
	return resp
}

type lineRequest struct {
	LineID    string `json:"lineId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type productResponse struct {
	cart.Product
	PriceFormatted string `json:"priceFormatted"`
}

type productsResponse struct {
	CategoryID int               `json:"categoryId"`
	Products   []productResponse `json:"products"`
}

type totalsResponse struct {
	Totals         pricing.Totals          `json:"totals"`
	Formatted      pricing.FormattedTotals `json:"formatted"`
	Reconciliation pricing.Reconciliation  `json:"reconciliation"`
}

type lineGroupResponse struct {
	Name  string          `json:"name"`
	Lines []cart.LineItem `json:"lines"`
}

type cartPackageResponse struct {
	Package       string                `json:"package"`
	OrderID       string                `json:"orderId,omitempty"`
	GuestCount    int                   `json:"guestCount"`
	PricePerGuest string                `json:"pricePerGuest"`
	Totals        pricing.PackageTotals `json:"totals"`
	Categories    []lineGroupResponse   `json:"categories"`
}

type cartResponse struct {
	Packages []cartPackageResponse `json:"packages"`
	Active   *cart.ActiveMenu      `json:"active,omitempty"`
	Totals   totalsResponse        `json:"totals"`
}
