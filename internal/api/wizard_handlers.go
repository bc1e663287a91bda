package api

import (
	"context"
	"net/http"

	"github.com/eugenenazirov/catering-cart/internal/cart"
	"github.com/eugenenazirov/catering-cart/internal/wizard"
)

// wizardOp is a body-less controller operation, as a method expression.
type wizardOp func(c *wizard.Controller, ctx context.Context, scope, pkg string) (wizard.View, error)

func (h *Handler) wizardAction(op wizardOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := h.requireScope(w, r)
		if !ok {
			return
		}
		view, err := op(h.wizard, r.Context(), scope, r.PathValue("package"))
		h.writeWizard(w, r, view, err)
	}
}

func (h *Handler) handleWizardGuests(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	var req guestsRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	view, err := h.wizard.ConfirmGuests(r.Context(), scope, r.PathValue("package"), req.Guests)
	h.writeWizard(w, r, view, err)
}

func (h *Handler) handleWizardQuantity(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	var req lineRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Quantity < 0 || (req.LineID == "" && req.ProductID == "") {
		writeError(w, http.StatusBadRequest, h.text.text(msgInvalidRequest), "a line or product and a non-negative quantity are required")
		return
	}
	view, err := h.wizard.SetQuantity(r.Context(), scope, r.PathValue("package"), cart.LineMutation{
		LineID:    req.LineID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	h.writeWizard(w, r, view, err)
}

func (h *Handler) writeWizard(w http.ResponseWriter, r *http.Request, view wizard.View, err error) {
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type guestsRequest struct {
	Guests int `json:"guests"`
}
