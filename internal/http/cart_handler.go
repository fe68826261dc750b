package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jaideep-27/spargen-project/internal/domain"
	"github.com/jaideep-27/spargen-project/internal/engine"
)

// CartEngine is the slice of the reconciliation engine the HTTP layer
// consumes.
type CartEngine interface {
	Add(ctx context.Context, sess engine.Session, productID string, quantity int) (domain.View, error)
	UpdateQuantity(ctx context.Context, sess engine.Session, ref string, quantity int) (domain.View, error)
	Remove(ctx context.Context, sess engine.Session, ref string) (domain.View, error)
	Clear(ctx context.Context, sess engine.Session) (domain.View, error)
	Merge(ctx context.Context, sess engine.Session) (engine.MergeResult, domain.View, error)
	View(ctx context.Context, sess engine.Session) (domain.View, error)
}

type CartHandler struct {
	engine  CartEngine
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(eng CartEngine, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		engine:  eng,
		timeout: timeout,
		logger:  logger,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type LineDTO struct {
	ID        string `json:"id,omitempty"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type CartResponseDTO struct {
	IsGuest bool      `json:"is_guest"`
	Lines   []LineDTO `json:"lines"`
	Total   string    `json:"total"`
}

type MergeFailureDTO struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

type MergeResponseDTO struct {
	Merged   int               `json:"merged"`
	Failed   int               `json:"failed"`
	Failures []MergeFailureDTO `json:"failures,omitempty"`
	Cart     CartResponseDTO   `json:"cart"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func cartResponse(view domain.View) CartResponseDTO {
	resp := CartResponseDTO{
		IsGuest: view.IsGuest(),
		Lines:   make([]LineDTO, 0, len(view.Lines)),
		Total:   view.Total.String(),
	}
	for _, l := range view.Lines {
		resp.Lines = append(resp.Lines, LineDTO{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.String(),
			Subtotal:  l.Subtotal().String(),
		})
	}
	return resp
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.engine.View(ctx, sessionFromContext(r.Context()))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(view))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.engine.Add(ctx, sessionFromContext(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cartResponse(view))
}

// UpdateQuantity addresses the line by its persistence-assigned ID; guest
// carts have no line IDs, so guest sessions use the product route instead.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, chi.URLParam(r, "itemID"))
}

func (h *CartHandler) UpdateGuestQuantity(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, chi.URLParam(r, "productID"))
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request, ref string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	view, err := h.engine.UpdateQuantity(ctx, sessionFromContext(r.Context()), ref, req.Quantity)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(view))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, chi.URLParam(r, "itemID"))
}

func (h *CartHandler) RemoveGuestItem(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, chi.URLParam(r, "productID"))
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request, ref string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.engine.Remove(ctx, sessionFromContext(r.Context()), ref)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(view))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.engine.Clear(ctx, sessionFromContext(r.Context()))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(view))
}

// MergeCart folds the session's guest cart into the authenticated cart.
// Called by the storefront once, right after a successful login.
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, view, err := h.engine.Merge(ctx, sessionFromContext(r.Context()))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	resp := MergeResponseDTO{
		Merged: result.Merged,
		Failed: result.Failed,
		Cart:   cartResponse(view),
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, MergeFailureDTO{
			ProductID: f.ProductID,
			Reason:    f.Reason,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) respondEngineError(w http.ResponseWriter, err error) {
	code := engine.ErrorCode(err)

	var status int
	switch code {
	case "product_not_found", "line_not_found":
		status = http.StatusNotFound
	case "invalid_quantity", "quantity_limit_exceeded", "invalid_request":
		status = http.StatusBadRequest
	case "insufficient_stock":
		status = http.StatusConflict
	case "not_authenticated", "no_session":
		status = http.StatusUnauthorized
	case "rate_limited":
		status = http.StatusTooManyRequests
	case "service_unavailable":
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Transport-level detail stays in the logs.
		h.logger.Error("cart operation failed", zap.Error(err))
		message = "internal server error"
	}

	respondError(w, status, code, message)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are gone; nothing left to do for this response.
		return
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
