package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/cart"
	"github.com/lokmanguedri/motivex/internal/catalog"
	"github.com/lokmanguedri/motivex/internal/validation"
)

type CartStore interface {
	Get(ctx context.Context, userID string) ([]cart.Line, error)
	SetItem(ctx context.Context, userID, productID string, qty int) ([]cart.Line, error)
	RemoveItem(ctx context.Context, userID, productID string) ([]cart.Line, error)
	Clear(ctx context.Context, userID string) error
}

type CartQuoter interface {
	Quote(ctx context.Context, lines []cart.Line, lang catalog.Lang) (cart.Quote, error)
}

type CartHandler struct {
	Store  CartStore
	Quoter CartQuoter
	Log    zerolog.Logger
}

// Register mounts the guest quote. RegisterUser needs an authenticated
// router.
func (h *CartHandler) Register(r chi.Router) {
	r.Post("/cart/quote", h.quote)
}

func (h *CartHandler) RegisterUser(r chi.Router) {
	r.Get("/cart", h.get)
	r.Put("/cart/items", h.setItem)
	r.Delete("/cart/items/{productID}", h.removeItem)
	r.Delete("/cart", h.clear)
}

type quoteRequest struct {
	Items []cart.Line `json:"items" validate:"max=50,dive"`
}

func (h *CartHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	for i := range req.Items {
		req.Items[i].ProductID = strings.ToLower(strings.TrimSpace(req.Items[i].ProductID))
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.writeQuote(w, r, req.Items)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := currentUser(r)
	lines, err := h.Store.Get(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.writeQuote(w, r, lines)
}

func (h *CartHandler) setItem(w http.ResponseWriter, r *http.Request) {
	var line cart.Line
	if err := decodeJSON(w, r, &line); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	line.ProductID = strings.ToLower(strings.TrimSpace(line.ProductID))
	if err := validation.Var("product_id", line.ProductID, "required,uuid"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := validation.Var("qty", line.Qty, "min=0,max=99"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	id, _ := currentUser(r)
	lines, err := h.Store.SetItem(r.Context(), id.UserID, line.ProductID, line.Qty)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.writeQuote(w, r, lines)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, _ := currentUser(r)
	lines, err := h.Store.RemoveItem(r.Context(), id.UserID, strings.ToLower(chi.URLParam(r, "productID")))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.writeQuote(w, r, lines)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	id, _ := currentUser(r)
	if err := h.Store.Clear(r.Context(), id.UserID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) writeQuote(w http.ResponseWriter, r *http.Request, lines []cart.Line) {
	q, err := h.Quoter.Quote(r.Context(), lines, requestLang(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
