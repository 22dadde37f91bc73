package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/orders"
	"github.com/lokmanguedri/motivex/internal/ratelimit"
	"github.com/lokmanguedri/motivex/internal/validation"
)

const IdempotencyHeader = "Idempotency-Key"

type OrderService interface {
	Create(ctx context.Context, userID *string, idemKey string, in orders.CreateInput) (orders.Result, error)
	Get(ctx context.Context, id string) (orders.Order, error)
	Track(ctx context.Context, code, phone string) (orders.Order, error)
	ListForUser(ctx context.Context, userID string) ([]orders.Order, error)
	List(ctx context.Context, f orders.Filter) (orders.Page, error)
	UpdateStatus(ctx context.Context, id string, p orders.Patch) (orders.Order, error)
	SubmitPaymentReference(ctx context.Context, code, phone, reference string) (orders.Order, error)
}

type ShipmentCreator interface {
	Create(ctx context.Context, orderID string) (orders.Order, error)
}

type OrdersHandler struct {
	Orders    OrderService
	Shipments ShipmentCreator

	// Limiter guards checkout per client IP; nil disables it.
	Limiter ratelimit.Limiter
	Log     zerolog.Logger
}

type createOrderResp struct {
	Order      orders.Order `json:"order"`
	Idempotent bool         `json:"idempotent"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	create := http.Handler(http.HandlerFunc(h.createOrder))
	if h.Limiter != nil {
		create = rateLimit(h.Limiter)(create)
	}
	r.Method(http.MethodPost, "/orders", create)
	r.Get("/orders/track", h.trackOrder)
	r.Post("/orders/{code}/payment-reference", h.paymentReference)
}

func (h *OrdersHandler) RegisterUser(r chi.Router) {
	r.Get("/account/orders", h.myOrders)
}

func (h *OrdersHandler) RegisterAdmin(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}", h.updateOrder)
	r.Post("/orders/{id}/shipment", h.createShipment)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var userID *string
	if id, ok := currentUser(r); ok {
		userID = &id.UserID
	}
	idemKey := r.Header.Get(IdempotencyHeader)
	if len(idemKey) > 128 {
		writeError(w, r, h.Log, validation.Errors{{Field: IdempotencyHeader, Rule: "max", Param: "128"}})
		return
	}

	res, err := h.Orders.Create(r.Context(), userID, idemKey, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, createOrderResp{Order: res.Order, Idempotent: res.Replayed})
}

func (h *OrdersHandler) trackOrder(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("code")))
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	var errs validation.Errors
	if code == "" {
		errs = append(errs, validation.FieldError{Field: "code", Rule: "required"})
	}
	if phone == "" {
		errs = append(errs, validation.FieldError{Field: "phone", Rule: "required"})
	}
	if len(errs) > 0 {
		writeError(w, r, h.Log, errs)
		return
	}
	if !orders.ValidCode(code) {
		writeError(w, r, h.Log, orders.ErrNotFound)
		return
	}
	o, err := h.Orders.Track(r.Context(), code, phone)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type paymentReferenceReq struct {
	Phone     string `json:"phone" validate:"required"`
	Reference string `json:"reference" validate:"required,max=64"`
}

func (h *OrdersHandler) paymentReference(w http.ResponseWriter, r *http.Request) {
	var req paymentReferenceReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	req.Reference = strings.TrimSpace(req.Reference)
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	code := strings.ToUpper(chi.URLParam(r, "code"))
	o, err := h.Orders.SubmitPaymentReference(r.Context(), code, req.Phone, req.Reference)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.Info().Str("order", o.Code).Msg("payment reference submitted")
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := currentUser(r)
	list, err := h.Orders.ListForUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.Filter{Query: strings.TrimSpace(q.Get("q"))}
	var errs validation.Errors
	if s := q.Get("status"); s != "" {
		st, ok := orders.ParseStatus(s)
		if !ok {
			errs = append(errs, validation.FieldError{Field: "status", Rule: "oneof"})
		}
		f.Status = st
	}
	if s := q.Get("payment_method"); s != "" {
		f.Method = orders.PaymentMethod(strings.ToUpper(s))
		if !f.Method.Valid() {
			errs = append(errs, validation.FieldError{Field: "payment_method", Rule: "oneof", Param: "COD BARIDIMOB"})
		}
	}
	var err error
	if f.Page, err = queryInt(r, "page"); err != nil {
		errs = append(errs, validation.FieldError{Field: "page", Rule: "number"})
	}
	if f.PageSize, err = queryInt(r, "page_size"); err != nil {
		errs = append(errs, validation.FieldError{Field: "page_size", Rule: "number"})
	}
	if len(errs) > 0 {
		writeError(w, r, h.Log, errs)
		return
	}

	pg, err := h.Orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if pg.Items == nil {
		pg.Items = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, pg)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var p orders.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) createShipment(w http.ResponseWriter, r *http.Request) {
	o, err := h.Shipments.Create(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}
