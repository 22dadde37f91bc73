package httpx

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/metrics"
	"github.com/lokmanguedri/motivex/internal/shipping"
	"github.com/lokmanguedri/motivex/internal/validation"
)

type ShippingLookup interface {
	Wilayas(ctx context.Context) ([]shipping.Wilaya, error)
	Communes(ctx context.Context, wilayaID int) ([]shipping.Commune, error)
	Centers(ctx context.Context, wilayaID int) ([]shipping.Center, error)
	Quote(ctx context.Context, wilayaID int, commune string, stopDesk bool) (shipping.Quote, error)
}

type WebhookProcessor interface {
	Handle(ctx context.Context, body []byte) (shipping.WebhookResult, error)
}

type ShippingHandler struct {
	Lookup        ShippingLookup
	Webhooks      WebhookProcessor
	WebhookSecret string
	Metrics       *metrics.Metrics
	Log           zerolog.Logger
}

func (h *ShippingHandler) Register(r chi.Router) {
	r.Get("/shipping/wilayas", h.wilayas)
	r.Get("/shipping/communes", h.communes)
	r.Get("/shipping/centers", h.centers)
	r.Get("/shipping/fees", h.fees)
	r.Get("/webhooks/shipping", h.handshake)
	r.Post("/webhooks/shipping", h.webhook)
}

func (h *ShippingHandler) wilayas(w http.ResponseWriter, r *http.Request) {
	ws, err := h.Lookup.Wilayas(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *ShippingHandler) communes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.wilayaParam(w, r)
	if !ok {
		return
	}
	cs, err := h.Lookup.Communes(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *ShippingHandler) centers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.wilayaParam(w, r)
	if !ok {
		return
	}
	cs, err := h.Lookup.Centers(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *ShippingHandler) fees(w http.ResponseWriter, r *http.Request) {
	id, ok := h.wilayaParam(w, r)
	if !ok {
		return
	}
	commune := r.URL.Query().Get("commune")
	if commune == "" {
		writeError(w, r, h.Log, validation.Errors{{Field: "commune", Rule: "required"}})
		return
	}
	stopDesk, _ := strconv.ParseBool(r.URL.Query().Get("stop_desk"))
	q, err := h.Lookup.Quote(r.Context(), id, commune, stopDesk)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *ShippingHandler) wilayaParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := queryInt(r, "wilaya_id")
	if err == nil && id == 0 {
		err = validation.Errors{{Field: "wilaya_id", Rule: "required"}}
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return 0, false
	}
	return id, true
}

// handshake answers the provider's subscription check by echoing crc_token.
func (h *ShippingHandler) handshake(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("crc_token")
	if !q.Has("subscribe") || token == "" {
		writeMessage(w, http.StatusBadRequest, "subscribe and crc_token are required")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, token)
}

func (h *ShippingHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if !shipping.VerifySignature(body, r.Header.Get(shipping.SignatureHeader), h.WebhookSecret) {
		h.Metrics.Webhook("rejected")
		h.Log.Warn().Str("remote_ip", clientIP(r)).Msg("webhook signature mismatch")
		writeError(w, r, h.Log, shipping.ErrBadSignature)
		return
	}
	res, err := h.Webhooks.Handle(r.Context(), body)
	if err != nil {
		// 5xx makes the provider retry; processed events are deduplicated
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
