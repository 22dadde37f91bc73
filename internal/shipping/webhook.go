package shipping

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/metrics"
	"github.com/lokmanguedri/motivex/internal/orders"
	"github.com/lokmanguedri/motivex/internal/redisx"
)

const SignatureHeader = "X-Yalidine-Signature"

// VerifySignature checks a hex HMAC-SHA256 of body against header in
// constant time.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" || header == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type WebhookPayload struct {
	Type   string         `json:"type"`
	Events []WebhookEvent `json:"events"`
}

type WebhookEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type EventData struct {
	Tracking string `json:"tracking"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
}

var shippedStatuses = []string{
	"expedie",
	"centre",
	"vers wilaya",
	"recu a wilaya",
	"sorti en livraison",
	"en attente du client",
	"transfert",
}

// MapStatus translates a carrier status label to an order status. Labels
// that do not move the order return nil.
func MapStatus(label string) *orders.Status {
	s := foldName(label)
	var st orders.Status
	switch {
	case s == "livre" || strings.HasPrefix(s, "livre "):
		st = orders.StatusDelivered
	case strings.HasPrefix(s, "retour"):
		st = orders.StatusReturned
	default:
		for _, p := range shippedStatuses {
			if s == p || strings.HasPrefix(s, p+" ") {
				st = orders.StatusShipped
				break
			}
		}
	}
	if st == "" {
		return nil
	}
	return &st
}

// CarrierUpdater applies a parcel status to the order carrying it.
type CarrierUpdater interface {
	ApplyCarrierUpdate(ctx context.Context, trackingID, providerStatus string, raw json.RawMessage, target *orders.Status) (orders.Order, bool, error)
}

type Webhooks struct {
	Orders  CarrierUpdater
	Redis   redis.Cmdable
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

type WebhookResult struct {
	Applied    int `json:"applied"`
	Duplicates int `json:"duplicates"`
	Ignored    int `json:"ignored"`
}

// Handle processes every event of a verified payload. An event whose order
// update fails is released from dedup so the carrier's retry reprocesses it;
// the first such error is returned.
func (w *Webhooks) Handle(ctx context.Context, body []byte) (WebhookResult, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		w.Metrics.Webhook("rejected")
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	var (
		res      WebhookResult
		firstErr error
	)
	for _, ev := range p.Events {
		outcome, err := w.handleEvent(ctx, ev)
		w.Metrics.Webhook(outcome)
		switch outcome {
		case "applied":
			res.Applied++
		case "duplicate":
			res.Duplicates++
		case "ignored":
			res.Ignored++
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return res, firstErr
}

func (w *Webhooks) handleEvent(ctx context.Context, ev WebhookEvent) (string, error) {
	var d EventData
	if err := json.Unmarshal(ev.Data, &d); err != nil || d.Tracking == "" {
		w.Log.Warn().Str("event_id", ev.EventID).Msg("webhook event without tracking")
		return "ignored", nil
	}

	dedupKey := ""
	if ev.EventID != "" && w.Redis != nil {
		dedupKey = fmt.Sprintf(redisx.KeyDedup, "webhook", ev.EventID)
		first, err := redisx.MarkOnce(ctx, w.Redis, dedupKey, redisx.TTLDedup)
		if err != nil {
			w.Log.Warn().Err(err).Msg("webhook dedup unavailable")
			dedupKey = ""
		} else if !first {
			return "duplicate", nil
		}
	}

	raw, _ := json.Marshal(ev)
	o, moved, err := w.Orders.ApplyCarrierUpdate(ctx, d.Tracking, d.Status, raw, MapStatus(d.Status))
	if errors.Is(err, orders.ErrNotFound) {
		w.Log.Info().Str("tracking", d.Tracking).Msg("webhook for unknown parcel")
		return "ignored", nil
	}
	if err != nil {
		if dedupKey != "" {
			_ = w.Redis.Del(ctx, dedupKey).Err()
		}
		w.Log.Error().Err(err).Str("tracking", d.Tracking).Msg("apply carrier update")
		return "failed", err
	}
	w.Log.Info().Str("order", o.Code).Str("tracking", d.Tracking).Str("carrier_status", d.Status).
		Bool("moved", moved).Str("status", string(o.Status)).Msg("carrier update")
	return "applied", nil
}
