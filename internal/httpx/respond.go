package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/auth"
	"github.com/lokmanguedri/motivex/internal/cart"
	"github.com/lokmanguedri/motivex/internal/catalog"
	"github.com/lokmanguedri/motivex/internal/orders"
	"github.com/lokmanguedri/motivex/internal/shipping"
	"github.com/lokmanguedri/motivex/internal/storage"
	"github.com/lokmanguedri/motivex/internal/users"
	"github.com/lokmanguedri/motivex/internal/validation"
)

const maxJSONBody = 1 << 20

var errBadJSON = errors.New("invalid json")

type errorBody struct {
	Error   string                  `json:"error"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
	Details []orders.Shortage       `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadJSON)
	}
	return nil
}

// statusFor maps domain errors onto HTTP codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadJSON),
		errors.Is(err, orders.ErrInvalidInput),
		errors.Is(err, orders.ErrProductUnavailable),
		errors.Is(err, orders.ErrPaymentLocked),
		errors.Is(err, catalog.ErrInvalid),
		errors.Is(err, users.ErrInvalidPhone),
		errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, cart.ErrCartFull),
		errors.Is(err, shipping.ErrUnknownWilaya),
		errors.Is(err, shipping.ErrUnknownCommune),
		errors.Is(err, shipping.ErrBadPayload),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, storage.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, shipping.ErrBadSignature):
		return http.StatusUnauthorized
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrAlreadyPaid),
		errors.Is(err, orders.ErrAlreadyShipped),
		errors.Is(err, orders.ErrNotConfirmed),
		errors.Is(err, orders.ErrRequestInFlight),
		errors.Is(err, catalog.ErrConflict),
		errors.Is(err, catalog.ErrInUse),
		errors.Is(err, users.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, shipping.ErrProvider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var (
		verrs validation.Errors
		stock *orders.StockError
		big   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: verrs})
		return
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, errorBody{Error: orders.ErrInsufficientStock.Error(), Details: stock.Details})
		return
	case errors.As(err, &big):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "request body too large"})
		return
	}

	code := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Str("request_id", requestID(r)).Msg("request failed")
		if code == http.StatusInternalServerError {
			msg = http.StatusText(code)
		}
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, validation.Errors{{Field: name, Rule: "number"}}
	}
	return n, nil
}
