package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lokmanguedri/motivex/internal/auth"
	"github.com/lokmanguedri/motivex/internal/catalog"
	"github.com/lokmanguedri/motivex/internal/orders"
	"github.com/lokmanguedri/motivex/internal/ratelimit"
	"github.com/lokmanguedri/motivex/internal/shipping"
	"github.com/lokmanguedri/motivex/internal/storage"
	"github.com/lokmanguedri/motivex/internal/users"
	"github.com/lokmanguedri/motivex/internal/validation"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{orders.ErrInvalidInput, http.StatusBadRequest},
		{&orders.UnavailableError{ProductID: "p"}, http.StatusBadRequest},
		{orders.ErrPaymentLocked, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", catalog.ErrInvalid), http.StatusBadRequest},
		{storage.ErrUnsupportedType, http.StatusBadRequest},
		{users.ErrInvalidCredentials, http.StatusUnauthorized},
		{shipping.ErrBadSignature, http.StatusUnauthorized},
		{orders.ErrNotFound, http.StatusNotFound},
		{catalog.ErrNotFound, http.StatusNotFound},
		{&orders.TransitionError{From: orders.StatusReturned, To: orders.StatusPending}, http.StatusConflict},
		{orders.ErrAlreadyShipped, http.StatusConflict},
		{orders.ErrRequestInFlight, http.StatusConflict},
		{fmt.Errorf("sku X: %w", catalog.ErrConflict), http.StatusConflict},
		{users.ErrEmailTaken, http.StatusConflict},
		{shipping.ErrProvider, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	writeError(rec, req, zerolog.Nop(), validation.Errors{{Field: "phone", Rule: "phone_dz"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, []any{map[string]any{"field": "phone", "rule": "phone_dz"}}, body["fields"])

	rec = httptest.NewRecorder()
	writeError(rec, req, zerolog.Nop(), fmt.Errorf("create: %w", &orders.StockError{Details: []orders.Shortage{
		{ProductID: "p1", SKU: "PLQ-208", Required: 3, Available: 1},
	}}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "insufficient stock", body["error"])
	assert.Equal(t, []any{map[string]any{"product_id": "p1", "sku": "PLQ-208", "required": 3.0, "available": 1.0}}, body["details"])

	rec = httptest.NewRecorder()
	writeError(rec, req, zerolog.Nop(), errors.New("pq: connection refused to 10.0.0.3"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decodeBody(t, rec)["error"])
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	_, _ = w.Write([]byte(id.UserID))
}

func TestAuthenticate(t *testing.T) {
	iss := auth.NewIssuer("test-secret", time.Hour)
	var tokens TokenParser = iss
	h := authenticate(tokens)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	tok, _, err := iss.Issue("user-1", "USER")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "user-1", rec.Body.String())

	for _, hdr := range []string{"Bearer", "Basic abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", hdr)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, hdr)
	}
}

func TestRequireAdmin(t *testing.T) {
	h := requireAdmin(http.HandlerFunc(okHandler))
	serve := func(id *auth.Identity) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if id != nil {
			req = req.WithContext(auth.WithIdentity(req.Context(), *id))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusForbidden, serve(&auth.Identity{UserID: "u", Role: "USER"}))
	assert.Equal(t, http.StatusOK, serve(&auth.Identity{UserID: "a", Role: "ADMIN"}))
}

func TestRateLimit(t *testing.T) {
	defer goleak.VerifyNone(t)
	l := ratelimit.NewMemory(ratelimit.Config{Scope: "orders", Limit: 2, Window: time.Minute})
	defer l.Stop()
	h := rateLimit(l)(http.HandlerFunc(okHandler))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req.RemoteAddr = ip + ":51234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	rec := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "too many requests", decodeBody(t, rec)["error"])

	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)
}

func TestRecoverer(t *testing.T) {
	h := recoverer(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map write")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
