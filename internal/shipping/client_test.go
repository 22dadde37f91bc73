package shipping

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{Provider: "yalidine", APIID: "id-1", APIToken: "tok-1", BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestNewClientProviders(t *testing.T) {
	c, err := NewClient(Options{Provider: "guepex"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.guepex.app/v1", c.http.BaseURL)

	_, err = NewClient(Options{Provider: "dhl"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestClientWilayasPaginates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wilayas/", r.URL.Path)
		assert.Equal(t, "id-1", r.Header.Get("X-API-ID"))
		assert.Equal(t, "tok-1", r.Header.Get("X-API-TOKEN"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = io.WriteString(w, `{"has_more":true,"total_data":2,"data":[{"id":1,"name":"Adrar","zone":4,"is_deliverable":true}]}`)
		case "2":
			_, _ = io.WriteString(w, `{"has_more":false,"total_data":2,"data":[{"id":16,"name":"Alger","zone":1,"is_deliverable":true}]}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	ws, err := c.Wilayas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Wilaya{
		{ID: 1, Name: "Adrar", Zone: 4, IsDeliverable: true},
		{ID: 16, Name: "Alger", Zone: 1, IsDeliverable: true},
	}, ws)
}

func TestClientCommunesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "31", r.URL.Query().Get("wilaya_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"has_more":false,"data":[{"id":3101,"name":"Oran","wilaya_id":31,"has_stop_desk":true,"is_deliverable":true}]}`)
	})
	cs, err := c.Communes(context.Background(), 31)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.True(t, cs[0].HasStopDesk)
}

func TestClientFees(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fees/", r.URL.Path)
		assert.Equal(t, "16", r.URL.Query().Get("from_wilaya_id"))
		assert.Equal(t, "31", r.URL.Query().Get("to_wilaya_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"from_wilaya_name":"Alger","to_wilaya_name":"Oran","zone":2,
			"per_commune":{"3101":{"commune_id":3101,"commune_name":"Oran","express_home":600,"express_desk":400}}}`)
	})
	fees, err := c.Fees(context.Background(), 16, 31)
	require.NoError(t, err)
	cf := fees.PerCommune["3101"]
	assert.True(t, decimal.NewFromInt(600).Equal(cf.HomeFee))
	assert.True(t, decimal.NewFromInt(400).Equal(cf.DeskFee))
}

func TestClientCreateParcel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body []Parcel
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "MX-2026-ABC123", body[0].OrderID)
		assert.True(t, body[0].IsStopDesk)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"MX-2026-ABC123":{"success":true,"order_id":"MX-2026-ABC123","tracking":"yal-12AB34","label":"https://labels/yal-12AB34.pdf"}}`)
	})
	desk := 160101
	res, err := c.CreateParcel(context.Background(), Parcel{OrderID: "MX-2026-ABC123", IsStopDesk: true, StopDeskID: &desk})
	require.NoError(t, err)
	assert.Equal(t, "yal-12AB34", res.Tracking)
	assert.Equal(t, "https://labels/yal-12AB34.pdf", res.Label)
}

func TestClientCreateParcelRejectedNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.CreateParcel(context.Background(), Parcel{OrderID: "MX-2026-ABC123"})
	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, int32(1), calls.Load())

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"MX-2026-ABC123":{"success":false,"message":"commune introuvable"}}`)
	})
	_, err = c.CreateParcel(context.Background(), Parcel{OrderID: "MX-2026-ABC123"})
	require.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "commune introuvable")
}

func TestClientRetriesReads(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[{"tracking":"yal-1","last_status":"Livré"}]}`)
	})
	st, err := c.Parcel(context.Background(), "yal-1")
	require.NoError(t, err)
	assert.Equal(t, "Livré", st.LastStatus)
	assert.Equal(t, int32(2), calls.Load())
}
