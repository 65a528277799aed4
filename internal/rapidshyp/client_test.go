package rapidshyp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sellerdash/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("rs-key", srv.URL, time.Second, zaptest.NewLogger(t))
}

func TestTrack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/track_order", r.URL.Path)
		assert.Equal(t, "rs-key", r.Header.Get("rapidshyp-token"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body["awb"] {
		case "AWB1":
			_, _ = w.Write([]byte(`{"success":true,"records":[{"shipment_details":[{
				"current_tracking_status_desc":"Out For Delivery","current_tracking_status":"OFD",
				"current_status_date":"2024-01-02 10:11:12","courier_name":"Delhivery"}]}]}`))
		case "AWB2":
			_, _ = w.Write([]byte(`{"success":true,"records":[{"shipment_details":[{
				"current_tracking_status_desc":"","current_tracking_status":"DEL"}]}]}`))
		default:
			_, _ = w.Write([]byte(`{"success":false,"records":[]}`))
		}
	})

	rec, err := c.Track(context.Background(), "AWB1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Out For Delivery", rec.RawStatus)
	assert.Equal(t, "Delhivery", rec.Carrier)
	require.NotNil(t, rec.UpdatedAt)
	assert.Equal(t, 10, rec.UpdatedAt.Hour())

	rec, err = c.Track(context.Background(), "AWB2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "DEL", rec.RawStatus)
	assert.Nil(t, rec.UpdatedAt)

	rec, err = c.Track(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = c.Track(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestTrackHTTPFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Track(context.Background(), "AWB1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestLabel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/labels", r.URL.Path)
		assert.Equal(t, "#1001", r.URL.Query().Get("order_id"))
		assert.Equal(t, "Bearer rs-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	l, err := c.Label(context.Background(), "#1001")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", l.MimeType)
	assert.Equal(t, []byte("%PDF-1.4"), l.Data)
}

func TestCreateAndCancelShipment(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/shipments":
			var req ShipmentRequest
			assert.NoError(t, json.Unmarshal(b, &req))
			assert.Equal(t, "#1001", req.OrderID)
			assert.Equal(t, "COD", req.PaymentMethod)
			assert.Equal(t, 499.0, req.OrderTotal)
			_, _ = w.Write([]byte(`{"status":"created","shipment_id":"S1"}`))
		case "/shipments/cancel":
			assert.JSONEq(t, `{"order_id":"#1001"}`, string(b))
			w.WriteHeader(http.StatusOK)
		}
	})

	o := domain.Order{
		Name:            "#1001",
		TotalPrice:      decimal.NewFromInt(499),
		FinancialStatus: "pending",
		ShippingAddress: domain.Address{FirstName: "Asha", LastName: "Rao", Address1: "1 MG Road", City: "Pune", Zip: "411001", CountryCode: "IN"},
		Items:           []domain.LineItem{{Name: "Tee", SKU: "T-1", Quantity: 1, Price: decimal.NewFromInt(499)}},
	}
	out, err := c.CreateShipment(context.Background(), NewShipmentRequest(o))
	require.NoError(t, err)
	assert.Equal(t, "S1", out["shipment_id"])

	require.NoError(t, c.CancelShipment(context.Background(), "#1001"))
	assert.Equal(t, []string{"/shipments", "/shipments/cancel"}, paths)
}

func TestShipmentRequestValidate(t *testing.T) {
	err := NewShipmentRequest(domain.Order{Name: "#1"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address, zip code, line items")
}
