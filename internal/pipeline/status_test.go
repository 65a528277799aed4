package pipeline

import (
	"testing"
	"time"

	"sellerdash/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCarrierStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.Status
	}{
		{"Delivered", domain.StatusDelivered},
		{"DEL", domain.StatusDelivered},
		{"del", domain.StatusDelivered},
		{"RTO Delivered", domain.StatusRTO},
		{"Return to origin initiated", domain.StatusRTO},
		{"Out For Delivery", domain.StatusInTransit},
		{"OFD", domain.StatusInTransit},
		{"In Transit", domain.StatusInTransit},
		{"Shipment Dispatched", domain.StatusInTransit},
		{"Pickup Scheduled", domain.StatusProcessing},
		{"Manifested", domain.StatusProcessing},
		{"Undelivered - customer not available", domain.StatusProcessing},
		{"NDR raised", domain.StatusProcessing},
		{"Shipment Lost", domain.StatusException},
		{"Damaged in transit", domain.StatusInTransit},
		{"Cancelled by seller", domain.StatusCancelled},
		{"Model number mismatch", domain.StatusProcessing},
		{"Something odd", domain.StatusProcessing},
		{"", domain.StatusProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCarrierStatus(tt.raw))
		})
	}
}

func TestResolvePrecedence(t *testing.T) {
	cancelledAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	delivered := &domain.TrackingRecord{AWB: "A", RawStatus: "Delivered"}
	r := NewResolver(true)

	tests := []struct {
		name  string
		order domain.Order
		rec   *domain.TrackingRecord
		want  domain.Status
	}{
		{"cancelled beats tracking", domain.Order{CancelledAt: &cancelledAt}, delivered, domain.StatusCancelled},
		{"tracking beats fulfillment", domain.Order{FulfillmentStatus: domain.FulfillmentFulfilled}, &domain.TrackingRecord{RawStatus: "RTO Initiated"}, domain.StatusRTO},
		{"blank tracking falls back", domain.Order{FulfillmentStatus: domain.FulfillmentFulfilled}, &domain.TrackingRecord{RawStatus: "  "}, domain.StatusDelivered},
		{"fulfilled without tracking", domain.Order{FulfillmentStatus: domain.FulfillmentFulfilled}, nil, domain.StatusDelivered},
		{"unfulfilled rto tag", domain.Order{Tags: "RTO-requested"}, nil, domain.StatusRTO},
		{"fulfilled ignores rto tag", domain.Order{FulfillmentStatus: domain.FulfillmentFulfilled, Tags: "rto"}, nil, domain.StatusDelivered},
		{"plain order", domain.Order{}, nil, domain.StatusProcessing},
		{"partial fulfillment", domain.Order{FulfillmentStatus: domain.FulfillmentPartial}, nil, domain.StatusProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.order, tt.rec))
		})
	}
}

func TestResolveWithoutTrackingSource(t *testing.T) {
	r := NewResolver(false)
	assert.Equal(t, domain.StatusProcessing, r.Resolve(domain.Order{FulfillmentStatus: domain.FulfillmentFulfilled}, nil))
	assert.Equal(t, domain.StatusDelivered, Resolver{}.Resolve(domain.Order{FulfillmentStatus: domain.FulfillmentFulfilled}, nil))
}
