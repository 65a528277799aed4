package pipeline

import (
	"strings"

	"sellerdash/internal/domain"
)

type statusRule struct {
	status domain.Status
	// contains matches anywhere in the upper-cased carrier text.
	contains []string
	// exact matches only the whole text.
	exact []string
	// unless skips the rule when any of these appear.
	unless []string
}

func (r statusRule) matches(s string) bool {
	for _, u := range r.unless {
		if strings.Contains(s, u) {
			return false
		}
	}
	for _, e := range r.exact {
		if s == e {
			return true
		}
	}
	for _, c := range r.contains {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

// carrierRules are evaluated in order; the first match wins.
var carrierRules = []statusRule{
	{status: domain.StatusRTO, contains: []string{"RTO", "RETURN"}},
	{
		status:   domain.StatusDelivered,
		contains: []string{"DELIVERED"},
		exact:    []string{"DEL"},
		unless:   []string{"UNDELIVERED", "NOT DELIVERED"},
	},
	{status: domain.StatusInTransit, contains: []string{"OFD", "OUT FOR DELIVERY", "OUTSCAN", "TRANSIT", "DISPATCH", "SHIPPED"}},
	{status: domain.StatusProcessing, contains: []string{"PICKUP", "PUC", "MANIFEST", "CREATED", "ASSIGNED", "WEIGHT", "UNDELIVERED", "NDR", "REATTEMPT"}},
	{status: domain.StatusException, contains: []string{"EXCEPTION", "LOST", "DAMAGED"}},
	{status: domain.StatusCancelled, contains: []string{"CANCEL"}},
}

// ClassifyCarrierStatus maps free-form carrier text onto a status. Unknown text is Processing.
func ClassifyCarrierStatus(raw string) domain.Status {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return domain.StatusProcessing
	}
	for _, r := range carrierRules {
		if r.matches(s) {
			return r.status
		}
	}
	return domain.StatusProcessing
}

// Resolver reconciles storefront state with carrier tracking.
type Resolver struct {
	// FulfilledFallback is used for fulfilled orders with no carrier record.
	FulfilledFallback domain.Status
}

// NewResolver returns a resolver. Without a tracking source a fulfilled order's
// real position is unknown, so it stays Processing.
func NewResolver(trackingEnabled bool) Resolver {
	if trackingEnabled {
		return Resolver{FulfilledFallback: domain.StatusDelivered}
	}
	return Resolver{FulfilledFallback: domain.StatusProcessing}
}

// Resolve picks the single status shown for an order. Cancellation on the storefront
// overrides everything; carrier tracking beats storefront fulfillment.
func (r Resolver) Resolve(o domain.Order, rec *domain.TrackingRecord) domain.Status {
	if o.Cancelled() {
		return domain.StatusCancelled
	}
	if rec != nil && strings.TrimSpace(rec.RawStatus) != "" {
		return ClassifyCarrierStatus(rec.RawStatus)
	}
	return r.platformFallback(o)
}

func (r Resolver) platformFallback(o domain.Order) domain.Status {
	if o.Fulfilled() {
		if r.FulfilledFallback == "" {
			return domain.StatusDelivered
		}
		return r.FulfilledFallback
	}
	if o.HasTagContaining("rto") {
		return domain.StatusRTO
	}
	return domain.StatusProcessing
}
