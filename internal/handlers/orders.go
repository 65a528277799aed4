package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"sellerdash/internal/domain"
	"sellerdash/internal/pipeline"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// OrderLine is one row of the order list.
type OrderLine struct {
	Platform      domain.Platform `json:"platform"`
	ID            string          `json:"id"`
	OriginalID    string          `json:"originalId"`
	Date          string          `json:"date"`
	Customer      string          `json:"customer"`
	Total         float64         `json:"total"`
	Status        domain.Status   `json:"status"`
	CarrierStatus string          `json:"carrierStatus,omitempty"`
	Items         string          `json:"items"`
	Address       string          `json:"address"`
	PaymentMethod string          `json:"paymentMethod"`
}

func (a *App) orderLine(ro pipeline.ResolvedOrder) OrderLine {
	o := ro.Order
	items := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
	}
	customer := o.ShippingAddress.FullName()
	if customer == "" {
		customer = "N/A"
	}
	line := OrderLine{
		Platform:      o.Platform,
		ID:            o.DisplayName(),
		OriginalID:    o.ID,
		Customer:      customer,
		Total:         domain.Money(o.NetTotal()),
		Status:        ro.Status,
		Items:         strings.Join(items, ", "),
		Address:       o.ShippingAddress.Line(),
		PaymentMethod: o.PaymentMethod(),
	}
	if !o.CreatedAt.IsZero() {
		line.Date = o.CreatedAt.In(a.loc).Format("02 Jan 2006, 15:04")
	}
	if ro.Tracking != nil {
		line.CarrierStatus = ro.Tracking.RawStatus
	}
	return line
}

// Orders lists storefront orders in the range with their reconciled status, merged
// with marketplace orders when the marketplace is configured.
func (a *App) Orders(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := a.log.With(zap.String("request_id", requestID(req)))
	if _, err := userSub(req); err != nil {
		return fail(log, "orders", err)
	}
	q := req.QueryStringParameters
	r, err := a.dateRange(q["since"], q["until"], 30)
	if err != nil {
		return fail(log, "orders", err)
	}
	sf, err := a.storefrontFor(ctx, req)
	if err != nil {
		return fail(log, "orders", err)
	}

	orders, err := sf.ListOrders(ctx, r.Start(), r.End())
	if err != nil {
		return fail(log, "orders", err)
	}

	var warnings []string
	if a.marketplace != nil {
		mkt, err := a.marketplace.ListOrders(ctx, r.Start())
		if err != nil {
			log.Warn("marketplace orders unavailable", zap.Error(err))
			warnings = append(warnings, "Amazon orders unavailable: "+err.Error())
		}
		orders = append(orders, mkt...)
	}

	inRange := orders[:0]
	for _, o := range orders {
		if r.Contains(o.CreatedAt) {
			inRange = append(inRange, o)
		}
	}

	resolved, err := a.pipelineFor(sf).ResolveOrders(ctx, inRange)
	if err != nil {
		return fail(log, "orders", err)
	}
	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].Order.CreatedAt.After(resolved[j].Order.CreatedAt)
	})

	lines := make([]OrderLine, 0, len(resolved))
	for _, ro := range resolved {
		lines = append(lines, a.orderLine(ro))
	}
	return jsonResp(http.StatusOK, map[string]any{
		"since":    r.SinceDay(),
		"until":    r.UntilDay(),
		"orders":   lines,
		"warnings": warnings,
	})
}
