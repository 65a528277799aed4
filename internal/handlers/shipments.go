package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"sellerdash/internal/domain"
	"sellerdash/internal/rapidshyp"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

func (a *App) orderFor(ctx context.Context, req events.APIGatewayV2HTTPRequest, id string) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, badRequest("orderId is required")
	}
	sf, err := a.storefrontFor(ctx, req)
	if err != nil {
		return domain.Order{}, err
	}
	return sf.GetOrder(ctx, id)
}

// Label returns the carrier's shipping label for a storefront order.
func (a *App) Label(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := a.log.With(zap.String("request_id", requestID(req)))
	if _, err := userSub(req); err != nil {
		return fail(log, "label", err)
	}
	if err := a.requireCarrier(); err != nil {
		return fail(log, "label", err)
	}
	o, err := a.orderFor(ctx, req, req.QueryStringParameters["orderId"])
	if err != nil {
		return fail(log, "label", err)
	}
	label, err := a.carrier.Label(ctx, o.DisplayName())
	if err != nil {
		return fail(log, "label", err)
	}
	return jsonResp(http.StatusOK, map[string]string{
		"labelData": base64.StdEncoding.EncodeToString(label.Data),
		"mimeType":  label.MimeType,
	})
}

type statusUpdate struct {
	OrderID   string `json:"orderId"`
	NewStatus string `json:"newStatus"`
}

// UpdateStatus moves an order through the carrier: Processing books a shipment,
// Cancelled cancels it. Other targets are owned by the carrier and rejected.
func (a *App) UpdateStatus(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := a.log.With(zap.String("request_id", requestID(req)))
	if _, err := userSub(req); err != nil {
		return fail(log, "update status", err)
	}
	var body statusUpdate
	if err := decodeBody(req, &body); err != nil {
		return fail(log, "update status", err)
	}
	target, ok := domain.ParseStatus(strings.TrimSpace(body.NewStatus))
	if !ok || (target != domain.StatusProcessing && target != domain.StatusCancelled) {
		return fail(log, "update status", badRequest("newStatus must be %q or %q", domain.StatusProcessing, domain.StatusCancelled))
	}
	if err := a.requireCarrier(); err != nil {
		return fail(log, "update status", err)
	}
	o, err := a.orderFor(ctx, req, body.OrderID)
	if err != nil {
		return fail(log, "update status", err)
	}
	log = log.With(zap.String("order", o.DisplayName()), zap.String("target", string(target)))

	switch target {
	case domain.StatusProcessing:
		shipment := rapidshyp.NewShipmentRequest(o)
		if err := shipment.Validate(); err != nil {
			return fail(log, "update status", badRequest("%v", err))
		}
		res, err := a.carrier.CreateShipment(ctx, shipment)
		if err != nil {
			return fail(log, "update status", err)
		}
		log.Info("shipment created")
		return jsonResp(http.StatusOK, map[string]any{
			"orderId": o.ID,
			"status":  target,
			"carrier": res,
		})
	default:
		if err := a.carrier.CancelShipment(ctx, o.DisplayName()); err != nil {
			return fail(log, "update status", err)
		}
		log.Info("shipment cancelled")
		return jsonResp(http.StatusOK, map[string]any{
			"orderId": o.ID,
			"status":  target,
		})
	}
}
