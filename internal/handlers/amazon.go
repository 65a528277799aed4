package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// BuyerInfo returns the buyer name of a marketplace order, or "N/A" when the
// marketplace withholds it.
func (a *App) BuyerInfo(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := a.log.With(zap.String("request_id", requestID(req)))
	if _, err := userSub(req); err != nil {
		return fail(log, "buyer info", err)
	}
	id := strings.TrimSpace(req.QueryStringParameters["orderId"])
	if id == "" {
		return fail(log, "buyer info", badRequest("orderId is required"))
	}
	if err := a.requireMarketplace(); err != nil {
		return fail(log, "buyer info", err)
	}
	info, err := a.marketplace.GetBuyerInfo(ctx, id)
	if err != nil {
		return fail(log, "buyer info", err)
	}
	name := "N/A"
	if info != nil && strings.TrimSpace(info.BuyerName) != "" {
		name = info.BuyerName
	}
	return jsonResp(http.StatusOK, map[string]string{"orderId": id, "name": name})
}
