package handlers

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

type HealthResponse struct {
	OK           bool            `json:"ok"`
	Service      string          `json:"service"`
	Integrations map[string]bool `json:"integrations"`
}

// Health reports liveness and which upstreams this deployment has credentials for.
func (a *App) Health(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResp(http.StatusOK, HealthResponse{
		OK:      true,
		Service: "sellerdash",
		Integrations: map[string]bool{
			"shopify":   a.cfg.RequireShopify() == nil || a.credentials != nil,
			"facebook":  a.ads != nil,
			"rapidshyp": a.carrier != nil,
			"amazon":    a.marketplace != nil,
		},
	})
}
