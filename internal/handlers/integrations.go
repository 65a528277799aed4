package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sellerdash/internal/config"
	"sellerdash/internal/integrations"
	"sellerdash/internal/shopify"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// ConnectionStore is the write side of the per-user shop credentials.
type ConnectionStore interface {
	BeginConnect(ctx context.Context, sub, shop string) (string, error)
	ConsumeState(ctx context.Context, state, shop string) (string, error)
	SaveConnection(ctx context.Context, sub, shop, token, scope string) error
	Connections(ctx context.Context, sub string) ([]integrations.Connection, error)
	Disconnect(ctx context.Context, sub, shop string) error
}

func (a *App) requireConnections() error {
	if a.connections == nil {
		if err := a.cfg.RequireIntegrations(); err != nil {
			return err
		}
		return fmt.Errorf("%w: integrations store", config.ErrMissingConfig)
	}
	return nil
}

func (a *App) requireInstaller() error {
	if err := a.cfg.RequireShopifyApp(); err != nil {
		return err
	}
	return a.requireConnections()
}

func shopParam(req events.APIGatewayV2HTTPRequest) (string, error) {
	shop := strings.ToLower(strings.TrimSpace(req.QueryStringParameters["shop"]))
	if !shopify.ValidShopDomain(shop) {
		return "", badRequest("invalid shop (expected like your-store.myshopify.com)")
	}
	return shop, nil
}

// ShopifyConnect starts an app install for the caller and returns the URL the
// browser should visit.
func (a *App) ShopifyConnect(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := a.log.With(zap.String("request_id", requestID(req)))
	sub, err := userSub(req)
	if err != nil {
		return fail(log, "shopify connect", err)
	}
	shop, err := shopParam(req)
	if err != nil {
		return fail(log, "shopify connect", err)
	}
	if err := a.requireInstaller(); err != nil {
		return fail(log, "shopify connect", err)
	}
	state, err := a.connections.BeginConnect(ctx, sub, shop)
	if err != nil {
		return fail(log, "shopify connect", err)
	}
	return jsonResp(http.StatusOK, map[string]any{
		"authorizeUrl": a.installer.AuthorizeURL(shop, state),
	})
}

// ShopifyCallback completes an install. It is reached by a browser redirect from
// Shopify, so identity comes from the stored state rather than a JWT.
func (a *App) ShopifyCallback(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := a.log.With(zap.String("request_id", requestID(req)))
	params := req.QueryStringParameters
	shop, err := shopParam(req)
	if err != nil {
		return fail(log, "shopify callback", err)
	}
	code := strings.TrimSpace(params["code"])
	state := strings.TrimSpace(params["state"])
	if code == "" || state == "" {
		return fail(log, "shopify callback", badRequest("missing required oauth params"))
	}
	if err := a.requireInstaller(); err != nil {
		return fail(log, "shopify callback", err)
	}
	if err := a.installer.VerifyCallback(params); err != nil {
		return fail(log, "shopify callback", err)
	}

	sub, err := a.connections.ConsumeState(ctx, state, shop)
	if err != nil {
		return fail(log, "shopify callback", err)
	}
	grant, err := a.installer.ExchangeCode(ctx, shop, code)
	if err != nil {
		return fail(log, "shopify callback", err)
	}
	if err := a.connections.SaveConnection(ctx, sub, shop, grant.AccessToken, grant.Scope); err != nil {
		return fail(log, "shopify callback", err)
	}
	log.Info("shop connected", zap.String("shop", shop), zap.String("scope", grant.Scope))

	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"location": a.cfg.ShopifyApp.FrontendURL + "/shopify?connected=1&shop=" + url.QueryEscape(shop),
		},
	}, nil
}

// ShopifyShops lists the caller's connected shops (GET) or disconnects one (DELETE).
func (a *App) ShopifyShops(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := a.log.With(zap.String("request_id", requestID(req)))
	sub, err := userSub(req)
	if err != nil {
		return fail(log, "shopify shops", err)
	}
	if err := a.requireConnections(); err != nil {
		return fail(log, "shopify shops", err)
	}

	switch req.RequestContext.HTTP.Method {
	case http.MethodDelete:
		shop, err := shopParam(req)
		if err != nil {
			return fail(log, "shopify disconnect", err)
		}
		if err := a.connections.Disconnect(ctx, sub, shop); err != nil {
			return fail(log, "shopify disconnect", err)
		}
		return jsonResp(http.StatusOK, map[string]any{"ok": true})
	case http.MethodGet, "":
		conns, err := a.connections.Connections(ctx, sub)
		if err != nil {
			return fail(log, "shopify shops", err)
		}
		if conns == nil {
			conns = []integrations.Connection{}
		}
		return jsonResp(http.StatusOK, map[string]any{"items": conns})
	default:
		return errResp(http.StatusMethodNotAllowed, "method not allowed")
	}
}

// ShopifyIntegrations routes the /integrations/shopify/* paths served by one function.
func (a *App) ShopifyIntegrations(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch strings.TrimRight(req.RawPath, "/") {
	case "/integrations/shopify/connect":
		return a.ShopifyConnect(ctx, req)
	case "/integrations/shopify/callback":
		return a.ShopifyCallback(ctx, req)
	case "/integrations/shopify/shops":
		return a.ShopifyShops(ctx, req)
	default:
		return errResp(http.StatusNotFound, "not found")
	}
}
