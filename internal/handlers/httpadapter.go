package handlers

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// LambdaFunc is the signature every API Gateway handler in this package shares.
type LambdaFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

const maxBody = 1 << 20

// Adapt serves a Lambda handler over net/http. devSub stands in for the JWT
// subject the API Gateway authorizer would normally supply.
func Adapt(h LambdaFunc, devSub string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		q := map[string]string{}
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				q[k] = v[0]
			}
		}
		headers := map[string]string{}
		for k := range r.Header {
			headers[strings.ToLower(k)] = r.Header.Get(k)
		}

		req := events.APIGatewayV2HTTPRequest{
			RawPath:               r.URL.Path,
			RawQueryString:        r.URL.RawQuery,
			Headers:               headers,
			QueryStringParameters: q,
			Body:                  string(body),
		}
		req.RequestContext.RequestID = middleware.GetReqID(r.Context())
		req.RequestContext.HTTP.Method = r.Method
		req.RequestContext.HTTP.Path = r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && len(rctx.URLParams.Keys) > 0 {
			req.PathParameters = map[string]string{}
			for i, k := range rctx.URLParams.Keys {
				req.PathParameters[k] = rctx.URLParams.Values[i]
			}
		}
		if devSub != "" {
			req.RequestContext.Authorizer = &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
				JWT: &events.APIGatewayV2HTTPRequestContextAuthorizerJWTDescription{
					Claims: map[string]string{"sub": devSub},
				},
			}
		}

		resp, err := h(r.Context(), req)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.IsBase64Encoded {
			raw, err := base64.StdEncoding.DecodeString(resp.Body)
			if err == nil {
				_, _ = w.Write(raw)
				return
			}
		}
		_, _ = io.WriteString(w, resp.Body)
	}
}

// Router mounts every handler for local development.
func (a *App) Router(devSub string, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", Adapt(a.Health, devSub))
	r.Route("/api", func(r chi.Router) {
		r.Get("/performance", Adapt(a.Performance, devSub))
		r.Post("/performance", Adapt(a.Performance, devSub))
		r.Get("/performance/daily", Adapt(a.DailyPerformance, devSub))
		r.Get("/orders", Adapt(a.Orders, devSub))
		r.Get("/orders/label", Adapt(a.Label, devSub))
		r.Post("/orders/status", Adapt(a.UpdateStatus, devSub))
		r.Get("/amazon/buyer-info", Adapt(a.BuyerInfo, devSub))
	})
	r.Route("/integrations/shopify", func(r chi.Router) {
		r.Get("/connect", Adapt(a.ShopifyConnect, devSub))
		r.Get("/callback", Adapt(a.ShopifyCallback, ""))
		r.Get("/shops", Adapt(a.ShopifyShops, devSub))
		r.Delete("/shops", Adapt(a.ShopifyShops, devSub))
	})
	return r
}
