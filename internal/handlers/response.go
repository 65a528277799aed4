package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"sellerdash/internal/config"
	"sellerdash/internal/facebook"
	"sellerdash/internal/integrations"
	"sellerdash/internal/rapidshyp"
	"sellerdash/internal/shopify"
	"sellerdash/internal/spapi"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requestError is a problem with the caller's input.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

var errUnauthorized = errors.New("unauthorized")

func userSub(req events.APIGatewayV2HTTPRequest) (string, error) {
	// HTTP API JWT authorizer claims live in req.RequestContext.Authorizer.JWT.Claims.
	if req.RequestContext.Authorizer == nil || req.RequestContext.Authorizer.JWT == nil {
		return "", errUnauthorized
	}
	sub := strings.TrimSpace(req.RequestContext.Authorizer.JWT.Claims["sub"])
	if sub == "" {
		return "", errUnauthorized
	}
	return sub, nil
}

func requestID(req events.APIGatewayV2HTTPRequest) string {
	if id := strings.TrimSpace(req.RequestContext.RequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

func jsonResp(status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return errResp(http.StatusInternalServerError, "failed to encode response")
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":                "application/json",
			"access-control-allow-origin": "*",
		},
		Body: string(b),
	}, nil
}

func errResp(status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResp(status, map[string]any{
		"error": msg,
	})
}

// statusFor maps an error onto the HTTP status reported to the caller.
func statusFor(err error) int {
	var (
		reqErr  *requestError
		shopErr *shopify.APIError
		fbErr   *facebook.APIError
		rsErr   *rapidshyp.APIError
		amzErr  *spapi.APIError
		rlErr   *spapi.RateLimitError
	)
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, integrations.ErrInvalidState),
		errors.Is(err, shopify.ErrInvalidHMAC):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, integrations.ErrShopNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, integrations.ErrNotConnected):
		return http.StatusNotFound
	case errors.Is(err, config.ErrMissingConfig):
		return http.StatusInternalServerError
	case errors.As(err, &rlErr):
		return http.StatusTooManyRequests
	case errors.As(err, &shopErr), errors.As(err, &fbErr), errors.As(err, &rsErr), errors.As(err, &amzErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and renders it. Configuration errors are reported as such so the
// operator knows which setting is missing.
func fail(log *zap.Logger, op string, err error) (events.APIGatewayV2HTTPResponse, error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, config.ErrMissingConfig):
		msg = "configuration error: " + msg
	case status == http.StatusInternalServerError:
		msg = "internal error"
	}
	if status >= 500 {
		log.Error(op+" failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	return errResp(status, msg)
}

func decodeBody(req events.APIGatewayV2HTTPRequest, v any) error {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil
	}
	if req.IsBase64Encoded {
		return badRequest("base64 request bodies are not supported")
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return badRequest("invalid json body: %v", err)
	}
	return nil
}
