// Package rapidshyp is a client for the RapidShyp carrier aggregator.
package rapidshyp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.rapidshyp.com/rapidshyp/apis/v1"

type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rapidshyp %s failed with status %d: %s", e.Op, e.Status, strings.TrimSpace(e.Body))
}

type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewClient(apiKey, baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Log:     log,
	}
}

type authStyle int

const (
	// The tracking endpoint takes its key in a custom header; the shipment endpoints use bearer auth.
	tokenHeader authStyle = iota
	bearer
)

func (c *Client) do(ctx context.Context, op, method, path string, auth authStyle, body any) (*http.Response, []byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch auth {
	case bearer:
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	default:
		req.Header.Set("rapidshyp-token", c.APIKey)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("rapidshyp %s: %w", op, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read rapidshyp %s response: %w", op, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res, raw, &APIError{Op: op, Status: res.StatusCode, Body: string(raw)}
	}
	return res, raw, nil
}
