package shopify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// APIError is a non-2xx answer from the Admin API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify api error %d: %s", e.Status, truncate(e.Body, 300))
}

// Client talks to the Shopify Admin REST API of one shop.
type Client struct {
	ShopDomain string
	Token      string
	APIVersion string
	// BaseURL overrides https://<shop> (tests, proxies).
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewClient(shopDomain, token, apiVersion string, timeout time.Duration, log *zap.Logger) *Client {
	if apiVersion == "" {
		apiVersion = "2024-07"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		ShopDomain: shopDomain,
		Token:      token,
		APIVersion: apiVersion,
		HTTP:       &http.Client{Timeout: timeout},
		Log:        log,
	}
}

func (c *Client) endpoint(path string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = "https://" + c.ShopDomain
	}
	return fmt.Sprintf("%s/admin/api/%s/%s", base, c.APIVersion, strings.TrimLeft(path, "/"))
}

// get performs an authenticated GET and returns the body and the next-page URL.
func (c *Client) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("X-Shopify-Access-Token", c.Token)
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("shopify request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read shopify response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, "", &APIError{Status: res.StatusCode, Body: string(raw)}
	}
	return raw, NextPageURL(res.Header.Get("Link")), nil
}

// NextPageURL extracts the rel="next" target from a Link header.
func NextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, s := range segs[1:] {
			s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
			if s == `rel="next"` || s == "rel=next" {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
