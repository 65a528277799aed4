package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxRetries = 5
	defaultBaseDelay  = time.Second
)

// RateLimitError is returned once every attempt at an endpoint answered 429.
type RateLimitError struct {
	Endpoint string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("max retries exceeded for %s: still rate limited after %d attempts", e.Endpoint, e.Attempts)
}

type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("amazon sp-api %s failed with status %d: %s", e.Endpoint, e.Status, strings.TrimSpace(e.Body))
}

// Client makes signed SP-API calls.
type Client struct {
	Endpoint      string
	MarketplaceID string
	Tokens        TokenSource
	Signer        *Signer
	HTTP          *http.Client
	MaxRetries    int
	BaseDelay     time.Duration
	Log           *zap.Logger

	jitter func(max time.Duration) time.Duration
}

func NewClient(endpoint, marketplaceID string, tokens TokenSource, signer *Signer, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		Endpoint:      strings.TrimRight(endpoint, "/"),
		MarketplaceID: marketplaceID,
		Tokens:        tokens,
		Signer:        signer,
		HTTP:          &http.Client{Timeout: timeout},
		MaxRetries:    DefaultMaxRetries,
		BaseDelay:     defaultBaseDelay,
		Log:           log,
	}
}

// Do sends a signed request and decodes the JSON answer into out. HTTP 429 is retried
// with exponential backoff plus jitter; any other failure is returned immediately.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		payload = b
	}

	maxRetries := c.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; ; {
		status, raw, err := c.send(ctx, method, path, query, payload)
		if err != nil {
			return err
		}
		if status >= 200 && status <= 299 {
			if out == nil || len(bytes.TrimSpace(raw)) == 0 {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode %s response: %w", path, err)
			}
			return nil
		}
		if status != http.StatusTooManyRequests {
			return &APIError{Endpoint: path, Status: status, Body: string(raw)}
		}

		attempt++
		if attempt >= maxRetries {
			return &RateLimitError{Endpoint: path, Attempts: attempt}
		}
		delay := c.backoff(attempt)
		c.Log.Warn("sp-api rate limited, backing off",
			zap.String("endpoint", path), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// backoff is 2^attempt base delays plus up to one base delay of jitter.
func (c *Client) backoff(attempt int) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	jitter := c.jitter
	if jitter == nil {
		jitter = func(max time.Duration) time.Duration {
			return time.Duration(rand.Int63n(int64(max) + 1))
		}
	}
	return time.Duration(1<<attempt)*base + jitter(base)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte) (int, []byte, error) {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	u := c.Endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("x-amz-access-token", token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.Signer.Sign(ctx, req, payload); err != nil {
		return 0, nil, err
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("sp-api %s: %w", path, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read sp-api %s response: %w", path, err)
	}
	return res.StatusCode, raw, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
