// Package facebook reads ad spend from the Graph API insights edge.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxInsightPages = 500

// APIError carries the Graph API error envelope.
type APIError struct {
	Status  int
	Message string
	Type    string
	Code    int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("facebook api error %d", e.Status)
	}
	return fmt.Sprintf("facebook api error %d (code %d): %s", e.Status, e.Code, e.Message)
}

type Client struct {
	AdAccountID string
	AccessToken string
	APIVersion  string
	BaseURL     string
	HTTP        *http.Client
	Log         *zap.Logger
}

func NewClient(adAccountID, accessToken, apiVersion, baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if apiVersion == "" {
		apiVersion = "v18.0"
	}
	if baseURL == "" {
		baseURL = "https://graph.facebook.com"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		AdAccountID: strings.TrimPrefix(adAccountID, "act_"),
		AccessToken: accessToken,
		APIVersion:  apiVersion,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTP:        &http.Client{Timeout: timeout},
		Log:         log,
	}
}

type paging struct {
	Next string `json:"next"`
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Paging *paging         `json:"paging"`
	Error  *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) insightsURL(q url.Values) string {
	q.Set("access_token", c.AccessToken)
	return fmt.Sprintf("%s/%s/act_%s/insights?%s", c.BaseURL, c.APIVersion, c.AdAccountID, q.Encode())
}

// pages walks paging.next, handing each page's data array to fn.
func (c *Client) pages(ctx context.Context, first string, fn func(json.RawMessage) error) error {
	next := first
	for page := 1; next != ""; page++ {
		if page > maxInsightPages {
			return fmt.Errorf("facebook pagination did not terminate after %d pages", maxInsightPages)
		}
		env, err := c.get(ctx, next)
		if err != nil {
			return err
		}
		if len(env.Data) > 0 {
			if err := fn(env.Data); err != nil {
				return err
			}
		}
		next = ""
		if env.Paging != nil {
			next = env.Paging.Next
		}
		c.Log.Debug("fetched insights page", zap.Int("page", page), zap.Bool("more", next != ""))
	}
	return nil
}

func (c *Client) get(ctx context.Context, u string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read facebook response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if env.Error != nil {
		return nil, &APIError{Status: res.StatusCode, Message: env.Error.Message, Type: env.Error.Type, Code: env.Error.Code}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &APIError{Status: res.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode facebook response: %w", decodeErr)
	}
	return &env, nil
}
