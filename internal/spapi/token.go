// Package spapi is a client for the Amazon Selling Partner API.
package spapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTokenURL = "https://api.amazon.com/auth/o2/token"

	// LWA tokens live an hour; treat them as stale ten minutes early.
	defaultExpirySkew = 10 * time.Minute
	fallbackLifetime  = 50 * time.Minute
)

// TokenSource hands out access tokens for signed calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenProvider exchanges a Login-with-Amazon refresh token for access tokens and
// memoizes the result. Concurrent callers that find the cache stale share a single
// refresh.
type TokenProvider struct {
	oauth        oauth2.Config
	refreshToken string
	httpClient   *http.Client
	skew         time.Duration
	now          func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time

	group singleflight.Group
}

func NewTokenProvider(clientID, clientSecret, refreshToken, tokenURL string, httpClient *http.Client) *TokenProvider {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &TokenProvider{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refreshToken: refreshToken,
		httpClient:   httpClient,
		skew:         defaultExpirySkew,
		now:          time.Now,
	}
}

func (p *TokenProvider) cached() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" || !p.now().Before(p.expiry) {
		return "", false
	}
	return p.token, true
}

// Token returns a cached access token, refreshing it when expired.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if tok, ok := p.cached(); ok {
		return tok, nil
	}

	v, err, _ := p.group.Do("lwa", func() (any, error) {
		if tok, ok := p.cached(); ok {
			return tok, nil
		}
		// Detached so one caller's cancellation does not fail everyone waiting on it.
		tok, err := p.refresh(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}

		expiry := p.now().Add(fallbackLifetime)
		if !tok.Expiry.IsZero() {
			expiry = tok.Expiry.Add(-p.skew)
		}
		p.mu.Lock()
		p.token, p.expiry = tok.AccessToken, expiry
		p.mu.Unlock()
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", fmt.Errorf("lwa token refresh: %w", err)
	}
	return v.(string), nil
}

func (p *TokenProvider) refresh(ctx context.Context) (*oauth2.Token, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	return p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken}).Token()
}

// Invalidate drops the cached token so the next call refreshes.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token, p.expiry = "", time.Time{}
	p.mu.Unlock()
}
