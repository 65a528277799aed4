package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/oauth2"
)

var ErrInvalidHMAC = errors.New("invalid shopify hmac")

// App is the OAuth identity of the Shopify app a merchant installs.
type App struct {
	APIKey      string
	APISecret   string
	Scopes      string
	RedirectURI string
	// BaseURL overrides https://<shop> for the OAuth endpoints (tests).
	BaseURL string
	HTTP    *http.Client
}

// Grant is the result of a code exchange.
type Grant struct {
	AccessToken string
	Scope       string
}

// ValidShopDomain accepts only bare <name>.myshopify.com hosts.
func ValidShopDomain(shop string) bool {
	if !strings.HasSuffix(shop, ".myshopify.com") {
		return false
	}
	if strings.ContainsAny(shop, "/ ?#@:") {
		return false
	}
	return len(shop) >= len("a.myshopify.com")
}

func (a App) oauthConfig(shop string) *oauth2.Config {
	base := strings.TrimRight(a.BaseURL, "/")
	if base == "" {
		base = "https://" + shop
	}
	return &oauth2.Config{
		ClientID:     a.APIKey,
		ClientSecret: a.APISecret,
		RedirectURL:  a.RedirectURI,
		Scopes:       []string{a.Scopes},
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/admin/oauth/authorize",
			TokenURL:  base + "/admin/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizeURL is where the merchant approves the install.
func (a App) AuthorizeURL(shop, state string) string {
	return a.oauthConfig(shop).AuthCodeURL(state)
}

// VerifyCallback checks the hmac Shopify adds to every redirect: hex HMAC-SHA256 of
// the remaining query parameters sorted by key and joined as k=v&k=v.
func (a App) VerifyCallback(params map[string]string) error {
	provided := strings.ToLower(strings.TrimSpace(params["hmac"]))
	if provided == "" {
		return ErrInvalidHMAC
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}

	mac := hmac.New(sha256.New, []byte(a.APISecret))
	mac.Write([]byte(strings.Join(parts, "&")))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrInvalidHMAC
	}
	return nil
}

// ExchangeCode trades the callback code for an offline Admin API token.
func (a App) ExchangeCode(ctx context.Context, shop, code string) (Grant, error) {
	if a.HTTP != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.HTTP)
	}
	tok, err := a.oauthConfig(shop).Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return Grant{}, &APIError{Status: re.Response.StatusCode, Body: string(re.Body)}
		}
		return Grant{}, fmt.Errorf("exchange code for %s: %w", shop, err)
	}
	scope, _ := tok.Extra("scope").(string)
	return Grant{AccessToken: tok.AccessToken, Scope: scope}, nil
}
