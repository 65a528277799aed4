// Package config reads function configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingConfig marks a required credential or setting that is absent.
var ErrMissingConfig = errors.New("missing configuration")

type ShopifyConfig struct {
	ShopDomain string
	Token      string
	APIVersion string
	BaseURL    string
}

// ShopifyAppConfig is the public app merchants install to connect their shop.
type ShopifyAppConfig struct {
	APIKey       string
	APISecret    string
	Scopes       string
	RedirectBase string
	FrontendURL  string
}

type FacebookConfig struct {
	AdAccountID string
	AccessToken string
	APIVersion  string
	BaseURL     string
}

type RapidShypConfig struct {
	APIKey  string
	BaseURL string
}

type AmazonConfig struct {
	Endpoint        string
	Region          string
	MarketplaceID   string
	LWAClientID     string
	LWAClientSecret string
	LWARefreshToken string
	LWATokenURL     string
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
}

type ReportConfig struct {
	Timezone            string
	TrackingConcurrency int
	HTTPTimeout         time.Duration
	MaxRangeDays        int
}

type IntegrationsConfig struct {
	IntegrationsTable string
	ShopToUserTable   string
	ShopToUserIndex   string
	OAuthStateTable   string
	TokenKeyB64       string
}

type ExportConfig struct {
	Bucket            string
	Prefix            string
	DaysBack          int
	GlueDatabase      string
	Table             string
	AthenaWorkgroup   string
	AthenaOutput      string
	AlertsTopicARN    string
	AlertsEmail       string
	RTOAlertThreshold float64
}

type LogConfig struct {
	Level  string
	Format string
}

type Config struct {
	Env          string
	Shopify      ShopifyConfig
	ShopifyApp   ShopifyAppConfig
	Facebook     FacebookConfig
	RapidShyp    RapidShypConfig
	Amazon       AmazonConfig
	Report       ReportConfig
	Integrations IntegrationsConfig
	Export       ExportConfig
	Log          LogConfig
}

// LoadDotEnv loads a local .env file outside production. A missing file is fine.
func LoadDotEnv() {
	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		return
	}
	_ = godotenv.Load()
}

// Load reads the environment. Values of the form "ssm:<name>" are resolved through
// secrets; a nil resolver leaves such values unresolved and fails.
func Load(ctx context.Context, secrets SecretResolver) (*Config, error) {
	r := reader{ctx: ctx, secrets: secrets}

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Shopify: ShopifyConfig{
			ShopDomain: NormalizeShopDomain(getEnv("SHOPIFY_SHOP_URL", "")),
			Token:      r.secret("SHOPIFY_TOKEN"),
			APIVersion: getEnv("SHOPIFY_API_VERSION", "2024-07"),
			BaseURL:    getEnv("SHOPIFY_BASE_URL", ""),
		},
		ShopifyApp: ShopifyAppConfig{
			APIKey:       getEnv("SHOPIFY_API_KEY", ""),
			APISecret:    r.secret("SHOPIFY_API_SECRET"),
			Scopes:       getEnv("SHOPIFY_SCOPES", "read_orders,read_customers,read_fulfillments"),
			RedirectBase: strings.TrimRight(getEnv("SHOPIFY_REDIRECT_BASE", ""), "/"),
			FrontendURL:  strings.TrimRight(getEnv("FRONTEND_BASE_URL", ""), "/"),
		},
		Facebook: FacebookConfig{
			AdAccountID: strings.TrimPrefix(getEnv("FACEBOOK_AD_ACCOUNT_ID", ""), "act_"),
			AccessToken: r.secret("FACEBOOK_ACCESS_TOKEN"),
			APIVersion:  getEnv("FACEBOOK_API_VERSION", "v18.0"),
			BaseURL:     getEnv("FACEBOOK_BASE_URL", "https://graph.facebook.com"),
		},
		RapidShyp: RapidShypConfig{
			APIKey:  r.secret("RAPIDSHYP_API_KEY"),
			BaseURL: getEnv("RAPIDSHYP_BASE_URL", "https://api.rapidshyp.com/rapidshyp/apis/v1"),
		},
		Amazon: AmazonConfig{
			Endpoint:        getEnv("AMAZON_SP_API_ENDPOINT", "https://sellingpartnerapi-eu.amazon.com"),
			Region:          getEnv("AMAZON_REGION", "eu-west-1"),
			MarketplaceID:   getEnv("AMAZON_MARKETPLACE_ID", "A21TJRUUN4KGV"),
			LWAClientID:     getEnv("LWA_CLIENT_ID", ""),
			LWAClientSecret: r.secret("LWA_CLIENT_SECRET"),
			LWARefreshToken: r.secret("LWA_REFRESH_TOKEN"),
			LWATokenURL:     getEnv("LWA_TOKEN_URL", "https://api.amazon.com/auth/o2/token"),
			AccessKeyID:     getEnv("AMAZON_AWS_ACCESS_KEY", ""),
			SecretAccessKey: r.secret("AMAZON_AWS_SECRET_KEY"),
			MaxRetries:      getEnvInt("AMAZON_MAX_RETRIES", 5),
		},
		Report: ReportConfig{
			Timezone:            getEnv("REPORT_TIMEZONE", "Asia/Kolkata"),
			TrackingConcurrency: getEnvInt("TRACKING_CONCURRENCY", 25),
			HTTPTimeout:         time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
			MaxRangeDays:        getEnvInt("MAX_RANGE_DAYS", 366),
		},
		Integrations: IntegrationsConfig{
			IntegrationsTable: getEnv("INTEGRATIONS_TABLE", ""),
			ShopToUserTable:   getEnv("SHOP_TO_USER_TABLE", ""),
			ShopToUserIndex:   getEnv("SHOP_TO_USER_GSI_USERSUB", "GSI_UserSub"),
			OAuthStateTable:   getEnv("OAUTH_STATE_TABLE", ""),
			TokenKeyB64:       r.secret("TOKEN_ENC_KEY_B64"),
		},
		Export: ExportConfig{
			Bucket:            getEnv("ANALYTICS_BUCKET", ""),
			Prefix:            strings.Trim(getEnv("DAILY_PERFORMANCE_PREFIX", "daily_performance"), "/"),
			DaysBack:          getEnvInt("EXPORT_DAYS_BACK", 1),
			GlueDatabase:      getEnv("GLUE_DATABASE", ""),
			Table:             getEnv("DAILY_PERFORMANCE_TABLE", "daily_performance"),
			AthenaWorkgroup:   getEnv("ATHENA_WORKGROUP", "primary"),
			AthenaOutput:      getEnv("ATHENA_OUTPUT_S3", ""),
			AlertsTopicARN:    getEnv("ALERTS_TOPIC_ARN", ""),
			AlertsEmail:       getEnv("ALERTS_EMAIL", ""),
			RTOAlertThreshold: getEnvFloat("RTO_ALERT_THRESHOLD_PCT", 25),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if r.err != nil {
		return nil, r.err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the reporting timezone. Asia/Kolkata falls back to a fixed
// +05:30 zone when the runtime ships without zoneinfo.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err == nil {
		return loc, nil
	}
	if c.Report.Timezone == "Asia/Kolkata" {
		return time.FixedZone("IST", 5*3600+30*60), nil
	}
	return nil, fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", c.Report.Timezone, err)
}

func (c *Config) RequireShopify() error {
	return requireSet(map[string]string{
		"SHOPIFY_SHOP_URL": c.Shopify.ShopDomain,
		"SHOPIFY_TOKEN":    c.Shopify.Token,
	})
}

func (c *Config) RequireShopifyApp() error {
	return requireSet(map[string]string{
		"SHOPIFY_API_KEY":       c.ShopifyApp.APIKey,
		"SHOPIFY_API_SECRET":    c.ShopifyApp.APISecret,
		"SHOPIFY_REDIRECT_BASE": c.ShopifyApp.RedirectBase,
		"OAUTH_STATE_TABLE":     c.Integrations.OAuthStateTable,
	})
}

func (c *Config) RequireIntegrations() error {
	return requireSet(map[string]string{
		"INTEGRATIONS_TABLE": c.Integrations.IntegrationsTable,
		"TOKEN_ENC_KEY_B64":  c.Integrations.TokenKeyB64,
	})
}

func (c *Config) RequireFacebook() error {
	return requireSet(map[string]string{
		"FACEBOOK_AD_ACCOUNT_ID": c.Facebook.AdAccountID,
		"FACEBOOK_ACCESS_TOKEN":  c.Facebook.AccessToken,
	})
}

func (c *Config) RequireRapidShyp() error {
	return requireSet(map[string]string{"RAPIDSHYP_API_KEY": c.RapidShyp.APIKey})
}

func (c *Config) RequireAmazon() error {
	return requireSet(map[string]string{
		"LWA_CLIENT_ID":         c.Amazon.LWAClientID,
		"LWA_CLIENT_SECRET":     c.Amazon.LWAClientSecret,
		"LWA_REFRESH_TOKEN":     c.Amazon.LWARefreshToken,
		"AMAZON_AWS_ACCESS_KEY": c.Amazon.AccessKeyID,
		"AMAZON_AWS_SECRET_KEY": c.Amazon.SecretAccessKey,
	})
}

func (c *Config) TrackingEnabled() bool { return c.RapidShyp.APIKey != "" }

func (c *Config) AmazonEnabled() bool { return c.RequireAmazon() == nil }

// NormalizeShopDomain strips scheme and trailing slashes from a shop URL.
func NormalizeShopDomain(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	return strings.TrimRight(s, "/")
}

func requireSet(vals map[string]string) error {
	var missing []string
	for k, v := range vals {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
