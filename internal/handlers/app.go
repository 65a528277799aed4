package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sellerdash/internal/config"
	"sellerdash/internal/domain"
	"sellerdash/internal/etl"
	"sellerdash/internal/facebook"
	"sellerdash/internal/integrations"
	"sellerdash/internal/pipeline"
	"sellerdash/internal/rapidshyp"
	"sellerdash/internal/shopify"
	"sellerdash/internal/spapi"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

type Storefront interface {
	pipeline.OrderSource
	GetOrder(ctx context.Context, id string) (domain.Order, error)
}

type Carrier interface {
	pipeline.TrackingSource
	Label(ctx context.Context, orderName string) (*rapidshyp.Label, error)
	CreateShipment(ctx context.Context, req rapidshyp.ShipmentRequest) (map[string]any, error)
	CancelShipment(ctx context.Context, orderID string) error
}

type Marketplace interface {
	GetBuyerInfo(ctx context.Context, orderID string) (*spapi.BuyerInfo, error)
	ListOrders(ctx context.Context, createdAfter time.Time) ([]domain.Order, error)
}

type CredentialStore interface {
	ShopToken(ctx context.Context, sub, shop string) (string, string, error)
}

type TenantLister interface {
	Tenants(ctx context.Context) ([]integrations.Tenant, error)
}

// App holds the configured upstream clients shared by every handler. Optional
// upstreams are nil when not configured.
type App struct {
	cfg *config.Config
	log *zap.Logger
	loc *time.Location

	ads         pipeline.AdSource
	carrier     Carrier
	marketplace Marketplace
	credentials CredentialStore
	connections ConnectionStore
	tenants     TenantLister
	installer   shopify.App
	storefront  func(shop, token string) Storefront
}

// NewApp builds clients from configuration. Missing credentials are not an error
// here; each handler checks what it needs before calling out.
func NewApp(ctx context.Context, awsCfg aws.Config, cfg *config.Config, log *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	timeout := cfg.Report.HTTPTimeout

	app := &App{
		cfg: cfg,
		log: log,
		loc: loc,
		installer: shopify.App{
			APIKey:      cfg.ShopifyApp.APIKey,
			APISecret:   cfg.ShopifyApp.APISecret,
			Scopes:      cfg.ShopifyApp.Scopes,
			RedirectURI: cfg.ShopifyApp.RedirectBase + "/integrations/shopify/callback",
			HTTP:        &http.Client{Timeout: timeout},
		},
		storefront: func(shop, token string) Storefront {
			c := shopify.NewClient(shop, token, cfg.Shopify.APIVersion, timeout, log.Named("shopify"))
			c.BaseURL = cfg.Shopify.BaseURL
			return c
		},
	}

	if cfg.RequireFacebook() == nil {
		app.ads = facebook.NewClient(cfg.Facebook.AdAccountID, cfg.Facebook.AccessToken,
			cfg.Facebook.APIVersion, cfg.Facebook.BaseURL, timeout, log.Named("facebook"))
	}
	if cfg.TrackingEnabled() {
		app.carrier = rapidshyp.NewClient(cfg.RapidShyp.APIKey, cfg.RapidShyp.BaseURL, timeout, log.Named("rapidshyp"))
	}
	if cfg.AmazonEnabled() {
		a := cfg.Amazon
		tokens := spapi.NewTokenProvider(a.LWAClientID, a.LWAClientSecret, a.LWARefreshToken, a.LWATokenURL, nil)
		signer := spapi.NewSigner(spapi.ServiceExecuteAPI, a.Region,
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, ""))
		client := spapi.NewClient(a.Endpoint, a.MarketplaceID, tokens, signer, timeout, log.Named("spapi"))
		client.MaxRetries = a.MaxRetries
		app.marketplace = client
	}
	store, err := integrations.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.Integrations)
	if err != nil {
		return nil, err
	}
	if store != nil {
		app.credentials = store
		app.connections = store
		app.tenants = store
	}
	return app, nil
}

// storefrontFor picks the caller's shop: the deployment's own credentials when set,
// otherwise the caller's connected shop from the integrations table.
func (a *App) storefrontFor(ctx context.Context, req events.APIGatewayV2HTTPRequest) (Storefront, error) {
	if a.cfg.RequireShopify() == nil {
		return a.storefront(a.cfg.Shopify.ShopDomain, a.cfg.Shopify.Token), nil
	}
	if a.credentials == nil {
		return nil, a.cfg.RequireShopify()
	}
	sub, err := userSub(req)
	if err != nil {
		return nil, err
	}
	shop, token, err := a.credentials.ShopToken(ctx, sub, req.QueryStringParameters["shop"])
	if err != nil {
		return nil, err
	}
	return a.storefront(shop, token), nil
}

func (a *App) requireAds() error {
	if a.ads == nil {
		if err := a.cfg.RequireFacebook(); err != nil {
			return err
		}
		return fmt.Errorf("%w: ad source", config.ErrMissingConfig)
	}
	return nil
}

func (a *App) requireCarrier() error {
	if a.carrier == nil {
		return fmt.Errorf("%w: RAPIDSHYP_API_KEY", config.ErrMissingConfig)
	}
	return nil
}

func (a *App) requireMarketplace() error {
	if a.marketplace == nil {
		if err := a.cfg.RequireAmazon(); err != nil {
			return err
		}
		return fmt.Errorf("%w: amazon sp-api", config.ErrMissingConfig)
	}
	return nil
}

// pipelineFor assembles a pipeline over the given storefront. The carrier is only
// wired when configured so a nil client never hides behind a non-nil interface.
func (a *App) pipelineFor(sf Storefront) *pipeline.Pipeline {
	var tracking pipeline.TrackingSource
	if a.carrier != nil {
		tracking = a.carrier
	}
	return pipeline.New(sf, a.ads, tracking, a.cfg.Report.TrackingConcurrency, a.log.Named("pipeline"))
}

// dateRange reads since/until (or startDate/endDate) with a trailing-week default.
func (a *App) dateRange(since, until string, defaultDays int) (domain.DateRange, error) {
	since, until = strings.TrimSpace(since), strings.TrimSpace(until)
	if since == "" && until == "" {
		now := time.Now().In(a.loc)
		until = now.Format(domain.DayLayout)
		since = now.AddDate(0, 0, -(defaultDays - 1)).Format(domain.DayLayout)
	}
	if since == "" {
		since = until
	}
	if until == "" {
		until = since
	}
	r, err := domain.NewDateRange(since, until, a.loc, a.cfg.Report.MaxRangeDays)
	if err != nil {
		return domain.DateRange{}, badRequest("%v", err)
	}
	return r, nil
}

// ExportTargets lists the shops the scheduled export covers: the deployment's own
// shop when configured, otherwise every connected shop. Shops whose token cannot
// be read are logged and skipped.
func (a *App) ExportTargets(ctx context.Context) ([]etl.Target, error) {
	if err := a.requireAds(); err != nil {
		return nil, err
	}
	if a.cfg.RequireShopify() == nil {
		sf := a.storefront(a.cfg.Shopify.ShopDomain, a.cfg.Shopify.Token)
		return []etl.Target{{Shop: a.cfg.Shopify.ShopDomain, Runner: a.pipelineFor(sf)}}, nil
	}
	if a.tenants == nil || a.credentials == nil {
		return nil, a.cfg.RequireShopify()
	}
	tenants, err := a.tenants.Tenants(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]etl.Target, 0, len(tenants))
	for _, t := range tenants {
		shop, token, err := a.credentials.ShopToken(ctx, t.UserSub, t.Shop)
		if err != nil {
			a.log.Warn("skipping shop without usable token", zap.String("shop", t.Shop), zap.Error(err))
			continue
		}
		targets = append(targets, etl.Target{Shop: shop, Runner: a.pipelineFor(a.storefront(shop, token))})
	}
	return targets, nil
}
