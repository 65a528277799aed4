package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	values map[string]string
	calls  []string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(in.Name)
	f.calls = append(f.calls, name)
	v, ok := f.values[name]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(v)}}, nil
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHOPIFY_SHOP_URL", "https://Demo-Store.myshopify.com/")
	t.Setenv("FACEBOOK_AD_ACCOUNT_ID", "act_12345")

	cfg, err := Load(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "demo-store.myshopify.com", cfg.Shopify.ShopDomain)
	assert.Equal(t, "2024-07", cfg.Shopify.APIVersion)
	assert.Equal(t, "12345", cfg.Facebook.AdAccountID)
	assert.Equal(t, "v18.0", cfg.Facebook.APIVersion)
	assert.Equal(t, "Asia/Kolkata", cfg.Report.Timezone)
	assert.Equal(t, 25, cfg.Report.TrackingConcurrency)
	assert.Equal(t, 5, cfg.Amazon.MaxRetries)
	assert.False(t, cfg.TrackingEnabled())
	assert.False(t, cfg.AmazonEnabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.NotNil(t, loc)
}

func TestRequireReportsMissingKeys(t *testing.T) {
	t.Setenv("SHOPIFY_SHOP_URL", "demo.myshopify.com")

	cfg, err := Load(context.Background(), nil)
	require.NoError(t, err)

	err = cfg.RequireShopify()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))
	assert.Contains(t, err.Error(), "SHOPIFY_TOKEN")
	assert.NotContains(t, err.Error(), "SHOPIFY_SHOP_URL")

	err = cfg.RequireFacebook()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FACEBOOK_ACCESS_TOKEN, FACEBOOK_AD_ACCOUNT_ID")
}

func TestRequireShopifyAppListsEveryMissingKey(t *testing.T) {
	t.Setenv("SHOPIFY_API_KEY", "key")

	cfg, err := Load(context.Background(), nil)
	require.NoError(t, err)

	err = cfg.RequireShopifyApp()
	require.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "OAUTH_STATE_TABLE, SHOPIFY_API_SECRET, SHOPIFY_REDIRECT_BASE")
	assert.NotContains(t, err.Error(), "SHOPIFY_API_KEY")

	cfg.ShopifyApp.APISecret = "secret"
	cfg.ShopifyApp.RedirectBase = "https://api.example.com"
	cfg.Integrations.OAuthStateTable = "oauth-state"
	assert.NoError(t, cfg.RequireShopifyApp())
}

func TestLoadResolvesSSMReferences(t *testing.T) {
	t.Setenv("SHOPIFY_TOKEN", "ssm:/sellerdash/shopify-token")
	t.Setenv("RAPIDSHYP_API_KEY", "plain-key")

	f := &fakeSSM{values: map[string]string{"/sellerdash/shopify-token": "shpat_secret"}}
	cfg, err := Load(context.Background(), NewSSMResolver(f))
	require.NoError(t, err)

	assert.Equal(t, "shpat_secret", cfg.Shopify.Token)
	assert.Equal(t, "plain-key", cfg.RapidShyp.APIKey)
	assert.True(t, cfg.TrackingEnabled())
	assert.Equal(t, []string{"/sellerdash/shopify-token"}, f.calls)
}

func TestLoadFailsOnUnresolvableSecret(t *testing.T) {
	t.Setenv("FACEBOOK_ACCESS_TOKEN", "ssm:/missing")

	_, err := Load(context.Background(), NewSSMResolver(&fakeSSM{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FACEBOOK_ACCESS_TOKEN")

	_, err = Load(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("REPORT_TIMEZONE", "Mars/Olympus")
	_, err := Load(context.Background(), nil)
	assert.Error(t, err)
}
