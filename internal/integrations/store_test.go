package integrations

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"sellerdash/internal/config"
	"sellerdash/internal/security"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyB64 = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("z", 32)))

type fakeDDB struct {
	shops [][]string
	items map[string]Item
}

func (f *fakeDDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	page := 0
	if in.ExclusiveStartKey != nil {
		page = 1
	}
	out := &dynamodb.QueryOutput{}
	for _, s := range f.shops[page] {
		out.Items = append(out.Items, map[string]types.AttributeValue{"Shop": &types.AttributeValueMemberS{Value: s}})
	}
	if page+1 < len(f.shops) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "next"}}
	}
	return out, nil
}

func (f *fakeDDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	sk := in.Key["SK"].(*types.AttributeValueMemberS).Value
	item, ok := f.items[pk+"|"+sk]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: av}, nil
}

func (f *fakeDDB) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDDB) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{}, nil
}

func newStore(t *testing.T, f *fakeDDB) *Store {
	s, err := NewStore(f, config.IntegrationsConfig{
		IntegrationsTable: "integrations",
		ShopToUserTable:   "shop_to_user",
		TokenKeyB64:       keyB64,
	})
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func sealed(t *testing.T, plain string) string {
	c, err := security.NewCipherFromBase64(keyB64)
	require.NoError(t, err)
	s, err := c.Seal(plain)
	require.NoError(t, err)
	return s
}

func TestNewStoreDisabledWithoutTable(t *testing.T) {
	s, err := NewStore(&fakeDDB{}, config.IntegrationsConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewStore(&fakeDDB{}, config.IntegrationsConfig{IntegrationsTable: "x"})
	assert.True(t, errors.Is(err, config.ErrMissingConfig))
}

func TestAllowedShopsPaginatesAndDedupes(t *testing.T) {
	s := newStore(t, &fakeDDB{shops: [][]string{
		{"https://One.myshopify.com", "two.myshopify.com"},
		{"one.myshopify.com"},
	}})
	shops, err := s.AllowedShops(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"one.myshopify.com", "two.myshopify.com"}, shops)
}

func TestShopToken(t *testing.T) {
	f := &fakeDDB{
		shops: [][]string{{"one.myshopify.com"}},
		items: map[string]Item{
			"USER#user-1|SHOPIFY#one.myshopify.com": {
				PK: "USER#user-1", SK: "SHOPIFY#one.myshopify.com",
				Shop: "one.myshopify.com", AccessTokenEnc: sealed(t, "shpat_live"),
			},
		},
	}
	s := newStore(t, f)

	shop, token, err := s.ShopToken(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, "one.myshopify.com", shop)
	assert.Equal(t, "shpat_live", token)

	_, _, err = s.ShopToken(context.Background(), "user-1", "other.myshopify.com")
	assert.True(t, errors.Is(err, ErrShopNotAllowed))

	f.items = nil
	_, _, err = s.ShopToken(context.Background(), "user-1", "one.myshopify.com")
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestShopTokenNeedsShopWhenAmbiguous(t *testing.T) {
	s := newStore(t, &fakeDDB{shops: [][]string{{"a.myshopify.com", "b.myshopify.com"}}})
	_, _, err := s.ShopToken(context.Background(), "user-1", "")
	assert.True(t, errors.Is(err, ErrShopNotAllowed))
}
