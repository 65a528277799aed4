// Package integrations resolves per-user storefront credentials kept in DynamoDB.
package integrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sellerdash/internal/config"
	"sellerdash/internal/security"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotConnected   = errors.New("shop not connected")
	ErrShopNotAllowed = errors.New("shop not allowed for user")
)

type DDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Item is one connected shop. PK = USER#<sub>, SK = SHOPIFY#<shop>.
type Item struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	Shop           string `dynamodbav:"Shop"`
	AccessTokenEnc string `dynamodbav:"AccessTokenEnc"`
	Scope          string `dynamodbav:"Scope"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	LastSyncAt     string `dynamodbav:"LastSyncAt,omitempty"`
}

type Store struct {
	ddb               DDBClient
	cipher            *security.Cipher
	integrationsTable string
	shopToUserTable   string
	shopToUserIndex   string
	stateTable        string
}

// NewStore returns nil, nil when no integrations table is configured.
func NewStore(ddb DDBClient, cfg config.IntegrationsConfig) (*Store, error) {
	if strings.TrimSpace(cfg.IntegrationsTable) == "" {
		return nil, nil
	}
	if strings.TrimSpace(cfg.TokenKeyB64) == "" {
		return nil, fmt.Errorf("%w: TOKEN_ENC_KEY_B64", config.ErrMissingConfig)
	}
	c, err := security.NewCipherFromBase64(cfg.TokenKeyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_ENC_KEY_B64: %w", err)
	}
	idx := cfg.ShopToUserIndex
	if idx == "" {
		idx = "GSI_UserSub"
	}
	return &Store{
		ddb:               ddb,
		cipher:            c,
		integrationsTable: cfg.IntegrationsTable,
		shopToUserTable:   cfg.ShopToUserTable,
		shopToUserIndex:   idx,
		stateTable:        cfg.OAuthStateTable,
	}, nil
}

// AllowedShops lists the shop domains mapped to a user.
func (s *Store) AllowedShops(ctx context.Context, sub string) ([]string, error) {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return nil, errors.New("empty user sub")
	}
	if s.shopToUserTable == "" {
		return nil, fmt.Errorf("%w: SHOP_TO_USER_TABLE", config.ErrMissingConfig)
	}

	var shops []string
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.shopToUserTable),
			IndexName:              aws.String(s.shopToUserIndex),
			KeyConditionExpression: aws.String("#u = :u"),
			ExpressionAttributeNames: map[string]string{
				"#u": "UserSub",
				"#s": "Shop",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": &types.AttributeValueMemberS{Value: sub},
			},
			ProjectionExpression: aws.String("#s"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", s.shopToUserIndex, err)
		}
		for _, it := range out.Items {
			if v, ok := it["Shop"].(*types.AttributeValueMemberS); ok {
				if shop := config.NormalizeShopDomain(v.Value); shop != "" {
					shops = append(shops, shop)
				}
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return unique(shops), nil
}

// ShopToken returns the decrypted Admin API token for a user's shop. When shop is
// empty and the user has exactly one shop, that shop is used.
func (s *Store) ShopToken(ctx context.Context, sub, shop string) (string, string, error) {
	allowed, err := s.AllowedShops(ctx, sub)
	if err != nil {
		return "", "", err
	}
	shop = config.NormalizeShopDomain(shop)
	switch {
	case shop == "" && len(allowed) == 1:
		shop = allowed[0]
	case shop == "":
		return "", "", fmt.Errorf("%w: specify one of %d shops", ErrShopNotAllowed, len(allowed))
	case !contains(allowed, shop):
		return "", "", fmt.Errorf("%w: %s", ErrShopNotAllowed, shop)
	}

	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.integrationsTable),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userKey(sub)},
			"SK": &types.AttributeValueMemberS{Value: shopKey(shop)},
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("get integration: %w", err)
	}
	if out.Item == nil {
		return "", "", fmt.Errorf("%w: %s", ErrNotConnected, shop)
	}

	var item Item
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", "", fmt.Errorf("unmarshal integration: %w", err)
	}
	if strings.TrimSpace(item.AccessTokenEnc) == "" {
		return "", "", fmt.Errorf("%w: %s has no stored token", ErrNotConnected, shop)
	}
	token, err := s.cipher.Open(item.AccessTokenEnc)
	if err != nil {
		return "", "", fmt.Errorf("decrypt token for %s: %w", shop, err)
	}
	return shop, token, nil
}

// Tenant is a connected shop and the user whose token reads it.
type Tenant struct {
	Shop    string
	UserSub string
}

// Tenants scans the shop-to-user table. A shop connected by several users is
// listed once, under the first user seen.
func (s *Store) Tenants(ctx context.Context) ([]Tenant, error) {
	if s.shopToUserTable == "" {
		return nil, fmt.Errorf("%w: SHOP_TO_USER_TABLE", config.ErrMissingConfig)
	}
	seen := map[string]bool{}
	var (
		out      []Tenant
		startKey map[string]types.AttributeValue
	)
	for {
		page, err := s.ddb.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(s.shopToUserTable),
			ExclusiveStartKey:    startKey,
			ProjectionExpression: aws.String("#s, #u"),
			ExpressionAttributeNames: map[string]string{
				"#s": "Shop",
				"#u": "UserSub",
			},
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.shopToUserTable, err)
		}
		var rows []shopMapping
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &rows); err != nil {
			return nil, fmt.Errorf("unmarshal shop mappings: %w", err)
		}
		for _, r := range rows {
			shop := config.NormalizeShopDomain(r.Shop)
			if shop == "" || r.UserSub == "" || seen[shop] {
				continue
			}
			seen[shop] = true
			out = append(out, Tenant{Shop: shop, UserSub: r.UserSub})
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		startKey = page.LastEvaluatedKey
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func unique(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
