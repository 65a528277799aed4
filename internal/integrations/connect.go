package integrations

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"sellerdash/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrInvalidState = errors.New("invalid or expired oauth state")

const stateTTL = 10 * time.Minute

type oauthState struct {
	State          string `dynamodbav:"State"`
	UserSub        string `dynamodbav:"UserSub"`
	Shop           string `dynamodbav:"Shop"`
	ExpiresAtEpoch int64  `dynamodbav:"ExpiresAtEpoch"`
}

type shopMapping struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Shop      string `dynamodbav:"Shop"`
	UserSub   string `dynamodbav:"UserSub"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

// Connection is a connected shop as listed to its owner.
type Connection struct {
	Shop      string `json:"shop"`
	Scope     string `json:"scope"`
	CreatedAt string `json:"createdAt"`
}

func userKey(sub string) string  { return "USER#" + sub }
func shopKey(shop string) string { return "SHOPIFY#" + shop }

// BeginConnect records a one-time state for an install started by sub and
// returns it. The state expires after ten minutes (DynamoDB TTL on ExpiresAtEpoch).
func (s *Store) BeginConnect(ctx context.Context, sub, shop string) (string, error) {
	if s.stateTable == "" {
		return "", fmt.Errorf("%w: OAUTH_STATE_TABLE", config.ErrMissingConfig)
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	st := oauthState{
		State:          base64.RawURLEncoding.EncodeToString(buf),
		UserSub:        sub,
		Shop:           shop,
		ExpiresAtEpoch: time.Now().Add(stateTTL).Unix(),
	}
	item, err := attributevalue.MarshalMap(st)
	if err != nil {
		return "", err
	}
	if _, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.stateTable),
		Item:      item,
	}); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return st.State, nil
}

// ConsumeState validates a callback state against the shop it was issued for and
// deletes it. It returns the user that started the install.
func (s *Store) ConsumeState(ctx context.Context, state, shop string) (string, error) {
	if s.stateTable == "" {
		return "", fmt.Errorf("%w: OAUTH_STATE_TABLE", config.ErrMissingConfig)
	}
	key := map[string]types.AttributeValue{"State": &types.AttributeValueMemberS{Value: state}}
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.stateTable),
		Key:       key,
	})
	if err != nil {
		return "", fmt.Errorf("get oauth state: %w", err)
	}
	if out.Item == nil {
		return "", ErrInvalidState
	}
	var st oauthState
	if err := attributevalue.UnmarshalMap(out.Item, &st); err != nil {
		return "", fmt.Errorf("unmarshal oauth state: %w", err)
	}
	// TTL deletion lags, so expiry is checked here too.
	if st.UserSub == "" || st.Shop != shop || time.Now().Unix() > st.ExpiresAtEpoch {
		return "", ErrInvalidState
	}
	if _, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.stateTable),
		Key:       key,
	}); err != nil {
		return "", fmt.Errorf("delete oauth state: %w", err)
	}
	return st.UserSub, nil
}

// SaveConnection stores the sealed token and the shop-to-user mapping that
// AllowedShops reads.
func (s *Store) SaveConnection(ctx context.Context, sub, shop, token, scope string) error {
	enc, err := s.cipher.Seal(token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	item, err := attributevalue.MarshalMap(Item{
		PK:             userKey(sub),
		SK:             shopKey(shop),
		Shop:           shop,
		AccessTokenEnc: enc,
		Scope:          scope,
		CreatedAt:      now,
	})
	if err != nil {
		return err
	}
	if _, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.integrationsTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("store integration: %w", err)
	}

	if s.shopToUserTable == "" {
		return nil
	}
	mapping, err := attributevalue.MarshalMap(shopMapping{
		PK:        "SHOP#" + shop,
		SK:        userKey(sub),
		Shop:      shop,
		UserSub:   sub,
		CreatedAt: now,
	})
	if err != nil {
		return err
	}
	if _, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.shopToUserTable),
		Item:      mapping,
	}); err != nil {
		return fmt.Errorf("store shop mapping: %w", err)
	}
	return nil
}

// Connections lists the shops a user has connected.
func (s *Store) Connections(ctx context.Context, sub string) ([]Connection, error) {
	var (
		conns    []Connection
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.integrationsTable),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :pref)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":   &types.AttributeValueMemberS{Value: userKey(sub)},
				":pref": &types.AttributeValueMemberS{Value: "SHOPIFY#"},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query integrations: %w", err)
		}
		var items []Item
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal integrations: %w", err)
		}
		for _, it := range items {
			conns = append(conns, Connection{Shop: it.Shop, Scope: it.Scope, CreatedAt: it.CreatedAt})
		}
		if len(out.LastEvaluatedKey) == 0 {
			return conns, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Disconnect removes the stored token and the mapping.
func (s *Store) Disconnect(ctx context.Context, sub, shop string) error {
	shop = config.NormalizeShopDomain(shop)
	if strings.TrimSpace(shop) == "" {
		return errors.New("empty shop")
	}
	if _, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.integrationsTable),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userKey(sub)},
			"SK": &types.AttributeValueMemberS{Value: shopKey(shop)},
		},
	}); err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	if s.shopToUserTable == "" {
		return nil
	}
	if _, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.shopToUserTable),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "SHOP#" + shop},
			"SK": &types.AttributeValueMemberS{Value: userKey(sub)},
		},
	}); err != nil {
		return fmt.Errorf("delete shop mapping: %w", err)
	}
	return nil
}
