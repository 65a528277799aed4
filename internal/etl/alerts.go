package etl

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"sellerdash/internal/pipeline"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSAPI interface {
	CreateTopic(ctx context.Context, params *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Alerter publishes RTO alerts. With a fixed topic every shop shares it; otherwise
// each shop gets its own topic with an email subscription (confirmed once by the
// recipient).
type Alerter struct {
	SNS       SNSAPI
	TopicARN  string
	Email     string
	Threshold float64
}

// NewAlerter returns nil when there is nowhere to send alerts.
func NewAlerter(c SNSAPI, topicARN, email string, threshold float64) *Alerter {
	if c == nil || (topicARN == "" && email == "") || threshold <= 0 {
		return nil
	}
	return &Alerter{SNS: c, TopicARN: topicARN, Email: email, Threshold: threshold}
}

func shortHash(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}

func (a *Alerter) topic(ctx context.Context, shop string) (string, error) {
	if a.TopicARN != "" {
		return a.TopicARN, nil
	}
	// CreateTopic and Subscribe are idempotent for the same name and endpoint.
	ct, err := a.SNS.CreateTopic(ctx, &sns.CreateTopicInput{
		Name: aws.String("sellerdash-rto-alerts-" + shortHash(shop)),
	})
	if err != nil {
		return "", fmt.Errorf("create alerts topic: %w", err)
	}
	arn := aws.ToString(ct.TopicArn)
	if _, err := a.SNS.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(arn),
		Protocol: aws.String("email"),
		Endpoint: aws.String(a.Email),
	}); err != nil {
		return "", fmt.Errorf("subscribe alerts email: %w", err)
	}
	return arn, nil
}

// NotifyRTO publishes one message listing the days whose RTO% exceeds the
// threshold and returns how many days were flagged.
func (a *Alerter) NotifyRTO(ctx context.Context, shop string, days []*pipeline.DayBucket) (int, error) {
	var lines []string
	for _, d := range days {
		if d.TotalOrders > 0 && d.RTOPercentage > a.Threshold {
			lines = append(lines, fmt.Sprintf("%s: %.1f%% RTO (%d of %d orders)", d.Date, d.RTOPercentage, d.RTOOrders, d.TotalOrders))
		}
	}
	if len(lines) == 0 {
		return 0, nil
	}
	arn, err := a.topic(ctx, shop)
	if err != nil {
		return 0, err
	}
	_, err = a.SNS.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(arn),
		Subject:  aws.String(fmt.Sprintf("RTO above %.0f%% for %s", a.Threshold, shop)),
		Message: aws.String(fmt.Sprintf("Return-to-origin rate exceeded %.1f%% for %s:\n%s\n",
			a.Threshold, shop, strings.Join(lines, "\n"))),
	})
	if err != nil {
		return 0, fmt.Errorf("publish rto alert: %w", err)
	}
	return len(lines), nil
}
