package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"sellerdash/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type insightRow struct {
	AdID         string `json:"ad_id"`
	AdName       string `json:"ad_name"`
	AdsetID      string `json:"adset_id"`
	AdsetName    string `json:"adset_name"`
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Spend        string `json:"spend"`
	DateStart    string `json:"date_start"`
}

func timeRange(r domain.DateRange) string {
	b, _ := json.Marshal(map[string]string{"since": r.SinceDay(), "until": r.UntilDay()})
	return string(b)
}

// AdEntities returns one entity per ad (or ad set) with its spend aggregated over r.
func (c *Client) AdEntities(ctx context.Context, level domain.AdLevel, r domain.DateRange) ([]domain.AdEntity, error) {
	q := url.Values{}
	q.Set("time_range", timeRange(r))
	q.Set("limit", "500")
	switch level {
	case domain.LevelAdSet:
		q.Set("level", "adset")
		q.Set("fields", "adset_id,adset_name,campaign_id,campaign_name,spend")
	default:
		level = domain.LevelAd
		q.Set("level", "ad")
		q.Set("fields", "ad_id,ad_name,adset_id,adset_name,campaign_id,campaign_name,spend")
	}

	var out []domain.AdEntity
	err := c.pages(ctx, c.insightsURL(q), func(data json.RawMessage) error {
		var rows []insightRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("decode insights rows: %w", err)
		}
		for _, row := range rows {
			out = append(out, row.entity(level, c.spend(row)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s insights: %w", level, err)
	}
	return out, nil
}

// spend reads a row's spend, warning when it is not a number. Unreadable spend counts as zero.
func (c *Client) spend(row insightRow) decimal.Decimal {
	v, ok := domain.ParseAmount(row.Spend)
	if !ok && row.Spend != "" {
		c.Log.Warn("unreadable insights spend",
			zap.String("spend", row.Spend),
			zap.String("ad_id", row.AdID),
			zap.String("adset_id", row.AdsetID),
			zap.String("date", row.DateStart))
	}
	return v
}

func (row insightRow) entity(level domain.AdLevel, spend decimal.Decimal) domain.AdEntity {
	e := domain.AdEntity{
		Level:        level,
		CampaignID:   row.CampaignID,
		CampaignName: row.CampaignName,
		Spend:        spend,
	}
	if level == domain.LevelAdSet {
		e.ID, e.Name = row.AdsetID, row.AdsetName
		e.ParentID, e.ParentName = row.CampaignID, row.CampaignName
		return e
	}
	e.ID, e.Name = row.AdID, row.AdName
	e.ParentID, e.ParentName = row.AdsetID, row.AdsetName
	return e
}

// DailySpend returns account spend per calendar day in r. Days without delivery are absent.
func (c *Client) DailySpend(ctx context.Context, r domain.DateRange) (map[string]decimal.Decimal, error) {
	q := url.Values{}
	q.Set("time_range", timeRange(r))
	q.Set("time_increment", "1")
	q.Set("fields", "spend,date_start")
	q.Set("limit", "500")

	out := map[string]decimal.Decimal{}
	err := c.pages(ctx, c.insightsURL(q), func(data json.RawMessage) error {
		var rows []insightRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("decode daily spend rows: %w", err)
		}
		for _, row := range rows {
			if row.DateStart == "" {
				continue
			}
			out[row.DateStart] = out[row.DateStart].Add(c.spend(row))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch daily spend: %w", err)
	}
	return out, nil
}
