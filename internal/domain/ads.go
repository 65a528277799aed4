package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AdLevel is the granularity ad entities are fetched at.
type AdLevel string

const (
	LevelAd    AdLevel = "ad"
	LevelAdSet AdLevel = "adset"
)

func ParseAdLevel(s string) (AdLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ad":
		return LevelAd, nil
	case "adset", "ad_set":
		return LevelAdSet, nil
	default:
		return "", fmt.Errorf("unknown ad level %q", s)
	}
}

// AdEntity is one ad or ad set with its spend over the requested range. For ads the
// parent is the ad set; for ad sets the parent is the campaign.
type AdEntity struct {
	Level        AdLevel
	ID           string
	Name         string
	ParentID     string
	ParentName   string
	CampaignID   string
	CampaignName string
	Spend        decimal.Decimal
}
