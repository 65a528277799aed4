package rapidshyp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sellerdash/internal/domain"
)

type trackResponse struct {
	Success bool `json:"success"`
	Records []struct {
		ShipmentDetails []struct {
			CurrentTrackingStatusDesc string `json:"current_tracking_status_desc"`
			CurrentTrackingStatus     string `json:"current_tracking_status"`
			CurrentStatusDate         string `json:"current_status_date"`
			CourierName               string `json:"courier_name"`
		} `json:"shipment_details"`
	} `json:"records"`
}

// Track returns the latest carrier record for awb, or nil when the carrier knows
// nothing about it.
func (c *Client) Track(ctx context.Context, awb string) (*domain.TrackingRecord, error) {
	awb = strings.TrimSpace(awb)
	if awb == "" {
		return nil, nil
	}
	_, raw, err := c.do(ctx, "track_order", http.MethodPost, "/track_order", tokenHeader, map[string]string{"awb": awb})
	if err != nil {
		return nil, err
	}

	var tr trackResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decode tracking for %s: %w", awb, err)
	}
	if !tr.Success || len(tr.Records) == 0 || len(tr.Records[0].ShipmentDetails) == 0 {
		return nil, nil
	}

	sd := tr.Records[0].ShipmentDetails[0]
	status := sd.CurrentTrackingStatusDesc
	if strings.TrimSpace(status) == "" {
		status = sd.CurrentTrackingStatus
	}
	if strings.TrimSpace(status) == "" {
		return nil, nil
	}

	rec := &domain.TrackingRecord{
		AWB:       awb,
		RawStatus: strings.TrimSpace(status),
		Carrier:   sd.CourierName,
	}
	if t, ok := parseStatusDate(sd.CurrentStatusDate); ok {
		rec.UpdatedAt = &t
	}
	return rec, nil
}

var statusDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"2006-01-02",
}

// parseStatusDate accepts the handful of layouts couriers report through RapidShyp.
func parseStatusDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range statusDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
