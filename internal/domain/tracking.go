package domain

import "time"

// TrackingRecord is the latest carrier view of a shipment.
type TrackingRecord struct {
	AWB       string
	RawStatus string
	UpdatedAt *time.Time
	Carrier   string
}
