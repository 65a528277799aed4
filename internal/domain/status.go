package domain

// Status is the single reconciled lifecycle state shown for an order.
type Status string

const (
	StatusNew        Status = "New"
	StatusProcessing Status = "Processing"
	StatusInTransit  Status = "In-Transit"
	StatusDelivered  Status = "Delivered"
	StatusRTO        Status = "RTO"
	StatusCancelled  Status = "Cancelled"
	StatusException  Status = "Exception"
)

var AllStatuses = []Status{
	StatusNew, StatusProcessing, StatusInTransit, StatusDelivered,
	StatusRTO, StatusCancelled, StatusException,
}

// CountsRevenue is false for orders whose money never reached the seller.
func (s Status) CountsRevenue() bool {
	return s != StatusCancelled && s != StatusRTO
}

func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}
