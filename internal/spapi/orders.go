package spapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sellerdash/internal/domain"
)

const maxOrderPages = 200

type BuyerInfo struct {
	BuyerName  string `json:"BuyerName"`
	BuyerEmail string `json:"BuyerEmail"`
}

// GetBuyerInfo reads the buyer block of one marketplace order.
func (c *Client) GetBuyerInfo(ctx context.Context, orderID string) (*BuyerInfo, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("missing order id")
	}
	var resp struct {
		Payload BuyerInfo `json:"payload"`
	}
	path := "/orders/v0/orders/" + url.PathEscape(orderID) + "/buyerInfo"
	if err := c.Do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Payload, nil
}

type money struct {
	CurrencyCode string `json:"CurrencyCode"`
	Amount       string `json:"Amount"`
}

type orderWire struct {
	AmazonOrderID      string `json:"AmazonOrderId"`
	PurchaseDate       string `json:"PurchaseDate"`
	LastUpdateDate     string `json:"LastUpdateDate"`
	OrderStatus        string `json:"OrderStatus"`
	FulfillmentChannel string `json:"FulfillmentChannel"`
	SalesChannel       string `json:"SalesChannel"`
	PaymentMethod      string `json:"PaymentMethod"`
	OrderTotal         *money `json:"OrderTotal"`
}

// ListOrders returns marketplace orders created after createdAfter, following NextToken.
func (c *Client) ListOrders(ctx context.Context, createdAfter time.Time) ([]domain.Order, error) {
	q := url.Values{}
	q.Set("MarketplaceIds", c.MarketplaceID)
	q.Set("CreatedAfter", createdAfter.UTC().Format(time.RFC3339))

	var out []domain.Order
	for page := 1; ; page++ {
		if page > maxOrderPages {
			return nil, fmt.Errorf("sp-api order pagination did not terminate after %d pages", maxOrderPages)
		}
		var resp struct {
			Payload struct {
				Orders    []orderWire `json:"Orders"`
				NextToken string      `json:"NextToken"`
			} `json:"payload"`
		}
		if err := c.Do(ctx, http.MethodGet, "/orders/v0/orders", q, nil, &resp); err != nil {
			return nil, fmt.Errorf("list marketplace orders: %w", err)
		}
		for _, w := range resp.Payload.Orders {
			out = append(out, w.order())
		}
		if resp.Payload.NextToken == "" {
			return out, nil
		}
		q = url.Values{}
		q.Set("MarketplaceIds", c.MarketplaceID)
		q.Set("NextToken", resp.Payload.NextToken)
	}
}

func (w orderWire) order() domain.Order {
	o := domain.Order{
		Platform:   domain.PlatformAmazon,
		ID:         w.AmazonOrderID,
		Name:       w.AmazonOrderID,
		SourceName: w.SalesChannel,
	}
	if t, err := time.Parse(time.RFC3339, w.PurchaseDate); err == nil {
		o.CreatedAt = t
	}
	if w.OrderTotal != nil {
		o.Currency = w.OrderTotal.CurrencyCode
		amt, ok := domain.ParseAmount(w.OrderTotal.Amount)
		o.TotalPrice, o.PriceMalformed = amt, !ok
	}
	// Marketplace orders are either cash on delivery or paid up front.
	if strings.EqualFold(w.PaymentMethod, "COD") {
		o.FinancialStatus = "pending"
	} else {
		o.FinancialStatus = "paid"
	}

	switch w.OrderStatus {
	case "Canceled":
		t := o.CreatedAt
		if u, err := time.Parse(time.RFC3339, w.LastUpdateDate); err == nil {
			t = u
		}
		o.CancelledAt = &t
	case "Shipped":
		o.FulfillmentStatus = domain.FulfillmentFulfilled
	case "PartiallyShipped":
		o.FulfillmentStatus = domain.FulfillmentPartial
	}
	return o
}
