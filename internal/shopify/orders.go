package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sellerdash/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxOrderPages = 1000

var ErrTooManyPages = errors.New("shopify pagination did not terminate")

type noteAttributeWire struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type addressWire struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Zip         string `json:"zip"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
}

type orderWire struct {
	ID                json.Number         `json:"id"`
	Name              string              `json:"name"`
	CreatedAt         string              `json:"created_at"`
	TotalPrice        string              `json:"total_price"`
	Currency          string              `json:"currency"`
	CancelledAt       *string             `json:"cancelled_at"`
	FulfillmentStatus *string             `json:"fulfillment_status"`
	FinancialStatus   string              `json:"financial_status"`
	Tags              string              `json:"tags"`
	NoteAttributes    []noteAttributeWire `json:"note_attributes"`
	LandingSite       *string             `json:"landing_site"`
	ReferringSite     *string             `json:"referring_site"`
	SourceName        string              `json:"source_name"`
	Email             string              `json:"email"`
	Phone             string              `json:"phone"`
	Fulfillments      []struct {
		TrackingNumber  *string  `json:"tracking_number"`
		TrackingNumbers []string `json:"tracking_numbers"`
	} `json:"fulfillments"`
	Refunds []struct {
		Transactions []struct {
			Kind   string `json:"kind"`
			Status string `json:"status"`
			Amount string `json:"amount"`
		} `json:"transactions"`
	} `json:"refunds"`
	ShippingAddress *addressWire `json:"shipping_address"`
	LineItems       []struct {
		Name     string `json:"name"`
		SKU      string `json:"sku"`
		Quantity int    `json:"quantity"`
		Price    string `json:"price"`
	} `json:"line_items"`
}

// ListOrders returns every order created in [createdMin, createdMax], any status.
// Pages are fetched sequentially by following the Link header.
func (c *Client) ListOrders(ctx context.Context, createdMin, createdMax time.Time) ([]domain.Order, error) {
	q := url.Values{}
	q.Set("status", "any")
	q.Set("limit", "250")
	q.Set("created_at_min", createdMin.Format(time.RFC3339))
	if !createdMax.IsZero() {
		q.Set("created_at_max", createdMax.Format(time.RFC3339))
	}
	next := c.endpoint("orders.json") + "?" + q.Encode()

	var orders []domain.Order
	for page := 1; next != ""; page++ {
		if page > maxOrderPages {
			return nil, ErrTooManyPages
		}
		raw, nextURL, err := c.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("list orders page %d: %w", page, err)
		}
		var body struct {
			Orders []orderWire `json:"orders"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode orders page %d: %w", page, err)
		}
		for _, w := range body.Orders {
			orders = append(orders, c.toOrder(w))
		}
		c.Log.Debug("fetched orders page",
			zap.Int("page", page), zap.Int("count", len(body.Orders)), zap.Bool("more", nextURL != ""))
		next = nextURL
	}
	return orders, nil
}

// GetOrder loads one order by numeric id.
func (c *Client) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	id = strings.TrimSpace(strings.TrimPrefix(id, "#"))
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return domain.Order{}, fmt.Errorf("invalid order id %q", id)
	}
	raw, _, err := c.get(ctx, c.endpoint("orders/"+id+".json"))
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	var body struct {
		Order orderWire `json:"order"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", id, err)
	}
	return c.toOrder(body.Order), nil
}

func (c *Client) toOrder(w orderWire) domain.Order {
	o := domain.Order{
		Platform:        domain.PlatformShopify,
		ID:              w.ID.String(),
		Name:            w.Name,
		Currency:        w.Currency,
		FinancialStatus: w.FinancialStatus,
		Tags:            w.Tags,
		LandingSite:     deref(w.LandingSite),
		ReferringSite:   deref(w.ReferringSite),
		SourceName:      w.SourceName,
		Email:           w.Email,
		Phone:           w.Phone,
		Refunded:        decimal.Zero,
	}

	if t, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
		o.CreatedAt = t
	} else {
		c.Log.Warn("unparseable order created_at", zap.String("order", w.Name), zap.String("created_at", w.CreatedAt))
	}

	price, ok := domain.ParseAmount(w.TotalPrice)
	o.TotalPrice = price
	if !ok {
		o.PriceMalformed = true
		c.Log.Warn("unparseable order total", zap.String("order", w.Name), zap.String("total_price", w.TotalPrice))
	}

	if w.CancelledAt != nil && *w.CancelledAt != "" {
		if t, err := time.Parse(time.RFC3339, *w.CancelledAt); err == nil {
			o.CancelledAt = &t
		} else {
			// Cancellation is what matters, not its timestamp.
			t := o.CreatedAt
			o.CancelledAt = &t
		}
	}
	if w.FulfillmentStatus != nil {
		o.FulfillmentStatus = domain.FulfillmentStatus(strings.ToLower(*w.FulfillmentStatus))
	}

	for _, na := range w.NoteAttributes {
		o.NoteAttributes = append(o.NoteAttributes, domain.NoteAttribute{Name: na.Name, Value: stringify(na.Value)})
	}

	for _, f := range w.Fulfillments {
		if f.TrackingNumber != nil && *f.TrackingNumber != "" {
			o.AWBs = append(o.AWBs, *f.TrackingNumber)
		}
		for _, tn := range f.TrackingNumbers {
			if tn != "" && (f.TrackingNumber == nil || tn != *f.TrackingNumber) {
				o.AWBs = append(o.AWBs, tn)
			}
		}
	}

	for _, r := range w.Refunds {
		for _, tx := range r.Transactions {
			if tx.Kind != "refund" || tx.Status != "success" {
				continue
			}
			if amt, ok := domain.ParseAmount(tx.Amount); ok {
				o.Refunded = o.Refunded.Add(amt)
			}
		}
	}

	if a := w.ShippingAddress; a != nil {
		o.ShippingAddress = domain.Address{
			FirstName: a.FirstName, LastName: a.LastName,
			Address1: a.Address1, Address2: a.Address2,
			City: a.City, Province: a.Province, Zip: a.Zip,
			CountryCode: a.CountryCode, Phone: a.Phone,
		}
	}

	for _, li := range w.LineItems {
		price, _ := domain.ParseAmount(li.Price)
		o.Items = append(o.Items, domain.LineItem{Name: li.Name, SKU: li.SKU, Quantity: li.Quantity, Price: price})
	}
	return o
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
