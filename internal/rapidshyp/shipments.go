package rapidshyp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sellerdash/internal/domain"

	"go.uber.org/zap"
)

type Label struct {
	Data     []byte
	MimeType string
}

// Label downloads the shipping label for a public order name ("#1001").
func (c *Client) Label(ctx context.Context, orderName string) (*Label, error) {
	res, raw, err := c.do(ctx, "labels", http.MethodGet, "/labels?order_id="+url.QueryEscape(orderName), bearer, nil)
	if err != nil {
		return nil, err
	}
	mime := res.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/pdf"
	}
	return &Label{Data: raw, MimeType: mime}, nil
}

type CustomerDetails struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type DeliveryAddress struct {
	Line1   string `json:"address_line_1"`
	Line2   string `json:"address_line_2"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

type ShipmentItem struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type ShipmentRequest struct {
	OrderID         string          `json:"order_id"`
	Customer        CustomerDetails `json:"customer_details"`
	DeliveryAddress DeliveryAddress `json:"delivery_address"`
	LineItems       []ShipmentItem  `json:"line_items"`
	PaymentMethod   string          `json:"payment_method"`
	OrderTotal      float64         `json:"order_total"`
}

// NewShipmentRequest builds a shipment from a storefront order.
func NewShipmentRequest(o domain.Order) ShipmentRequest {
	a := o.ShippingAddress
	phone := a.Phone
	if phone == "" {
		phone = o.Phone
	}
	req := ShipmentRequest{
		OrderID: o.DisplayName(),
		Customer: CustomerDetails{
			Name:  a.FullName(),
			Phone: phone,
			Email: o.Email,
		},
		DeliveryAddress: DeliveryAddress{
			Line1: a.Address1, Line2: a.Address2,
			City: a.City, State: a.Province,
			ZipCode: a.Zip, Country: a.CountryCode,
		},
		PaymentMethod: o.PaymentMethod(),
		OrderTotal:    domain.Money(o.TotalPrice),
	}
	for _, it := range o.Items {
		req.LineItems = append(req.LineItems, ShipmentItem{
			SKU: it.SKU, Name: it.Name, Quantity: it.Quantity, Price: domain.Money(it.Price),
		})
	}
	return req
}

func (r ShipmentRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.OrderID) == "" {
		missing = append(missing, "order id")
	}
	if strings.TrimSpace(r.DeliveryAddress.Line1) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(r.DeliveryAddress.ZipCode) == "" {
		missing = append(missing, "zip code")
	}
	if len(r.LineItems) == 0 {
		missing = append(missing, "line items")
	}
	if len(missing) > 0 {
		return fmt.Errorf("shipment incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// CreateShipment registers the order with the carrier.
func (c *Client) CreateShipment(ctx context.Context, req ShipmentRequest) (map[string]any, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	_, raw, err := c.do(ctx, "shipments", http.MethodPost, "/shipments", bearer, req)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			c.Log.Warn("unreadable shipment response", zap.String("order", req.OrderID), zap.Error(err))
		}
	}
	return out, nil
}

func (c *Client) CancelShipment(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return fmt.Errorf("missing order id")
	}
	_, _, err := c.do(ctx, "shipments/cancel", http.MethodPost, "/shipments/cancel", bearer, map[string]string{"order_id": orderID})
	return err
}
