package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Platform string

const (
	PlatformShopify Platform = "Shopify"
	PlatformAmazon  Platform = "Amazon"
)

type FulfillmentStatus string

const (
	FulfillmentNone      FulfillmentStatus = ""
	FulfillmentFulfilled FulfillmentStatus = "fulfilled"
	FulfillmentPartial   FulfillmentStatus = "partial"
	FulfillmentRestocked FulfillmentStatus = "restocked"
)

type NoteAttribute struct {
	Name  string
	Value string
}

type LineItem struct {
	Name     string
	SKU      string
	Quantity int
	Price    decimal.Decimal
}

type Address struct {
	FirstName   string
	LastName    string
	Address1    string
	Address2    string
	City        string
	Province    string
	Zip         string
	CountryCode string
	Phone       string
}

func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Line renders the address the way the order list shows it.
func (a Address) Line() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Address1, a.City, a.Zip} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Order is a single commerce order as fetched from a storefront or marketplace.
type Order struct {
	Platform          Platform
	ID                string
	Name              string
	CreatedAt         time.Time
	TotalPrice        decimal.Decimal
	PriceMalformed    bool
	Currency          string
	CancelledAt       *time.Time
	FulfillmentStatus FulfillmentStatus
	FinancialStatus   string
	Tags              string
	NoteAttributes    []NoteAttribute
	LandingSite       string
	ReferringSite     string
	SourceName        string
	AWBs              []string
	Refunded          decimal.Decimal
	Email             string
	Phone             string
	ShippingAddress   Address
	Items             []LineItem
}

// DisplayName prefers the human order name ("#1001") over the numeric id.
func (o Order) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.ID
}

// NoteValue returns the first note attribute with the given name, case-insensitively.
func (o Order) NoteValue(name string) string {
	for _, na := range o.NoteAttributes {
		if strings.EqualFold(strings.TrimSpace(na.Name), name) {
			return strings.TrimSpace(na.Value)
		}
	}
	return ""
}

// NoteValues joins every note attribute value with spaces.
func (o Order) NoteValues() string {
	vals := make([]string, 0, len(o.NoteAttributes))
	for _, na := range o.NoteAttributes {
		if v := strings.TrimSpace(na.Value); v != "" {
			vals = append(vals, v)
		}
	}
	return strings.Join(vals, " ")
}

// LandingParam reads a query parameter from the landing-site URL. Landing sites are
// often stored as a bare path ("/products/x?utm_source=fb").
func (o Order) LandingParam(name string) string {
	ls := strings.TrimSpace(o.LandingSite)
	if ls == "" {
		return ""
	}
	u, err := url.Parse(ls)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(name))
}

// LandingPath is the landing site without its query string.
func (o Order) LandingPath() string {
	ls := strings.TrimSpace(o.LandingSite)
	if i := strings.IndexByte(ls, '?'); i >= 0 {
		return ls[:i]
	}
	return ls
}

// UTM looks a utm_* key up in note attributes first, then on the landing site.
func (o Order) UTM(key string) string {
	if v := o.NoteValue(key); v != "" {
		return v
	}
	return o.LandingParam(key)
}

func (o Order) TagList() []string {
	raw := strings.Split(o.Tags, ",")
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// HasTagContaining reports whether any tag contains sub, ignoring case.
func (o Order) HasTagContaining(sub string) bool {
	sub = strings.ToLower(sub)
	for _, t := range o.TagList() {
		if strings.Contains(strings.ToLower(t), sub) {
			return true
		}
	}
	return false
}

func (o Order) Cancelled() bool {
	return o.CancelledAt != nil && !o.CancelledAt.IsZero()
}

func (o Order) Fulfilled() bool {
	return o.FulfillmentStatus == FulfillmentFulfilled
}

func (o Order) PrimaryAWB() string {
	for _, a := range o.AWBs {
		if a = strings.TrimSpace(a); a != "" {
			return a
		}
	}
	return ""
}

// NetTotal is the order total minus successful refunds, never below zero.
func (o Order) NetTotal() decimal.Decimal {
	net := o.TotalPrice.Sub(o.Refunded)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

func (o Order) PaymentMethod() string {
	if strings.EqualFold(o.FinancialStatus, "paid") {
		return "Prepaid"
	}
	return "COD"
}
