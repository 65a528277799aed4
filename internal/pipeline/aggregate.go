package pipeline

import (
	"sort"

	"sellerdash/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	UnattributedID   = "unattributed"
	UnattributedName = "Unattributed / Organic"
)

// ResolvedOrder is an order after status resolution and attribution.
type ResolvedOrder struct {
	Order       domain.Order
	Tracking    *domain.TrackingRecord
	Status      domain.Status
	Attribution Attribution
}

// Metrics are the additive counters of a bucket plus the ratios derived from them.
type Metrics struct {
	Spend            float64 `json:"spend"`
	TotalOrders      int     `json:"totalOrders"`
	Revenue          float64 `json:"revenue"`
	DeliveredOrders  int     `json:"deliveredOrders"`
	CancelledOrders  int     `json:"cancelledOrders"`
	RTOOrders        int     `json:"rtoOrders"`
	InTransitOrders  int     `json:"inTransitOrders"`
	ProcessingOrders int     `json:"processingOrders"`
	NewOrders        int     `json:"newOrders"`
	ExceptionOrders  int     `json:"exceptionOrders"`
	CPO              float64 `json:"cpo"`
	ROAS             float64 `json:"roas"`
	RTOPercentage    float64 `json:"rtoPercentage"`

	spend   decimal.Decimal
	revenue decimal.Decimal
}

func (m *Metrics) addSpend(d decimal.Decimal) {
	m.spend = m.spend.Add(d)
}

func (m *Metrics) addOrder(status domain.Status, amount decimal.Decimal) {
	m.TotalOrders++
	if status.CountsRevenue() {
		m.revenue = m.revenue.Add(amount)
	}
	switch status {
	case domain.StatusDelivered:
		m.DeliveredOrders++
	case domain.StatusCancelled:
		m.CancelledOrders++
	case domain.StatusRTO:
		m.RTOOrders++
	case domain.StatusInTransit:
		m.InTransitOrders++
	case domain.StatusNew:
		m.NewOrders++
	case domain.StatusException:
		m.ExceptionOrders++
	default:
		m.ProcessingOrders++
	}
}

var hundred = decimal.NewFromInt(100)

// finalize fills the float fields. Ratios with a zero denominator are zero.
func (m *Metrics) finalize() {
	m.Spend = domain.Money(m.spend)
	m.Revenue = domain.Money(m.revenue)
	m.CPO, m.ROAS, m.RTOPercentage = 0, 0, 0
	if m.TotalOrders > 0 {
		orders := decimal.NewFromInt(int64(m.TotalOrders))
		m.CPO = m.spend.Div(orders).Round(2).InexactFloat64()
		m.RTOPercentage = decimal.NewFromInt(int64(m.RTOOrders)).Mul(hundred).Div(orders).Round(1).InexactFloat64()
	}
	if m.spend.IsPositive() {
		m.ROAS = m.revenue.Div(m.spend).Round(2).InexactFloat64()
	}
}

// StatusTotal is the sum of the per-status counters; it always equals TotalOrders.
func (m Metrics) StatusTotal() int {
	return m.DeliveredOrders + m.CancelledOrders + m.RTOOrders + m.InTransitOrders +
		m.ProcessingOrders + m.NewOrders + m.ExceptionOrders
}

// Bucket is one row of the entity rollup. Ad-set buckets hold their ads as children;
// the unattributed bucket holds one child per traffic source.
type Bucket struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Metrics
	Children []*Bucket `json:"terms,omitempty"`

	childIndex map[string]*Bucket
}

func newBucket(id, name string) *Bucket {
	return &Bucket{ID: id, Name: name}
}

func (b *Bucket) child(id, name string) *Bucket {
	if b.childIndex == nil {
		b.childIndex = map[string]*Bucket{}
	}
	if c, ok := b.childIndex[id]; ok {
		return c
	}
	c := newBucket(id, name)
	b.childIndex[id] = c
	b.Children = append(b.Children, c)
	return c
}

func (b *Bucket) finalize() {
	b.Metrics.finalize()
	for _, c := range b.Children {
		c.finalize()
	}
	sortBySpend(b.Children)
}

func sortBySpend(bs []*Bucket) {
	sort.SliceStable(bs, func(i, j int) bool {
		return bs[i].spend.GreaterThan(bs[j].spend)
	})
}

// DayBucket is one calendar day of the time series.
type DayBucket struct {
	Date string `json:"date"`
	Metrics
}

// BuildTimeSeries returns one bucket per day of r, oldest first. Orders are placed by
// their creation day in r's location; orders outside r are ignored.
func BuildTimeSeries(r domain.DateRange, orders []ResolvedOrder, dailySpend map[string]decimal.Decimal) []*DayBucket {
	days := r.Days()
	out := make([]*DayBucket, 0, len(days))
	byDay := make(map[string]*DayBucket, len(days))
	for _, d := range days {
		b := &DayBucket{Date: d}
		if s, ok := dailySpend[d]; ok {
			b.addSpend(s)
		}
		byDay[d] = b
		out = append(out, b)
	}

	for _, ro := range orders {
		b, ok := byDay[r.DayOf(ro.Order.CreatedAt)]
		if !ok {
			continue
		}
		b.addOrder(ro.Status, ro.Order.TotalPrice)
	}

	for _, b := range out {
		b.finalize()
	}
	return out
}

// BuildRollup returns one bucket per ad set (ad level: with its ads as children) plus
// the unattributed bucket, ordered by spend descending. Ties keep fetch order, with
// the unattributed bucket after every entity.
func BuildRollup(level domain.AdLevel, entities []domain.AdEntity, orders []ResolvedOrder) []*Bucket {
	var top []*Bucket
	byID := map[string]*Bucket{}

	for _, e := range entities {
		if level == domain.LevelAdSet {
			b, ok := byID[e.ID]
			if !ok {
				b = newBucket(e.ID, e.Name)
				byID[e.ID] = b
				top = append(top, b)
			}
			b.addSpend(e.Spend)
			continue
		}

		parent, ok := byID[e.ParentID]
		if !ok {
			parent = newBucket(e.ParentID, e.ParentName)
			byID[e.ParentID] = parent
			top = append(top, parent)
		}
		parent.child(e.ID, e.Name).addSpend(e.Spend)
		parent.addSpend(e.Spend)
	}

	un := newBucket(UnattributedID, UnattributedName)
	top = append(top, un)

	for _, ro := range orders {
		amount := ro.Order.TotalPrice
		attr := ro.Attribution

		switch attr.Kind {
		case AttributedAd:
			if parent, ok := byID[attr.ParentID]; ok && parent.childIndex[attr.EntityID] != nil {
				parent.addOrder(ro.Status, amount)
				parent.childIndex[attr.EntityID].addOrder(ro.Status, amount)
				continue
			}
		case AttributedAdSet:
			if b, ok := byID[attr.EntityID]; ok {
				b.addOrder(ro.Status, amount)
				continue
			}
		}

		source := attr.Source
		if source == "" {
			source = InferSource(ro.Order)
		}
		un.addOrder(ro.Status, amount)
		un.child(source, source).addOrder(ro.Status, amount)
	}

	for _, b := range top {
		b.finalize()
	}
	sortBySpend(top)
	return top
}

// TermRow is a child bucket flattened with the name of its parent.
type TermRow struct {
	Bucket
	AdsetName string `json:"adsetName"`
}

func FlattenTerms(rollup []*Bucket) []TermRow {
	var out []TermRow
	for _, b := range rollup {
		for _, c := range b.Children {
			out = append(out, TermRow{Bucket: *c, AdsetName: b.Name})
		}
	}
	return out
}
