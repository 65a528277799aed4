package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"sellerdash/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeOrders struct {
	orders []domain.Order
	err    error
}

func (f fakeOrders) ListOrders(context.Context, time.Time, time.Time) ([]domain.Order, error) {
	return f.orders, f.err
}

type fakeAds struct {
	entities []domain.AdEntity
	spend    map[string]decimal.Decimal
	err      error
}

func (f fakeAds) AdEntities(context.Context, domain.AdLevel, domain.DateRange) ([]domain.AdEntity, error) {
	return f.entities, f.err
}

func (f fakeAds) DailySpend(context.Context, domain.DateRange) (map[string]decimal.Decimal, error) {
	return f.spend, nil
}

type fakeTracking struct {
	records map[string]*domain.TrackingRecord
	fail    map[string]bool
	calls   int32
}

func (f *fakeTracking) Track(_ context.Context, awb string) (*domain.TrackingRecord, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail[awb] {
		return nil, errors.New("carrier timeout")
	}
	return f.records[awb], nil
}

func summerSaleFixture() (fakeOrders, fakeAds) {
	orders := fakeOrders{orders: []domain.Order{{
		Platform:          domain.PlatformShopify,
		ID:                "5001",
		Name:              "#1001",
		CreatedAt:         time.Date(2024, 6, 1, 10, 0, 0, 0, ist),
		TotalPrice:        decimal.NewFromInt(500),
		FulfillmentStatus: domain.FulfillmentFulfilled,
		NoteAttributes:    []domain.NoteAttribute{{Name: "utm_content", Value: "summer_sale"}},
	}}}
	ads := fakeAds{
		entities: []domain.AdEntity{{Level: domain.LevelAdSet, ID: "11", Name: "Summer-Sale", ParentID: "1", Spend: decimal.NewFromInt(1000)}},
		spend:    map[string]decimal.Decimal{"2024-06-01": decimal.NewFromInt(1000)},
	}
	return orders, ads
}

func TestRunSummerSaleScenario(t *testing.T) {
	orders, ads := summerSaleFixture()
	p := New(orders, ads, nil, 0, zaptest.NewLogger(t))

	r, err := domain.NewDateRange("2024-06-01", "2024-06-02", ist, 0)
	require.NoError(t, err)
	report, err := p.Run(context.Background(), Request{Range: r, Level: domain.LevelAdSet})
	require.NoError(t, err)

	require.Len(t, report.AdsetPerformance, 2)
	summer := report.AdsetPerformance[0]
	assert.Equal(t, "Summer-Sale", summer.Name)
	assert.Equal(t, 1, summer.TotalOrders)
	assert.Equal(t, 500.0, summer.Revenue)
	assert.Equal(t, 1000.0, summer.Spend)
	assert.Equal(t, 0.5, summer.ROAS)

	require.Len(t, report.TimeSeries, 2)
	june1, june2 := report.TimeSeries[0], report.TimeSeries[1]
	assert.Equal(t, "2024-06-01", june1.Date)
	assert.Equal(t, 500.0, june1.Revenue)
	assert.Equal(t, 1000.0, june1.Spend)
	assert.Equal(t, "2024-06-02", june2.Date)
	assert.Zero(t, june2.Revenue)
	assert.Zero(t, june2.Spend)
	assert.Zero(t, june2.TotalOrders)

	require.Len(t, report.Orders, 1)
	assert.Equal(t, "#1001", report.Orders[0].Name)
	assert.Equal(t, AttributedAdSet, report.Orders[0].Attribution)
	// No carrier configured: fulfilled is not proof of delivery.
	assert.Equal(t, domain.StatusProcessing, report.Orders[0].Status)
}

func TestRunUsesTrackingAndToleratesFailures(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, ist)
	orders := fakeOrders{orders: []domain.Order{
		{ID: "1", Name: "#1", CreatedAt: at, TotalPrice: decimal.NewFromInt(100), FulfillmentStatus: domain.FulfillmentFulfilled, AWBs: []string{"A1"}},
		{ID: "2", Name: "#2", CreatedAt: at, TotalPrice: decimal.NewFromInt(200), FulfillmentStatus: domain.FulfillmentFulfilled, AWBs: []string{"A2"}},
		{ID: "3", Name: "#3", CreatedAt: at, TotalPrice: decimal.NewFromInt(300)},
		{ID: "4", Name: "#4", CreatedAt: at.AddDate(0, 0, 10), TotalPrice: decimal.NewFromInt(999)},
	}}
	tracking := &fakeTracking{
		records: map[string]*domain.TrackingRecord{"A1": {AWB: "A1", RawStatus: "RTO Delivered"}},
		fail:    map[string]bool{"A2": true},
	}
	p := New(orders, fakeAds{}, tracking, 2, zaptest.NewLogger(t))

	r, err := domain.NewDateRange("2024-06-01", "2024-06-01", ist, 0)
	require.NoError(t, err)
	report, err := p.Run(context.Background(), Request{Range: r})
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&tracking.calls))
	require.Len(t, report.Orders, 3)
	assert.Equal(t, domain.StatusRTO, report.Orders[0].Status)
	assert.Equal(t, "RTO Delivered", report.Orders[0].CarrierStatus)
	assert.Equal(t, domain.StatusDelivered, report.Orders[1].Status)
	assert.Equal(t, domain.StatusProcessing, report.Orders[2].Status)

	require.Len(t, report.AdsetPerformance, 1)
	un := report.AdsetPerformance[0]
	assert.Equal(t, 3, un.TotalOrders)
	assert.Equal(t, 500.0, un.Revenue)
	assert.Equal(t, 1, un.RTOOrders)
}

func TestRunFailsWhenAFetcherFails(t *testing.T) {
	orders, _ := summerSaleFixture()
	p := New(orders, fakeAds{err: errors.New("token expired")}, nil, 0, zaptest.NewLogger(t))

	r, err := domain.NewDateRange("2024-06-01", "2024-06-02", ist, 0)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), Request{Range: r})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch ad entities")

	p = New(fakeOrders{err: errors.New("401")}, fakeAds{}, nil, 0, zaptest.NewLogger(t))
	_, err = p.Run(context.Background(), Request{Range: r})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch orders")
}
