// Package pipeline joins storefront orders, ad spend and carrier tracking into
// performance reports.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sellerdash/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type OrderSource interface {
	ListOrders(ctx context.Context, createdMin, createdMax time.Time) ([]domain.Order, error)
}

type AdSource interface {
	AdEntities(ctx context.Context, level domain.AdLevel, r domain.DateRange) ([]domain.AdEntity, error)
	DailySpend(ctx context.Context, r domain.DateRange) (map[string]decimal.Decimal, error)
}

type TrackingSource interface {
	Track(ctx context.Context, awb string) (*domain.TrackingRecord, error)
}

const defaultTrackingConcurrency = 25

type Pipeline struct {
	Orders   OrderSource
	Ads      AdSource
	Tracking TrackingSource // optional
	Resolver Resolver
	Matcher  Matcher
	// TrackingConcurrency bounds in-flight carrier lookups.
	TrackingConcurrency int
	Log                 *zap.Logger
}

// New wires a pipeline. tracking may be nil.
func New(orders OrderSource, ads AdSource, tracking TrackingSource, concurrency int, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		Orders:              orders,
		Ads:                 ads,
		Tracking:            tracking,
		Resolver:            NewResolver(tracking != nil),
		TrackingConcurrency: concurrency,
		Log:                 log,
	}
}

type Request struct {
	Range domain.DateRange
	Level domain.AdLevel
}

// OrderView is the per-order line returned alongside the aggregates.
type OrderView struct {
	Platform      domain.Platform `json:"platform"`
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	CreatedAt     time.Time       `json:"createdAt"`
	Total         float64         `json:"total"`
	Status        domain.Status   `json:"status"`
	CarrierStatus string          `json:"carrierStatus,omitempty"`
	Attribution   AttributionKind `json:"attribution"`
	EntityID      string          `json:"entityId,omitempty"`
	Source        string          `json:"source,omitempty"`
}

type Report struct {
	Since            string         `json:"since"`
	Until            string         `json:"until"`
	Level            domain.AdLevel `json:"level"`
	TimeSeries       []*DayBucket   `json:"timeSeries"`
	AdsetPerformance []*Bucket      `json:"adsetPerformance"`
	TermPerformance  []TermRow      `json:"termPerformance"`
	Orders           []OrderView    `json:"orders"`

	Resolved []ResolvedOrder `json:"-"`
}

// Run fetches orders, ad entities and daily spend concurrently; any of them failing
// fails the run. Carrier lookups are best effort.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Level == "" {
		req.Level = domain.LevelAd
	}
	r := req.Range
	started := time.Now()

	var (
		orders   []domain.Order
		entities []domain.AdEntity
		spend    map[string]decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = p.Orders.ListOrders(gctx, r.Start(), r.End())
		if err != nil {
			return fmt.Errorf("fetch orders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		entities, err = p.Ads.AdEntities(gctx, req.Level, r)
		if err != nil {
			return fmt.Errorf("fetch ad entities: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		spend, err = p.Ads.DailySpend(gctx, r)
		if err != nil {
			return fmt.Errorf("fetch daily spend: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inRange := orders[:0:0]
	for _, o := range orders {
		if r.Contains(o.CreatedAt) {
			inRange = append(inRange, o)
		}
	}

	resolved, err := p.ResolveOrders(ctx, inRange)
	if err != nil {
		return nil, err
	}

	idx := NewEntityIndex(req.Level, entities)
	for i := range resolved {
		resolved[i].Attribution = p.Matcher.MatchIndexed(resolved[i].Order, idx)
	}

	rollup := BuildRollup(req.Level, entities, resolved)
	report := &Report{
		Since:            r.SinceDay(),
		Until:            r.UntilDay(),
		Level:            req.Level,
		TimeSeries:       BuildTimeSeries(r, resolved, spend),
		AdsetPerformance: rollup,
		TermPerformance:  FlattenTerms(rollup),
		Orders:           views(resolved),
		Resolved:         resolved,
	}

	p.Log.Info("performance report built",
		zap.String("since", report.Since), zap.String("until", report.Until),
		zap.String("level", string(req.Level)),
		zap.Int("orders", len(resolved)), zap.Int("dropped_out_of_range", len(orders)-len(inRange)),
		zap.Int("entities", len(entities)), zap.Duration("took", time.Since(started)))
	return report, nil
}

// ResolveOrders looks up carrier tracking for every order with an AWB, then resolves
// each order's status. Lookup failures are logged and the order falls back to
// storefront state.
func (p *Pipeline) ResolveOrders(ctx context.Context, orders []domain.Order) ([]ResolvedOrder, error) {
	records := p.track(ctx, orders)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]ResolvedOrder, len(orders))
	for i, o := range orders {
		rec := records[i]
		out[i] = ResolvedOrder{Order: o, Tracking: rec, Status: p.Resolver.Resolve(o, rec)}
	}
	return out, nil
}

func (p *Pipeline) track(ctx context.Context, orders []domain.Order) []*domain.TrackingRecord {
	records := make([]*domain.TrackingRecord, len(orders))
	if p.Tracking == nil {
		return records
	}

	limit := p.TrackingConcurrency
	if limit <= 0 {
		limit = defaultTrackingConcurrency
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed int
	)
	g.SetLimit(limit)
	for i, o := range orders {
		i, o := i, o
		awb := o.PrimaryAWB()
		if awb == "" {
			continue
		}
		g.Go(func() error {
			rec, err := p.Tracking.Track(ctx, awb)
			if err != nil {
				p.Log.Warn("tracking lookup failed",
					zap.String("order", o.DisplayName()), zap.String("awb", awb), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		p.Log.Info("tracking lookups degraded", zap.Int("failed", failed), zap.Int("orders", len(orders)))
	}
	return records
}

func views(resolved []ResolvedOrder) []OrderView {
	out := make([]OrderView, 0, len(resolved))
	for _, ro := range resolved {
		v := OrderView{
			Platform:    ro.Order.Platform,
			ID:          ro.Order.ID,
			Name:        ro.Order.DisplayName(),
			CreatedAt:   ro.Order.CreatedAt,
			Total:       domain.Money(ro.Order.TotalPrice),
			Status:      ro.Status,
			Attribution: ro.Attribution.Kind,
			EntityID:    ro.Attribution.EntityID,
			Source:      ro.Attribution.Source,
		}
		if ro.Tracking != nil {
			v.CarrierStatus = ro.Tracking.RawStatus
		}
		out = append(out, v)
	}
	return out
}
