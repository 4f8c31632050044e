package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"taxlyzer/internal/analytics"
	"taxlyzer/internal/cache"
	"taxlyzer/internal/core"
	"taxlyzer/internal/ports"
)

// openEnd stands in for "no upper bound" on date filters.
var openEnd = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// StatisticsService computes store-wide aggregates. Results are cached
// until the next write invalidates them.
type StatisticsService struct {
	store       ports.InvoiceReader
	concurrency int

	stats  *cache.LRUCache[core.GSTStatistics]
	trends *cache.LRUCache[core.TrendAnalysis]
	top    *cache.LRUCache[[]core.HSNSummary]
	slabs  *cache.LRUCache[[]core.SlabSummary]
}

// NewStatisticsService registers its caches with manager when it is not nil.
func NewStatisticsService(store ports.InvoiceReader, manager *cache.Manager, cacheSize int, ttl time.Duration, concurrency int) *StatisticsService {
	if concurrency < 1 {
		concurrency = 1
	}
	s := &StatisticsService{
		store:       store,
		concurrency: concurrency,
		stats:       cache.NewLRUCache[core.GSTStatistics]("gst_statistics", 1, ttl),
		trends:      cache.NewLRUCache[core.TrendAnalysis]("trend_analysis", cacheSize, ttl),
		top:         cache.NewLRUCache[[]core.HSNSummary]("top_hsn_codes", cacheSize, ttl),
		slabs:       cache.NewLRUCache[[]core.SlabSummary]("slab_distribution", 1, ttl),
	}
	if manager != nil {
		manager.Register(s.stats)
		manager.Register(s.trends)
		manager.Register(s.top)
		manager.Register(s.slabs)
	}
	return s
}

// LoadItems fetches the items of every invoice, at most concurrency at a
// time. Output order follows the input.
func LoadItems(ctx context.Context, store ports.InvoiceReader, invoices []core.Invoice, concurrency int) ([]core.InvoiceWithItems, error) {
	out := make([]core.InvoiceWithItems, len(invoices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, inv := range invoices {
		g.Go(func() error {
			items, err := store.ListItems(gctx, inv.ID)
			if err != nil {
				return fmt.Errorf("list items of %s: %w", inv.ID, err)
			}
			out[i] = core.InvoiceWithItems{Invoice: inv, Items: items}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StatisticsService) loadAll(ctx context.Context) ([]core.InvoiceWithItems, error) {
	invoices, err := s.store.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return LoadItems(ctx, s.store, invoices, s.concurrency)
}

// GSTStatistics aggregates every stored item with core.Aggregate.
func (s *StatisticsService) GSTStatistics(ctx context.Context) (core.GSTStatistics, error) {
	return s.stats.GetOrLoad(ctx, "all", func(ctx context.Context) (core.GSTStatistics, error) {
		all, err := s.loadAll(ctx)
		if err != nil {
			return core.GSTStatistics{}, err
		}
		if len(all) == 0 {
			return core.GSTStatistics{}, core.ErrNoInvoices
		}

		var items []core.LineItem
		for _, inv := range all {
			items = append(items, inv.Items...)
		}
		b := core.Aggregate(items)
		t := b.Totals()
		return core.GSTStatistics{
			TotalTax:     t.TaxAmount,
			TotalTaxable: t.TaxableAmount,
			TaxBySlab:    b,
			InvoiceCount: len(all),
			ItemCount:    len(items),
		}, nil
	})
}

// TrendAnalysis analyses invoices created in [start, end]. Zero times leave
// that side of the range open.
func (s *StatisticsService) TrendAnalysis(ctx context.Context, start, end time.Time, groupBy string) (core.TrendAnalysis, error) {
	group := analytics.ParseGroupBy(groupBy)
	if end.IsZero() {
		end = openEnd
	}
	if end.Before(start) {
		return core.TrendAnalysis{}, fmt.Errorf("%w: start after end", core.ErrInvalidDateRange)
	}

	key := start.UTC().Format(time.RFC3339) + "|" + end.UTC().Format(time.RFC3339) + "|" + group
	return s.trends.GetOrLoad(ctx, key, func(ctx context.Context) (core.TrendAnalysis, error) {
		invoices, err := s.store.ListInvoicesBetween(ctx, start, end)
		if err != nil {
			return core.TrendAnalysis{}, fmt.Errorf("list invoices: %w", err)
		}
		loaded, err := LoadItems(ctx, s.store, invoices, s.concurrency)
		if err != nil {
			return core.TrendAnalysis{}, err
		}
		return analytics.Analyze(loaded, group), nil
	})
}

// TopHSNCodes returns the most frequent HSN codes across all invoices.
func (s *StatisticsService) TopHSNCodes(ctx context.Context, limit int) ([]core.HSNSummary, error) {
	if limit <= 0 {
		limit = analytics.DefaultTopHSN
	}
	return s.top.GetOrLoad(ctx, strconv.Itoa(limit), func(ctx context.Context) ([]core.HSNSummary, error) {
		all, err := s.loadAll(ctx)
		if err != nil {
			return nil, err
		}
		return analytics.TopHSNCodes(all, limit), nil
	})
}

// SlabDistribution returns per-rate counts and amounts, ascending by rate.
func (s *StatisticsService) SlabDistribution(ctx context.Context) ([]core.SlabSummary, error) {
	return s.slabs.GetOrLoad(ctx, "all", func(ctx context.Context) ([]core.SlabSummary, error) {
		all, err := s.loadAll(ctx)
		if err != nil {
			return nil, err
		}
		return analytics.SlabDistribution(all), nil
	})
}
