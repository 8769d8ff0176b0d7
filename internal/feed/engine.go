// Package feed assembles ranked shop feeds: it fetches raw pools through the
// Cache Gate, cleans and ranks them, and tracks paging for scrolling consumers.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/shop-discovery/internal/cache"
	"github.com/couchcryptid/shop-discovery/internal/domain"
	"github.com/couchcryptid/shop-discovery/internal/observability"
)

// ErrFetchFailed wraps any failure of the shop source. The page can be retried.
var ErrFetchFailed = errors.New("could not load shops")

const (
	defaultLocateTimeout  = 10 * time.Second
	defaultMaxCategories  = 8
	defaultSamplePoolSize = 60
	impressionTimeout     = 2 * time.Second
)

// Options configures an Engine. Provider is required.
type Options struct {
	Provider domain.ShopProvider
	// Pools caches raw source pages. Nil disables caching.
	Pools    *cache.Gate[domain.ShopPage]
	CacheTTL time.Duration

	LocateTimeout  time.Duration
	Policy         PagePolicy
	MaxCategories  int
	SamplePoolSize int

	// Impressions receives promoted entries shown on page one. Optional.
	Impressions domain.ImpressionPublisher

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Engine turns a request into a ranked page or a category sample.
type Engine struct {
	provider       domain.ShopProvider
	pools          *cache.Gate[domain.ShopPage]
	cacheTTL       time.Duration
	locateTimeout  time.Duration
	policy         PagePolicy
	maxCategories  int
	samplePoolSize int
	impressions    domain.ImpressionPublisher
	clock          clockwork.Clock
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewEngine creates an Engine, filling unset options with defaults.
func NewEngine(opts Options) *Engine {
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = defaultLocateTimeout
	}
	if opts.MaxCategories <= 0 {
		opts.MaxCategories = defaultMaxCategories
	}
	if opts.SamplePoolSize <= 0 {
		opts.SamplePoolSize = defaultSamplePoolSize
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	return &Engine{
		provider:       opts.Provider,
		pools:          opts.Pools,
		cacheTTL:       opts.CacheTTL,
		locateTimeout:  opts.LocateTimeout,
		policy:         opts.Policy.normalized(),
		maxCategories:  opts.MaxCategories,
		samplePoolSize: opts.SamplePoolSize,
		impressions:    opts.Impressions,
		clock:          opts.Clock,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}
}

// Request describes one feed lookup. Locator may be nil when the caller has
// no position; ranking then skips the distance keys.
type Request struct {
	Locator domain.Locator
	Filter  Filter
	Page    int
}

// Entry is a ranked shop with its display strings.
type Entry struct {
	domain.RankedEntry
	DistanceText string `json:"distance_text,omitempty"`
	ETAText      string `json:"eta_text,omitempty"`
}

// FeedPage is one ranked page. An empty Entries slice with a nil error means the
// source genuinely has nothing for this filter.
type FeedPage struct {
	Location       domain.LocationResult `json:"-"`
	Entries        []Entry               `json:"entries"`
	Page           int                   `json:"page"`
	PageSize       int                   `json:"page_size"`
	HasMore        bool                  `json:"has_more"`
	TotalAvailable *int                  `json:"total_available,omitempty"`
}

// CategoryEntry is the representative shop for one category.
type CategoryEntry struct {
	Category string `json:"category"`
	Entry    Entry  `json:"entry"`
}

// CategoryFeed is the nearest shop per category, closest category first.
type CategoryFeed struct {
	Location   domain.LocationResult `json:"-"`
	Categories []CategoryEntry       `json:"categories"`
}

// Policy returns the page sizing in use.
func (e *Engine) Policy() PagePolicy { return e.policy }

// Discover returns one ranked page for req.
func (e *Engine) Discover(ctx context.Context, req Request) (FeedPage, error) {
	start := e.clock.Now()
	defer func() {
		e.metrics.FeedDuration.WithLabelValues("ranked").Observe(e.clock.Since(start).Seconds())
	}()

	number := max(req.Page, 1)
	page := Page{Number: number, Size: e.policy.SizeFor(number), Offset: e.policy.OffsetFor(number)}

	loc := e.Locate(ctx, req.Locator)
	pool, err := e.fetch(ctx, loc.Coordinate, req.Filter, page)
	if err != nil {
		e.metrics.FeedRequests.WithLabelValues("ranked", "error").Inc()
		return FeedPage{Location: loc}, err
	}

	entries := e.assemble(pool.Shops, req.Filter.RankingContext(loc.Coordinate))
	e.observeEntries("ranked", len(entries))
	if number == 1 {
		e.publishImpressions(ctx, req.Filter, number, entries)
	}

	return FeedPage{
		Location:       loc,
		Entries:        entries,
		Page:           number,
		PageSize:       page.Size,
		HasMore:        len(pool.Shops) >= page.Size,
		TotalAvailable: pool.TotalAvailable,
	}, nil
}

// NearbyByCategory returns the closest shop in each category around the caller.
func (e *Engine) NearbyByCategory(ctx context.Context, req Request) (CategoryFeed, error) {
	start := e.clock.Now()
	defer func() {
		e.metrics.FeedDuration.WithLabelValues("categories").Observe(e.clock.Since(start).Seconds())
	}()

	loc := e.Locate(ctx, req.Locator)
	page := Page{Number: 1, Size: e.samplePoolSize}
	// The sample spans every category, so the category filter is not sent upstream.
	filter := req.Filter
	filter.Category = ""

	pool, err := e.fetch(ctx, loc.Coordinate, filter, page)
	if err != nil {
		e.metrics.FeedRequests.WithLabelValues("categories", "error").Inc()
		return CategoryFeed{Location: loc}, err
	}

	entries := e.assemble(pool.Shops, filter.RankingContext(loc.Coordinate))
	ranked := make([]domain.RankedEntry, len(entries))
	byKey := make(map[string]Entry, len(entries))
	for i := range entries {
		ranked[i] = entries[i].RankedEntry
		byKey[entries[i].Key] = entries[i]
	}

	samples := domain.SampleByCategory(ranked, e.maxCategories)
	out := CategoryFeed{Location: loc, Categories: make([]CategoryEntry, 0, len(samples))}
	for _, s := range samples {
		entry, ok := byKey[s.Entry.Key]
		if !ok {
			entry = annotate(s.Entry)
		}
		out.Categories = append(out.Categories, CategoryEntry{Category: s.Category, Entry: entry})
	}
	e.observeEntries("categories", len(out.Categories))
	return out, nil
}

// Locate resolves the caller's position within the configured timeout.
func (e *Engine) Locate(ctx context.Context, loc domain.Locator) domain.LocationResult {
	res := domain.Locate(ctx, loc, e.locateTimeout, e.logger)
	e.metrics.LocationOutcomes.WithLabelValues(string(res.Status)).Inc()
	return res
}

// CheckReadiness reports whether the shop source can serve.
func (e *Engine) CheckReadiness(ctx context.Context) error {
	if e.provider == nil {
		return errors.New("no shop provider configured")
	}
	if checker, ok := e.provider.(ReadinessChecker); ok {
		return checker.CheckReadiness(ctx)
	}
	return nil
}

// InvalidatePage drops the cached pool for one filter and page.
func (e *Engine) InvalidatePage(ctx context.Context, c *domain.Coordinate, f Filter, p Page) {
	if e.pools == nil {
		return
	}
	if err := e.pools.Invalidate(ctx, NewPoolKey(c, f, p)); err != nil {
		e.logger.Warn("cache invalidation failed", "error", err)
	}
}

// fetch loads a raw pool page through the Cache Gate.
func (e *Engine) fetch(ctx context.Context, c *domain.Coordinate, f Filter, p Page) (domain.ShopPage, error) {
	if e.provider == nil {
		return domain.ShopPage{}, fmt.Errorf("%w: no shop provider configured", ErrFetchFailed)
	}

	key := NewPoolKey(c, f, p)
	compute := func(ctx context.Context) (domain.ShopPage, error) {
		return e.provider.FetchShops(ctx, key.Query(f))
	}

	var (
		pool domain.ShopPage
		err  error
	)
	if e.pools != nil {
		pool, err = e.pools.GetOrCompute(ctx, key, e.cacheTTL, compute)
	} else {
		pool, err = compute(ctx)
	}
	if err != nil {
		e.logger.Error("shop fetch failed", "page", p.Number, "category", f.Category, "error", err)
		return domain.ShopPage{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return pool, nil
}

// assemble drops invalid and duplicate records, ranks the rest and attaches
// display strings.
func (e *Engine) assemble(shops []domain.ShopRecord, rc domain.RankingContext) []Entry {
	valid := make([]domain.ShopRecord, 0, len(shops))
	for i := range shops {
		if err := domain.ValidateShop(shops[i]); err != nil {
			e.logger.Warn("dropping invalid shop record", "error", err)
			e.metrics.RecordsDropped.WithLabelValues("invalid").Inc()
			continue
		}
		valid = append(valid, shops[i])
	}

	unique := domain.Dedupe(valid)
	if dropped := len(valid) - len(unique); dropped > 0 {
		e.metrics.RecordsDropped.WithLabelValues("duplicate").Add(float64(dropped))
	}

	ranked := domain.Rank(unique, rc)
	out := make([]Entry, len(ranked))
	for i := range ranked {
		out[i] = annotate(ranked[i])
	}
	return out
}

func annotate(r domain.RankedEntry) Entry {
	entry := Entry{RankedEntry: r}
	if r.DistanceKm != nil {
		entry.DistanceText = domain.FormatDistance(*r.DistanceKm)
		entry.ETAText = domain.FormatETA(domain.TravelMinutes(*r.DistanceKm))
	}
	return entry
}

func (e *Engine) observeEntries(feed string, n int) {
	outcome := "success"
	if n == 0 {
		outcome = "empty"
	}
	e.metrics.FeedRequests.WithLabelValues(feed, outcome).Inc()
	e.metrics.FeedEntries.Observe(float64(n))
}

// publishImpressions sends promoted entries to the impression sink. Failures
// are logged and never fail the feed.
func (e *Engine) publishImpressions(ctx context.Context, f Filter, page int, entries []Entry) {
	if e.impressions == nil {
		return
	}
	f = f.Normalize()
	now := e.clock.Now().UTC()

	var batch []domain.Impression
	for i := range entries {
		shop := entries[i].Shop
		if !shop.IsPaid && !shop.IsFeatured {
			continue
		}
		batch = append(batch, domain.Impression{
			ID:         uuid.NewString(),
			ShopKey:    entries[i].Key,
			ShopName:   shop.DisplayName,
			Category:   shop.Category,
			IsPaid:     shop.IsPaid,
			IsFeatured: shop.IsFeatured,
			Position:   i + 1,
			Page:       page,
			Filter:     f.Category,
			Locality:   f.Locality,
			DistanceKm: entries[i].DistanceKm,
			ServedAt:   now,
		})
	}
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), impressionTimeout)
	defer cancel()
	if err := e.impressions.PublishImpressions(ctx, batch); err != nil {
		e.metrics.ImpressionErrors.Inc()
		e.logger.Warn("publishing impressions failed", "count", len(batch), "error", err)
		return
	}
	e.metrics.ImpressionsPublished.Add(float64(len(batch)))
}
