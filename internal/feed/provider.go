package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/shop-discovery/internal/domain"
	"github.com/couchcryptid/shop-discovery/internal/observability"
)

// ReadinessChecker is implemented by sources that can report whether they are
// able to serve.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// NamedProvider labels a source for logs and metrics.
type NamedProvider struct {
	Name     string
	Provider domain.ShopProvider
}

// MultiProvider queries several sources concurrently and concatenates their
// pages in source order. Put the system of record first so its copy of a shop
// survives deduplication. The fetch succeeds when at least one source answers.
type MultiProvider struct {
	sources []NamedProvider
	logger  *slog.Logger
}

// NewMultiProvider creates a provider over sources, queried in the given order.
func NewMultiProvider(logger *slog.Logger, sources ...NamedProvider) *MultiProvider {
	return &MultiProvider{sources: sources, logger: logger}
}

func (m *MultiProvider) FetchShops(ctx context.Context, q domain.ShopQuery) (domain.ShopPage, error) {
	pages := make([]domain.ShopPage, len(m.sources))
	errs := make([]error, len(m.sources))

	var g errgroup.Group
	for i, src := range m.sources {
		g.Go(func() error {
			page, err := src.Provider.FetchShops(ctx, q)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name, err)
				return nil
			}
			pages[i] = page
			return nil
		})
	}
	_ = g.Wait()

	var (
		out      domain.ShopPage
		combined error
		answered int
		total    int
		exact    = true
	)
	for i, src := range m.sources {
		if errs[i] != nil {
			combined = multierr.Append(combined, errs[i])
			m.logger.Warn("shop source failed", "source", src.Name, "error", errs[i])
			continue
		}
		answered++
		out.Shops = append(out.Shops, pages[i].Shops...)
		if pages[i].TotalAvailable != nil {
			total += *pages[i].TotalAvailable
		} else {
			exact = false
		}
	}

	if answered == 0 && combined != nil {
		return domain.ShopPage{}, combined
	}
	if exact && answered == len(m.sources) && answered > 0 {
		out.TotalAvailable = &total
	}
	return out, nil
}

// CheckReadiness reports ready when any source that can check itself is ready.
// Sources without a check count as ready.
func (m *MultiProvider) CheckReadiness(ctx context.Context) error {
	if len(m.sources) == 0 {
		return errors.New("no shop sources configured")
	}
	var combined error
	for _, src := range m.sources {
		checker, ok := src.Provider.(ReadinessChecker)
		if !ok {
			return nil
		}
		err := checker.CheckReadiness(ctx)
		if err == nil {
			return nil
		}
		combined = multierr.Append(combined, fmt.Errorf("%s: %w", src.Name, err))
	}
	return combined
}

// instrumentedProvider records request counts and latency for one source.
type instrumentedProvider struct {
	name    string
	inner   domain.ShopProvider
	metrics *observability.Metrics
}

// Instrument wraps p so every fetch is counted and timed under name.
func Instrument(name string, p domain.ShopProvider, metrics *observability.Metrics) domain.ShopProvider {
	return &instrumentedProvider{name: name, inner: p, metrics: metrics}
}

func (p *instrumentedProvider) FetchShops(ctx context.Context, q domain.ShopQuery) (domain.ShopPage, error) {
	start := time.Now()
	page, err := p.inner.FetchShops(ctx, q)
	p.metrics.ProviderDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.ProviderRequests.WithLabelValues(p.name, "error").Inc()
		return page, err
	}
	p.metrics.ProviderRequests.WithLabelValues(p.name, "success").Inc()
	return page, nil
}

func (p *instrumentedProvider) CheckReadiness(ctx context.Context) error {
	if checker, ok := p.inner.(ReadinessChecker); ok {
		return checker.CheckReadiness(ctx)
	}
	return nil
}
