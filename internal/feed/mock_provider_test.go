package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/shop-discovery/internal/domain"
)

// --- mocks ---

type fakeProvider struct {
	mu      sync.Mutex
	shops   []domain.ShopRecord
	err     error
	queries []domain.ShopQuery

	// When set, the first call signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
	blocked bool
}

func (f *fakeProvider) FetchShops(_ context.Context, q domain.ShopQuery) (domain.ShopPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	block := f.entered != nil && !f.blocked
	if block {
		f.blocked = true
	}
	f.mu.Unlock()

	if block {
		close(f.entered)
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.ShopPage{}, f.err
	}

	var matched []domain.ShopRecord
	for _, s := range f.shops {
		if q.Category != "" && s.Category != q.Category {
			continue
		}
		matched = append(matched, s)
	}
	total := len(matched)

	start := min(q.Offset, len(matched))
	end := min(start+q.PageSize, len(matched))
	out := make([]domain.ShopRecord, end-start)
	copy(out, matched[start:end])
	return domain.ShopPage{Shops: out, TotalAvailable: &total}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeProvider) lastQuery() domain.ShopQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeProvider) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]domain.Impression
	err     error

	// When set, the first call signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
	blocked bool
}

func (p *fakePublisher) PublishImpressions(_ context.Context, batch []domain.Impression) error {
	p.mu.Lock()
	block := p.entered != nil && !p.blocked
	if block {
		p.blocked = true
	}
	p.mu.Unlock()

	if block {
		close(p.entered)
		<-p.release
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, batch)
	return p.err
}

type readyProvider struct {
	fakeProvider
	readyErr error
}

func (r *readyProvider) CheckReadiness(context.Context) error { return r.readyErr }

// --- fixtures ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// shopsAround returns n shops of one category spaced 300 m apart heading
// north of patna, nearest first.
func shopsAround(prefix, category string, n int) []domain.ShopRecord {
	out := make([]domain.ShopRecord, n)
	for i := range out {
		c := domain.Coordinate{Lat: patna.Lat + float64(i+1)*0.0027, Lng: patna.Lng}
		out[i] = domain.ShopRecord{
			PrimaryID:   fmt.Sprintf("%s-%02d", prefix, i),
			DisplayName: fmt.Sprintf("%s %d", category, i),
			Category:    category,
			Locality:    "Patna",
			Coordinates: &c,
			Rating:      4,
		}
	}
	return out
}

func entryKeys(entries []Entry) []string {
	out := make([]string, len(entries))
	for i := range entries {
		out[i] = entries[i].Key
	}
	return out
}
