package feed

import (
	"context"
	"sync"

	"github.com/couchcryptid/shop-discovery/internal/domain"
)

// Session is one scrolling feed: a filter, a cursor and the entries shown so
// far. Pages are appended in order and a shop never appears twice.
type Session struct {
	engine  *Engine
	locator domain.Locator
	cursor  *Cursor

	mu       sync.Mutex
	filter   Filter
	location *domain.LocationResult
	entries  []Entry
	seen     *domain.Seen
	fetched  []Page
}

// NewSession starts an empty feed. The caller's position is resolved once, on
// the first page.
func (e *Engine) NewSession(locator domain.Locator, filter Filter) *Session {
	return &Session{
		engine:  e,
		locator: locator,
		cursor:  NewCursor(e.policy),
		filter:  filter.Normalize(),
		seen:    domain.NewSeen(),
	}
}

// LoadMore fetches the next page and returns only the entries it added.
// It fails with ErrFetchInFlight while a page is loading, ErrNoMorePages once
// the feed is exhausted and ErrFetchFailed when the source fails, in which case
// the same page is retried next time.
func (s *Session) LoadMore(ctx context.Context) ([]Entry, error) {
	page, err := s.cursor.Advance()
	if err != nil {
		return nil, err
	}

	loc := s.resolveLocation(ctx)

	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()

	pool, err := s.engine.fetch(ctx, loc.Coordinate, filter, page)
	if err != nil {
		s.cursor.RecordFailure(page)
		return nil, err
	}
	if err := s.cursor.RecordFetch(page, len(pool.Shops)); err != nil {
		return nil, err
	}

	ranked := s.engine.assemble(pool.Shops, filter.RankingContext(loc.Coordinate))
	if page.Number == 1 && s.cursor.Current(page) {
		s.engine.publishImpressions(ctx, filter, page.Number, ranked)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// SetFilter and Refresh reset the cursor under s.mu.
	if !s.cursor.Current(page) {
		return nil, ErrStalePage
	}
	s.fetched = append(s.fetched, page)
	added := make([]Entry, 0, len(ranked))
	for i := range ranked {
		if s.seen.AddIfNotExists(ranked[i].Key) {
			added = append(added, ranked[i])
		} else {
			s.engine.metrics.RecordsDropped.WithLabelValues("duplicate").Inc()
		}
	}
	s.entries = append(s.entries, added...)
	s.engine.observeEntries("ranked", len(added))
	return added, nil
}

// SetFilter applies a new filter. When it differs from the current one the
// cursor is reset, accumulated entries are cleared, cached pages of the old
// filter are invalidated and page one of the new filter is loaded.
func (s *Session) SetFilter(ctx context.Context, f Filter) ([]Entry, error) {
	f = f.Normalize()

	s.mu.Lock()
	if f == s.filter {
		s.mu.Unlock()
		return nil, nil
	}
	old, stale := s.filter, s.fetched
	s.cursor.Reset()
	s.filter = f
	s.entries = nil
	s.seen = domain.NewSeen()
	s.fetched = nil
	var coord *domain.Coordinate
	if s.location != nil {
		coord = s.location.Coordinate
	}
	s.mu.Unlock()

	for _, p := range stale {
		s.engine.InvalidatePage(ctx, coord, old, p)
	}
	return s.LoadMore(ctx)
}

// Refresh reloads the current filter from page one, bypassing cached pages.
func (s *Session) Refresh(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	stale := s.fetched
	filter := s.filter
	s.cursor.Reset()
	s.entries = nil
	s.seen = domain.NewSeen()
	s.fetched = nil
	var coord *domain.Coordinate
	if s.location != nil {
		coord = s.location.Coordinate
	}
	s.mu.Unlock()

	for _, p := range stale {
		s.engine.InvalidatePage(ctx, coord, filter, p)
	}
	return s.LoadMore(ctx)
}

// Entries returns a copy of everything loaded so far.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Filter returns the active filter.
func (s *Session) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// HasMore reports whether another page can be loaded.
func (s *Session) HasMore() bool { return s.cursor.HasMore() }

// Location returns the resolved caller position, if lookup has happened.
func (s *Session) Location() (domain.LocationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return domain.LocationResult{}, false
	}
	return *s.location, true
}

func (s *Session) resolveLocation(ctx context.Context) domain.LocationResult {
	s.mu.Lock()
	if s.location != nil {
		loc := *s.location
		s.mu.Unlock()
		return loc
	}
	s.mu.Unlock()

	loc := s.engine.Locate(ctx, s.locator)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		s.location = &loc
	}
	return *s.location
}
