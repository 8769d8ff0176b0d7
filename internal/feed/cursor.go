package feed

import (
	"errors"
	"sync"
)

var (
	// ErrFetchInFlight is returned by Advance while a previous page is still loading.
	ErrFetchInFlight = errors.New("fetch already in flight")
	// ErrNoMorePages is returned by Advance after a short page.
	ErrNoMorePages = errors.New("no more pages")
	// ErrStalePage is returned when a fetch completes after the cursor was reset.
	ErrStalePage = errors.New("page belongs to a previous filter")
)

// PagePolicy sizes pages. The first page is smaller so the first paint is fast.
type PagePolicy struct {
	FirstPageSize int
	PageSize      int
}

// DefaultPagePolicy returns 5 shops on page one and 15 on every later page.
func DefaultPagePolicy() PagePolicy {
	return PagePolicy{FirstPageSize: 5, PageSize: 15}
}

func (p PagePolicy) normalized() PagePolicy {
	d := DefaultPagePolicy()
	if p.FirstPageSize <= 0 {
		p.FirstPageSize = d.FirstPageSize
	}
	if p.PageSize <= 0 {
		p.PageSize = d.PageSize
	}
	return p
}

// SizeFor returns the page size for the 1-based page number.
func (p PagePolicy) SizeFor(page int) int {
	p = p.normalized()
	if page <= 1 {
		return p.FirstPageSize
	}
	return p.PageSize
}

// OffsetFor returns how many records precede the 1-based page number.
func (p PagePolicy) OffsetFor(page int) int {
	p = p.normalized()
	if page <= 1 {
		return 0
	}
	return p.FirstPageSize + (page-2)*p.PageSize
}

// Page is a ticket for one fetch handed out by Cursor.Advance.
type Page struct {
	Number int
	Size   int
	Offset int

	generation uint64
}

// Cursor tracks incremental page consumption for one feed. At most one fetch
// may be in flight; Reset invalidates any outstanding ticket.
type Cursor struct {
	mu         sync.Mutex
	policy     PagePolicy
	next       int
	hasMore    bool
	inFlight   bool
	generation uint64
}

// NewCursor returns a cursor positioned before page one.
func NewCursor(policy PagePolicy) *Cursor {
	return &Cursor{
		policy:  policy.normalized(),
		next:    1,
		hasMore: true,
	}
}

// Advance claims the next page. It fails with ErrFetchInFlight while another
// page is outstanding and with ErrNoMorePages once the feed is exhausted.
func (c *Cursor) Advance() (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return Page{}, ErrFetchInFlight
	}
	if !c.hasMore {
		return Page{}, ErrNoMorePages
	}
	c.inFlight = true
	return Page{
		Number:     c.next,
		Size:       c.policy.SizeFor(c.next),
		Offset:     c.policy.OffsetFor(c.next),
		generation: c.generation,
	}, nil
}

// RecordFetch completes p with the number of records the source returned.
// A page shorter than its size marks the feed exhausted.
func (c *Cursor) RecordFetch(p Page, resultCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.generation != c.generation {
		return ErrStalePage
	}
	c.inFlight = false
	c.hasMore = resultCount >= p.Size
	c.next = p.Number + 1
	return nil
}

// RecordFailure releases p without moving the cursor, so the same page is
// retried on the next Advance.
func (c *Cursor) RecordFailure(p Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.generation == c.generation {
		c.inFlight = false
	}
}

// Reset rewinds to page one and orphans any outstanding page.
func (c *Cursor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.next = 1
	c.hasMore = true
	c.inFlight = false
}

// Current reports whether p was handed out since the last Reset.
func (c *Cursor) Current(p Page) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return p.generation == c.generation
}

// HasMore reports whether Advance can hand out another page.
func (c *Cursor) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// InFlight reports whether a page is outstanding.
func (c *Cursor) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// NextPage returns the page number the next Advance will claim.
func (c *Cursor) NextPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
