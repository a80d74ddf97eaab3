package scrape

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage simulates the source site: a fixed set of result pages, each a list
// of listing detail documents. Opening a listing switches the current view to
// its detail document; Back restores the results view.
type fakePage struct {
	pages       [][]fakeListing
	pageIndex   int
	detailOpen  int // -1 when on the results view
	hasResults  bool
	navigated   []string
	detailFails map[int]bool // listings whose detail view never renders
	openErr     error
}

type fakeListing struct {
	name string
	html string
	url  string
}

func newFakePage(pages [][]fakeListing) *fakePage {
	return &fakePage{pages: pages, detailOpen: -1, hasResults: true}
}

func (f *fakePage) listings() []fakeListing { return f.pages[f.pageIndex] }

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	f.pageIndex = 0
	f.detailOpen = -1
	return nil
}

func (f *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	switch selector {
	case ResultsMarker:
		if !f.hasResults {
			return errors.New("results marker never rendered")
		}
	case DetailMarker:
		if f.detailFails[f.detailOpen] {
			return errors.New("detail marker never rendered")
		}
	}
	return nil
}

func (f *fakePage) CountListings(context.Context) (int, error) {
	return len(f.listings()), nil
}

func (f *fakePage) ListingName(_ context.Context, index int) (string, error) {
	if index >= len(f.listings()) {
		return "", fmt.Errorf("index %d out of range", index)
	}
	return f.listings()[index].name, nil
}

func (f *fakePage) OpenListing(_ context.Context, index int) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.detailOpen = index
	return nil
}

func (f *fakePage) Content(context.Context) (string, error) {
	if f.detailOpen < 0 {
		return "", errors.New("not on a detail view")
	}
	return f.listings()[f.detailOpen].html, nil
}

func (f *fakePage) Location(context.Context) (string, error) {
	if f.detailOpen < 0 {
		return "", errors.New("not on a detail view")
	}
	return f.listings()[f.detailOpen].url, nil
}

func (f *fakePage) Back(context.Context) error {
	f.detailOpen = -1
	return nil
}

func (f *fakePage) HasNextPage(context.Context) (bool, error) {
	return f.pageIndex < len(f.pages)-1, nil
}

func (f *fakePage) NextPage(context.Context) error {
	if f.pageIndex >= len(f.pages)-1 {
		return errors.New("no next page")
	}
	f.pageIndex++
	f.detailOpen = -1
	return nil
}

var _ Page = (*fakePage)(nil)

func instantPacer() *Pacer {
	p := NewPacer(PacerConfig{RequestsPerSession: 1000}, nil)
	p.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return p
}

func newTestNavigator(page Page, cfg NavigatorConfig) *Navigator {
	return NewNavigator(page, instantPacer(), NewExtractor(WebsitePresence, nil), cfg, nil)
}

func detailHTML(phone string) string {
	return fmt.Sprintf(`<div role="main"><a href="tel:%s">Call</a></div>`, phone)
}

func TestCrawlExtractsEveryListing(t *testing.T) {
	page := newFakePage([][]fakeListing{{
		{name: "Joe's Plumbing", html: detailHTML("815-555-0001"), url: "https://g.example/joes"},
		{name: "Acme Electric", html: detailHTML("815-555-0002"), url: "https://g.example/acme"},
	}})
	nav := newTestNavigator(page, NavigatorConfig{MaxPages: 1})

	var collector Collector
	require.NoError(t, nav.Crawl(context.Background(), "Shorewood, IL", "plumber", collector.Sink()))

	records := collector.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "Joe's Plumbing", records[0].Name)
	assert.Equal(t, "815-555-0001", records[0].Phone)
	assert.Equal(t, "https://g.example/joes", records[0].SourceURL)
	assert.Equal(t, "Acme Electric", records[1].Name)

	require.Len(t, page.navigated, 1)
	assert.Equal(t, SearchURL("Shorewood, IL", "plumber"), page.navigated[0])
}

func TestCrawlNoResultsIsNotAnError(t *testing.T) {
	page := newFakePage([][]fakeListing{{}})
	page.hasResults = false
	nav := newTestNavigator(page, NavigatorConfig{MaxPages: 1})

	var collector Collector
	require.NoError(t, nav.Crawl(context.Background(), "Minooka, IL", "dentist", collector.Sink()))
	assert.Empty(t, collector.Records())
}

func TestCrawlSkipsFailedListing(t *testing.T) {
	page := newFakePage([][]fakeListing{{
		{name: "First", html: detailHTML("815-555-0001"), url: "https://g.example/1"},
		{name: "Broken", html: "", url: ""},
		{name: "Third", html: detailHTML("815-555-0003"), url: "https://g.example/3"},
	}})
	page.detailFails = map[int]bool{1: true}
	nav := newTestNavigator(page, NavigatorConfig{MaxPages: 1})

	var collector Collector
	require.NoError(t, nav.Crawl(context.Background(), "Joliet, IL", "lawyer", collector.Sink()))

	records := collector.Records()
	require.Len(t, records, 2, "the broken listing is skipped, not fatal")
	assert.Equal(t, "First", records[0].Name)
	assert.Equal(t, "Third", records[1].Name)
}

func TestCrawlFollowsPaginationUpToMaxPages(t *testing.T) {
	page := newFakePage([][]fakeListing{
		{{name: "P1", html: detailHTML("815-555-0001"), url: "u1"}},
		{{name: "P2", html: detailHTML("815-555-0002"), url: "u2"}},
		{{name: "P3", html: detailHTML("815-555-0003"), url: "u3"}},
	})
	nav := newTestNavigator(page, NavigatorConfig{MaxPages: 2})

	var collector Collector
	require.NoError(t, nav.Crawl(context.Background(), "Plainfield, IL", "contractor", collector.Sink()))

	records := collector.Records()
	require.Len(t, records, 2, "third page lies past the pagination cap")
	assert.Equal(t, "P1", records[0].Name)
	assert.Equal(t, "P2", records[1].Name)
}

func TestCrawlCapsListingsPerPage(t *testing.T) {
	var listings []fakeListing
	for i := 0; i < 25; i++ {
		listings = append(listings, fakeListing{
			name: fmt.Sprintf("Biz %d", i),
			html: detailHTML("815-555-0000"),
			url:  fmt.Sprintf("u%d", i),
		})
	}
	page := newFakePage([][]fakeListing{listings})
	nav := newTestNavigator(page, NavigatorConfig{MaxPages: 1, ListingsPerPage: 20})

	var collector Collector
	require.NoError(t, nav.Crawl(context.Background(), "Naperville, IL", "restaurant", collector.Sink()))
	assert.Len(t, collector.Records(), 20)
}

func TestCrawlPacesEveryNavigationRequest(t *testing.T) {
	page := newFakePage([][]fakeListing{
		{
			{name: "First", html: detailHTML("815-555-0001"), url: "u1"},
			{name: "Second", html: detailHTML("815-555-0002"), url: "u2"},
			{name: "Third", html: detailHTML("815-555-0003"), url: "u3"},
		},
		{{name: "Fourth", html: detailHTML("815-555-0004"), url: "u4"}},
	})

	pacer, slept := newTestPacer(PacerConfig{RequestsPerSession: 1000})
	nav := NewNavigator(page, pacer, NewExtractor(WebsitePresence, nil), NavigatorConfig{MaxPages: 2}, nil)

	var collector Collector
	require.NoError(t, nav.Crawl(context.Background(), "Shorewood, IL", "plumber", collector.Sink()))
	require.Len(t, collector.Records(), 4)

	// One wait for the search, one per listing click, one for the pagination
	// step: the target rate-limits on raw request volume, so every navigation
	// counts.
	assert.Len(t, *slept, 6)
	assert.Equal(t, 6, pacer.requests)
}

func TestCrawlPropagatesSinkFailure(t *testing.T) {
	page := newFakePage([][]fakeListing{{
		{name: "First", html: detailHTML("815-555-0001"), url: "u1"},
		{name: "Second", html: detailHTML("815-555-0002"), url: "u2"},
	}})
	nav := newTestNavigator(page, NavigatorConfig{MaxPages: 1})

	refused := errors.New("store unavailable")
	err := nav.Crawl(context.Background(), "Channahon, IL", "plumber",
		func(context.Context, Record) error { return refused })

	require.Error(t, err)
	assert.ErrorIs(t, err, refused)
}

func TestCrawlPropagatesContextCancellation(t *testing.T) {
	page := newFakePage([][]fakeListing{{
		{name: "First", html: detailHTML("815-555-0001"), url: "u1"},
	}})
	nav := newTestNavigator(page, NavigatorConfig{MaxPages: 1})

	ctx, cancel := context.WithCancel(context.Background())
	var collector Collector
	sink := func(ctx context.Context, rec Record) error {
		cancel() // simulate an interrupt mid-crawl
		return collector.Sink()(ctx, rec)
	}

	err := nav.Crawl(ctx, "Shorewood, IL", "plumber", sink)
	_ = err // cancellation may surface on any subsequent page call
	assert.Len(t, collector.Records(), 1, "the record handed over before the interrupt stands")
}
