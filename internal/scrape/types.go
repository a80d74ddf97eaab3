// Package scrape implements the crawl pipeline: pacing, field extraction,
// result-page navigation, and run orchestration.
package scrape

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/dmaguire/leadharvester/internal/store"
)

// Record is one business as extracted from a rendered detail view. Empty
// strings and a nil Rating mean the field was not found; only Name is
// required, a record without it is discarded before it ever reaches a sink.
type Record struct {
	Name    string
	Phone   string
	Address string
	Rating  *float64
	// HasWebsite reports whether the detail view advertises a business
	// website. WebsiteURL is filled only when the URL itself was derivable
	// under the configured detection strategy.
	HasWebsite bool
	WebsiteURL string
	// SourceURL is the profile URL on the source site, attached by the
	// navigator from the browser location after opening the detail view.
	SourceURL string
}

// Selectors for the source site's local-results markup. The markup is
// unstable; every consumer treats a missing selector as a soft miss.
const (
	// ResultsMarker appears once the local-results block has rendered.
	ResultsMarker = ".rllt__details"
	// NextPageSelector is the pagination affordance.
	NextPageSelector = "a#pnnext"
)

// Page is the browser collaborator as seen by the navigator. One Page is
// owned by one crawl for its whole lifetime.
//
// Contract invariant: any navigation action (Navigate, OpenListing, Back,
// NextPage) invalidates previously observed listing indices. Callers must
// re-resolve via CountListings before each index access; implementations
// must re-query the live DOM on every CountListings/OpenListing call.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector renders or the timeout expires.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	CountListings(ctx context.Context) (int, error)
	// ListingName returns the display name shown on the listing card, known
	// before the detail view is opened.
	ListingName(ctx context.Context, index int) (string, error)
	OpenListing(ctx context.Context, index int) error
	// Content returns the rendered HTML of the current view.
	Content(ctx context.Context) (string, error)
	// Location returns the browser's current URL.
	Location(ctx context.Context) (string, error)
	Back(ctx context.Context) error
	HasNextPage(ctx context.Context) (bool, error)
	NextPage(ctx context.Context) error
}

// Sink receives each extracted record as soon as it exists. Navigators hand
// records over one at a time so a mid-page failure cannot lose earlier ones.
type Sink func(ctx context.Context, rec Record) error

// Upserter persists one record against the (location, category) it was found
// under. Implementations must contain their own failures: a failed upsert is
// logged and rolled back, never raised past the crawl.
type Upserter interface {
	Upsert(ctx context.Context, rec Record, location, category string) (store.UpsertOutcome, error)
}

// SearchURL builds the local-results query URL for one location and category.
func SearchURL(location, category string) string {
	q := url.QueryEscape(category + " near " + location)
	return "https://www.google.com/search?q=" + q + "&tbm=lcl"
}

// CityOf derives the city from a "City, ST" location string. It is the
// fallback identity component when a record has no source URL.
func CityOf(location string) string {
	city, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(city)
}
