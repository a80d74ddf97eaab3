package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RunStatus mirrors the scrape_runs status column.
type RunStatus string

// Run statuses persisted in scrape_runs.status.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Business models one row of the businesses table. Optional columns are
// pointers so that absent extraction results persist as NULL, not "".
type Business struct {
	ID       int64
	Name     string
	Phone    *string
	Address  *string
	City     string
	Category string
	// SourceURL is the canonical profile URL on the source site. When
	// non-empty it is the business's identity key; otherwise identity
	// collapses to (Name, City).
	SourceURL  *string
	HasWebsite bool
	WebsiteURL *string
	// Rating holds the source's star rating in [0,5].
	Rating *float64
	// LastScraped advances monotonically on every successful save.
	LastScraped time.Time
}

// RunCounters aggregates the per-run totals reported in the summary.
type RunCounters struct {
	BusinessesFound           int
	BusinessesWithoutWebsites int
	NewBusinessesAdded        int
}

// CrawlRun models one row of the scrape_runs table.
type CrawlRun struct {
	ID        uuid.UUID
	StartTime time.Time
	// EndTime is nil while the run is still in the running state.
	EndTime  *time.Time
	Status   RunStatus
	Counters RunCounters
	// ErrorLog optionally stores the failure text of a partial/failed run.
	ErrorLog *string
}

// Lead is the flat projection exported to the sales CSV.
type Lead struct {
	Name        string
	Phone       string
	Address     string
	City        string
	Category    string
	LastScraped time.Time
}

// UpsertOutcome reports what a single upsert did, so the caller can keep
// its found/new/without-website counters without re-reading the row.
type UpsertOutcome struct {
	Created    bool
	HasWebsite bool
}
