// Package progress tracks a crawl's live state so the HTTP surface can
// report it while the run is in flight.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmaguire/leadharvester/internal/scrape"
	"github.com/dmaguire/leadharvester/internal/store"
)

// Snapshot is one consistent read of the crawl state, shaped for the
// /status endpoint.
type Snapshot struct {
	RunID           string    `json:"run_id,omitempty"`
	State           string    `json:"state"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	CurrentLocation string    `json:"current_location,omitempty"`
	CurrentCategory string    `json:"current_category,omitempty"`
	QueriesTotal    int       `json:"queries_total"`
	QueriesStarted  int       `json:"queries_started"`
	Found           int       `json:"businesses_found"`
	WithoutWebsites int       `json:"businesses_without_websites"`
	NewAdded        int       `json:"new_businesses_added"`
}

// Tracker implements scrape.Observer over a mutex-guarded snapshot. Updates
// never block the crawl; readers get a copy.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

var _ scrape.Observer = (*Tracker)(nil)

// NewTracker builds a Tracker in the idle state.
func NewTracker() *Tracker {
	return &Tracker{
		snap: Snapshot{State: "idle"},
		now:  time.Now,
	}
}

// RunStarted marks the beginning of a run.
func (t *Tracker) RunStarted(runID uuid.UUID, queries int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{
		RunID:        runID.String(),
		State:        "running",
		StartedAt:    t.now(),
		QueriesTotal: queries,
	}
}

// QueryStarted records the (location, category) pair currently being crawled.
func (t *Tracker) QueryStarted(location, category string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.CurrentLocation = location
	t.snap.CurrentCategory = category
	t.snap.QueriesStarted++
}

// Progress folds in the latest run counters.
func (t *Tracker) Progress(counters store.RunCounters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyCounters(counters)
}

// RunFinished records the terminal state and final counters.
func (t *Tracker) RunFinished(summary scrape.Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.State = string(summary.Status)
	t.snap.CurrentLocation = ""
	t.snap.CurrentCategory = ""
	t.applyCounters(summary.Counters)
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

func (t *Tracker) applyCounters(counters store.RunCounters) {
	t.snap.Found = counters.BusinessesFound
	t.snap.WithoutWebsites = counters.BusinessesWithoutWebsites
	t.snap.NewAdded = counters.NewBusinessesAdded
}
