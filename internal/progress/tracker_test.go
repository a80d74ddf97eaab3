package progress

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmaguire/leadharvester/internal/scrape"
	"github.com/dmaguire/leadharvester/internal/store"
)

func TestTrackerLifecycle(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	assert.Equal(t, "idle", tracker.Snapshot().State)

	runID := uuid.New()
	tracker.RunStarted(runID, 12)
	tracker.QueryStarted("Shorewood, IL", "plumber")
	tracker.Progress(store.RunCounters{BusinessesFound: 3, BusinessesWithoutWebsites: 1, NewBusinessesAdded: 2})

	snap := tracker.Snapshot()
	assert.Equal(t, runID.String(), snap.RunID)
	assert.Equal(t, "running", snap.State)
	assert.Equal(t, "Shorewood, IL", snap.CurrentLocation)
	assert.Equal(t, "plumber", snap.CurrentCategory)
	assert.Equal(t, 12, snap.QueriesTotal)
	assert.Equal(t, 1, snap.QueriesStarted)
	assert.Equal(t, 3, snap.Found)

	tracker.RunFinished(scrape.Summary{
		RunID:    runID,
		Status:   store.RunCompleted,
		Counters: store.RunCounters{BusinessesFound: 12, BusinessesWithoutWebsites: 4, NewBusinessesAdded: 3},
	})

	snap = tracker.Snapshot()
	assert.Equal(t, "completed", snap.State)
	assert.Empty(t, snap.CurrentLocation, "no current query once the run ends")
	assert.Equal(t, 12, snap.Found)
	assert.Equal(t, 4, snap.WithoutWebsites)
	assert.Equal(t, 3, snap.NewAdded)
}

func TestTrackerSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	tracker.RunStarted(uuid.New(), 4)

	before := tracker.Snapshot()
	tracker.Progress(store.RunCounters{BusinessesFound: 9})

	require.Zero(t, before.Found, "a snapshot must not track later updates")
	assert.Equal(t, 9, tracker.Snapshot().Found)
}
