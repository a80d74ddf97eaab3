package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunLedger records the lifecycle of one crawl invocation. StartRun creates
// the row in the running state; FinishRun performs the single terminal
// transition.
type RunLedger interface {
	StartRun(ctx context.Context, startedAt time.Time) (uuid.UUID, error)
	FinishRun(
		ctx context.Context,
		id uuid.UUID,
		finishedAt time.Time,
		status RunStatus,
		counters RunCounters,
		errLog *string,
	) error
}

// LeadRepository reads the sales-lead projection: businesses recorded without
// a website, most recently scraped first, name as the tiebreak. An empty city
// means no city filter.
type LeadRepository interface {
	LeadsWithoutWebsite(ctx context.Context, city string) ([]Lead, error)
}
