package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmaguire/leadharvester/internal/store"
)

const (
	insertRun = `
		INSERT INTO scrape_runs (id, start_time, status)
		VALUES ($1, $2, $3)`

	finishRun = `
		UPDATE scrape_runs
		SET end_time = $1,
			businesses_found = $2,
			businesses_without_websites = $3,
			new_businesses_added = $4,
			status = $5,
			error_log = $6
		WHERE id = $7`
)

// RunStore implements store.RunLedger on Postgres.
type RunStore struct {
	pool  dbPool
	newID func() uuid.UUID
}

var _ store.RunLedger = (*RunStore)(nil)

// NewRunStore wraps an existing pool (pgxmock in tests).
func NewRunStore(pool dbPool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool, newID: uuid.New}, nil
}

// StartRun creates the ledger row in the running state and returns its id.
func (s *RunStore) StartRun(ctx context.Context, startedAt time.Time) (uuid.UUID, error) {
	id := s.newID()
	if _, err := s.pool.Exec(ctx, insertRun, id, startedAt, store.RunRunning); err != nil {
		return uuid.Nil, fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// FinishRun performs the run's single terminal transition.
func (s *RunStore) FinishRun(
	ctx context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	counters store.RunCounters,
	errLog *string,
) error {
	tag, err := s.pool.Exec(ctx, finishRun,
		finishedAt,
		counters.BusinessesFound,
		counters.BusinessesWithoutWebsites,
		counters.NewBusinessesAdded,
		status,
		errLog,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run: %w", store.ErrNotFound)
	}
	return nil
}
