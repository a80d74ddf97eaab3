package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmaguire/leadharvester/internal/store"
)

func TestStartRunInsertsRunningRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runs, err := NewRunStore(mock)
	require.NoError(t, err)

	fixed := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	runs.newID = func() uuid.UUID { return fixed }
	startedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO scrape_runs").
		WithArgs(fixed, startedAt, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := runs.StartRun(context.Background(), startedAt)
	require.NoError(t, err)
	assert.Equal(t, fixed, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRunWritesTerminalState(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runs, err := NewRunStore(mock)
	require.NoError(t, err)

	id := uuid.New()
	finishedAt := time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC)
	counters := store.RunCounters{
		BusinessesFound:           12,
		BusinessesWithoutWebsites: 4,
		NewBusinessesAdded:        3,
	}
	errText := "context canceled"

	mock.ExpectExec("UPDATE scrape_runs").
		WithArgs(finishedAt, 12, 4, 3, store.RunPartial, &errText, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = runs.FinishRun(context.Background(), id, finishedAt, store.RunPartial, counters, &errText)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRunUnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runs, err := NewRunStore(mock)
	require.NoError(t, err)

	id := uuid.New()
	mock.ExpectExec("UPDATE scrape_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = runs.FinishRun(context.Background(), id, time.Now(), store.RunCompleted, store.RunCounters{}, nil)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
