package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/dmaguire/leadharvester/internal/scrape"
	"github.com/dmaguire/leadharvester/internal/store"
)

const (
	selectBySourceURL = `SELECT id FROM businesses WHERE source_url = $1`
	selectByNameCity  = `SELECT id FROM businesses WHERE name = $1 AND city = $2`

	insertBusiness = `
		INSERT INTO businesses
			(name, phone, address, city, category, source_url,
			 has_website, website_url, google_rating, last_scraped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`

	updateBusiness = `
		UPDATE businesses
		SET name = $1, phone = $2, address = $3,
			has_website = $4, website_url = $5,
			google_rating = $6, last_scraped = NOW()
		WHERE id = $7`

	selectLeads = `
		SELECT name, COALESCE(phone, ''), COALESCE(address, ''), city, category, last_scraped
		FROM businesses
		WHERE has_website = false`
)

// BusinessStore persists extracted records with deduplication. It implements
// scrape.Upserter and store.LeadRepository.
type BusinessStore struct {
	pool   dbPool
	logger *zap.Logger
}

var _ scrape.Upserter = (*BusinessStore)(nil)
var _ store.LeadRepository = (*BusinessStore)(nil)

// NewBusinessStore wraps an existing pool (pgxmock in tests).
func NewBusinessStore(pool dbPool, logger *zap.Logger) (*BusinessStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusinessStore{pool: pool, logger: logger}, nil
}

// Upsert maps one extracted record onto a business row. Identity resolution:
// a non-empty SourceURL is looked up first; only a record without one falls
// back to (name, city). The whole operation runs in one transaction; on any
// failure it is rolled back and the error is reported to the caller, who by
// contract never lets it abort the crawl.
func (s *BusinessStore) Upsert(
	ctx context.Context,
	rec scrape.Record,
	location, category string,
) (store.UpsertOutcome, error) {
	city := scrape.CityOf(location)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.UpsertOutcome{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	var id int64
	if rec.SourceURL != "" {
		err = tx.QueryRow(ctx, selectBySourceURL, rec.SourceURL).Scan(&id)
	} else {
		err = tx.QueryRow(ctx, selectByNameCity, rec.Name, city).Scan(&id)
	}

	created := false
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		created = true
		_, err = tx.Exec(ctx, insertBusiness,
			rec.Name,
			nullStr(rec.Phone),
			nullStr(rec.Address),
			city,
			category,
			nullStr(rec.SourceURL),
			rec.HasWebsite,
			nullStr(rec.WebsiteURL),
			rec.Rating,
		)
		if err != nil {
			s.logUpsertFailure(rec, err)
			return store.UpsertOutcome{}, fmt.Errorf("insert business: %w", err)
		}
	case err != nil:
		s.logUpsertFailure(rec, err)
		return store.UpsertOutcome{}, fmt.Errorf("lookup business: %w", err)
	default:
		_, err = tx.Exec(ctx, updateBusiness,
			rec.Name,
			nullStr(rec.Phone),
			nullStr(rec.Address),
			rec.HasWebsite,
			nullStr(rec.WebsiteURL),
			rec.Rating,
			id,
		)
		if err != nil {
			s.logUpsertFailure(rec, err)
			return store.UpsertOutcome{}, fmt.Errorf("update business: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.logUpsertFailure(rec, err)
		return store.UpsertOutcome{}, fmt.Errorf("commit upsert: %w", err)
	}

	if created {
		s.logger.Info("added new business", zap.String("name", rec.Name), zap.String("city", city))
	}
	return store.UpsertOutcome{Created: created, HasWebsite: rec.HasWebsite}, nil
}

// LeadsWithoutWebsite returns the export projection: businesses recorded
// without a website, most recently scraped first, name as tiebreak. An empty
// city means all cities.
func (s *BusinessStore) LeadsWithoutWebsite(ctx context.Context, city string) ([]store.Lead, error) {
	query := selectLeads
	args := []any{}
	if city != "" {
		query += ` AND city = $1`
		args = append(args, city)
	}
	query += ` ORDER BY last_scraped DESC, name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []store.Lead
	for rows.Next() {
		var lead store.Lead
		if err := rows.Scan(
			&lead.Name,
			&lead.Phone,
			&lead.Address,
			&lead.City,
			&lead.Category,
			&lead.LastScraped,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read leads: %w", err)
	}
	return leads, nil
}

func (s *BusinessStore) logUpsertFailure(rec scrape.Record, err error) {
	s.logger.Error("saving business failed, rolled back",
		zap.String("name", rec.Name), zap.Error(err))
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
