package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// PostgresWriter persists listings through a pgx connection pool. The
// listings row is the primary write; the satellite tables (pricing,
// specs, auction info, location, provenance, media, price history) are
// upserted best-effort and surface failures as warnings.
type PostgresWriter struct {
	pool *pgxpool.Pool
}

// NewPostgresWriter connects and verifies the pool with a ping.
func NewPostgresWriter(ctx context.Context, databaseURL string) (*PostgresWriter, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info().Msg("Connected to Postgres")
	return &PostgresWriter{pool: pool}, nil
}

// Close releases the pool.
func (w *PostgresWriter) Close() {
	w.pool.Close()
}

// Upsert writes one listing. Lookup order: (source, source_id) first,
// then source_url to catch identifier drift on re-listed cars. Dry-run
// returns before touching the database.
func (w *PostgresWriter) Upsert(ctx context.Context, l *model.CanonicalListing, dryRun bool) (UpsertResult, error) {
	if dryRun {
		return UpsertResult{}, nil
	}

	var (
		id       int64
		prevID   string
		prevStat model.ListingStatus
	)
	err := w.pool.QueryRow(ctx,
		`SELECT id, source_id, status FROM listings WHERE source = $1 AND source_id = $2`,
		l.Source, l.SourceID,
	).Scan(&id, &prevID, &prevStat)
	if errors.Is(err, pgx.ErrNoRows) {
		err = w.pool.QueryRow(ctx,
			`SELECT id, source_id, status FROM listings WHERE source = $1 AND source_url = $2`,
			l.Source, l.SourceURL,
		).Scan(&id, &prevID, &prevStat)
	}

	var result UpsertResult
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		id, err = w.insert(ctx, l)
		if err != nil {
			return UpsertResult{}, err
		}
		result.Inserted = 1
	case err != nil:
		return UpsertResult{}, fmt.Errorf("lookup listing %s/%s: %w", l.Source, l.SourceID, err)
	default:
		if prevID != l.SourceID {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("identifier drift on %s: %s replaced by %s (matched by URL)", l.SourceURL, prevID, l.SourceID))
		}
		if err := w.update(ctx, id, l, effectiveStatus(prevStat, l.Status)); err != nil {
			return UpsertResult{}, err
		}
		result.Updated = 1
	}

	result.Warnings = append(result.Warnings, w.upsertChildren(ctx, id, l)...)
	return result, nil
}

func (w *PostgresWriter) insert(ctx context.Context, l *model.CanonicalListing) (int64, error) {
	raw, err := json.Marshal(l.Raw)
	if err != nil {
		return 0, fmt.Errorf("marshal raw payload: %w", err)
	}
	var id int64
	err = w.pool.QueryRow(ctx, `
		INSERT INTO listings
			(source, source_id, source_url, make, model, year, title, status,
			 sale_date, currency, scraped_at, raw, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (source, source_id) DO UPDATE SET updated_at = now()
		RETURNING id`,
		l.Source, l.SourceID, l.SourceURL, l.Make, l.Model, l.Year, l.Title, l.Status,
		l.SaleDate, nullIfEmpty(l.Currency), l.ScrapedAt, raw,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert listing %s/%s: %w", l.Source, l.SourceID, err)
	}
	return id, nil
}

func (w *PostgresWriter) update(ctx context.Context, id int64, l *model.CanonicalListing, status model.ListingStatus) error {
	raw, err := json.Marshal(l.Raw)
	if err != nil {
		return fmt.Errorf("marshal raw payload: %w", err)
	}
	_, err = w.pool.Exec(ctx, `
		UPDATE listings SET
			source_id = $2, source_url = $3, make = $4, model = $5, year = $6,
			title = $7, status = $8, sale_date = COALESCE($9, sale_date),
			currency = COALESCE($10, currency), scraped_at = $11, raw = $12,
			updated_at = now()
		WHERE id = $1`,
		id, l.SourceID, l.SourceURL, l.Make, l.Model, l.Year,
		l.Title, status, l.SaleDate, nullIfEmpty(l.Currency), l.ScrapedAt, raw,
	)
	if err != nil {
		return fmt.Errorf("update listing %s/%s: %w", l.Source, l.SourceID, err)
	}
	return nil
}

// childWrite is one satellite-table statement derived from a listing.
type childWrite struct {
	table string
	sql   string
	args  []any
}

// childWrites builds the satellite statements for one listing row. Photos
// key on (listing_id, url) so re-scrapes with reordered galleries update
// positions instead of colliding.
func childWrites(id int64, l *model.CanonicalListing) []childWrite {
	writes := []childWrite{
		{
			table: "pricing",
			sql: `
				INSERT INTO pricing (listing_id, hammer_price, current_bid, final_price, bid_count, currency)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (listing_id) DO UPDATE SET
					hammer_price = COALESCE(EXCLUDED.hammer_price, pricing.hammer_price),
					current_bid  = COALESCE(EXCLUDED.current_bid, pricing.current_bid),
					final_price  = COALESCE(EXCLUDED.final_price, pricing.final_price),
					bid_count    = COALESCE(EXCLUDED.bid_count, pricing.bid_count),
					currency     = COALESCE(EXCLUDED.currency, pricing.currency)`,
			args: []any{id, l.HammerPrice, l.CurrentBid, l.FinalPrice, l.BidCount, nullIfEmpty(l.Currency)},
		},
		{
			table: "vehicle_specs",
			sql: `
				INSERT INTO vehicle_specs (listing_id, vin, trim, mileage, mileage_unit)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (listing_id) DO UPDATE SET
					vin          = COALESCE(EXCLUDED.vin, vehicle_specs.vin),
					trim         = COALESCE(EXCLUDED.trim, vehicle_specs.trim),
					mileage      = COALESCE(EXCLUDED.mileage, vehicle_specs.mileage),
					mileage_unit = COALESCE(EXCLUDED.mileage_unit, vehicle_specs.mileage_unit)`,
			args: []any{id, nullIfEmpty(l.VIN), nullIfEmpty(l.Trim), l.Mileage, nullIfEmpty(string(l.MileageUnit))},
		},
		{
			table: "auction_info",
			sql: `
				INSERT INTO auction_info (listing_id, auction_house, sale_date)
				VALUES ($1, $2, $3)
				ON CONFLICT (listing_id) DO UPDATE SET
					auction_house = COALESCE(EXCLUDED.auction_house, auction_info.auction_house),
					sale_date     = COALESCE(EXCLUDED.sale_date, auction_info.sale_date)`,
			args: []any{id, nullIfEmpty(l.AuctionHouse), l.SaleDate},
		},
		{
			table: "location_data",
			sql: `
				INSERT INTO location_data (listing_id, city, state, country)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (listing_id) DO UPDATE SET
					city    = COALESCE(EXCLUDED.city, location_data.city),
					state   = COALESCE(EXCLUDED.state, location_data.state),
					country = COALESCE(EXCLUDED.country, location_data.country)`,
			args: []any{id, nullIfEmpty(l.LocationCity), nullIfEmpty(l.LocationState), nullIfEmpty(l.LocationCountry)},
		},
		{
			table: "provenance_data",
			sql: `
				INSERT INTO provenance_data (listing_id, description, scraped_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (listing_id) DO UPDATE SET
					description = COALESCE(EXCLUDED.description, provenance_data.description),
					scraped_at  = EXCLUDED.scraped_at`,
			args: []any{id, nullIfEmpty(l.Description), l.ScrapedAt},
		},
	}

	for position, imageURL := range l.ImageURLs {
		writes = append(writes, childWrite{
			table: "photos_media",
			sql: `
				INSERT INTO photos_media (listing_id, url, position)
				VALUES ($1, $2, $3)
				ON CONFLICT (listing_id, url) DO UPDATE SET position = EXCLUDED.position`,
			args: []any{id, imageURL, position},
		})
	}

	if price, ok := observedPrice(l); ok {
		writes = append(writes, childWrite{
			table: "price_history",
			sql: `
				INSERT INTO price_history (listing_id, observed_at, price, currency)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (listing_id, observed_at) DO UPDATE SET
					price = EXCLUDED.price, currency = EXCLUDED.currency`,
			args: []any{id, historyBucket(l), price, nullIfEmpty(l.Currency)},
		})
	}

	return writes
}

// upsertChildren executes every satellite statement. Each failure becomes
// a warning; none aborts the listing write or skips later statements.
func (w *PostgresWriter) upsertChildren(ctx context.Context, id int64, l *model.CanonicalListing) []string {
	var warnings []string
	for _, cw := range childWrites(id, l) {
		if _, err := w.pool.Exec(ctx, cw.sql, cw.args...); err != nil {
			log.Warn().Err(err).Int64("listing_id", id).Msgf("Best-effort %s write failed", cw.table)
			warnings = append(warnings, fmt.Sprintf("%s: %v", cw.table, err))
		}
	}
	return warnings
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ ListingWriter = (*PostgresWriter)(nil)
