package load

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorenzosyku/heating-oil-price-tracker/config"
	"github.com/lorenzosyku/heating-oil-price-tracker/transform"
)

const defaultBatchSize = 500

type Postgres struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

// NewPostgres connects to the hosted Postgres database. DATABASE_URL holds
// the connection endpoint and DATABASE_SERVICE_KEY the write credential,
// which is injected as the connection password when set.
func NewPostgres(ctx context.Context, config *config.Config, logger *slog.Logger) (*Postgres, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL env variable is not set")
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}

	serviceKey := os.Getenv("DATABASE_SERVICE_KEY")
	if serviceKey == "" && poolCfg.ConnConfig.Password == "" {
		return nil, fmt.Errorf("DATABASE_SERVICE_KEY env variable is not set and DATABASE_URL carries no password")
	}
	if serviceKey != "" {
		poolCfg.ConnConfig.Password = serviceKey
	}

	if config.Postgres.MaxConns > 0 {
		poolCfg.MaxConns = config.Postgres.MaxConns
	}
	if config.Postgres.MinConns > 0 {
		poolCfg.MinConns = config.Postgres.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(fmt.Sprintf("Connected to Postgres database at %s", poolCfg.ConnConfig.Host))

	return &Postgres{Logger: logger, Pool: pool}, nil
}

func (p *Postgres) Close() {
	p.Pool.Close()
}

// LatestDate returns the most recent date in heating_oil_prices, or nil
// when the table is empty.
func (p *Postgres) LatestDate(ctx context.Context) (*time.Time, error) {
	var latest *time.Time
	err := p.Pool.QueryRow(ctx, `SELECT max(date) FROM heating_oil_prices`).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest date: %w", err)
	}
	return latest, nil
}

const upsertHeatingOilQuery = `
	INSERT INTO heating_oil_prices (date, region_name, price)
	VALUES ($1, $2, $3)
	ON CONFLICT (date, region_name) DO UPDATE SET
		price = EXCLUDED.price
`

// UpsertHeatingOilPrices writes the records in chunks of batchSize, each
// chunk in its own transaction. A failed chunk is recorded and the
// remaining chunks are still attempted, so a transient failure loses as
// little of the run as possible; the joined error is returned at the end.
func (p *Postgres) UpsertHeatingOilPrices(ctx context.Context, records []transform.PriceRecord, batchSize int) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	written := 0
	var errorList []error
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		chunk := records[start:end]

		if err := p.upsertChunk(ctx, chunk); err != nil {
			errorList = append(errorList, fmt.Errorf("error upserting rows %d-%d: %w", start, end-1, err))
			continue
		}

		written += len(chunk)
		p.Logger.Info(fmt.Sprintf("Upserted batch of %d rows (%d/%d)", len(chunk), written, len(records)))
	}

	if len(errorList) > 0 {
		return written, errors.Join(errorList...)
	}

	return written, nil
}

func (p *Postgres) upsertChunk(ctx context.Context, chunk []transform.PriceRecord) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range chunk {
		batch.Queue(upsertHeatingOilQuery, r.Date, r.RegionName, r.Price)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunk {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert failed: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch results: %w", err)
	}

	return tx.Commit(ctx)
}

// LatestSpotPrice returns the most recent row in nymex_prices, or nil when
// the table is empty.
func (p *Postgres) LatestSpotPrice(ctx context.Context) (*transform.SpotPrice, error) {
	var sp transform.SpotPrice
	var date time.Time
	err := p.Pool.QueryRow(ctx,
		`SELECT date, price FROM nymex_prices ORDER BY date DESC LIMIT 1`,
	).Scan(&date, &sp.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest spot price: %w", err)
	}

	sp.Date = date.Format(time.DateOnly)
	return &sp, nil
}

const upsertSpotPriceQuery = `
	INSERT INTO nymex_prices (date, price, change, change_percent, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (date) DO UPDATE SET
		price = EXCLUDED.price,
		change = EXCLUDED.change,
		change_percent = EXCLUDED.change_percent,
		updated_at = EXCLUDED.updated_at
`

// UpsertSpotPrice writes a single spot price row keyed on date.
func (p *Postgres) UpsertSpotPrice(ctx context.Context, sp transform.SpotPrice) error {
	date, err := time.Parse(time.DateOnly, sp.Date)
	if err != nil {
		return fmt.Errorf("invalid spot price date %q: %w", sp.Date, err)
	}

	_, err = p.Pool.Exec(ctx, upsertSpotPriceQuery, date, sp.Price, sp.Change, sp.ChangePercent, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert spot price: %w", err)
	}
	return nil
}
