package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lorenzosyku/heating-oil-price-tracker/config"
	"github.com/lorenzosyku/heating-oil-price-tracker/extract"
	"github.com/lorenzosyku/heating-oil-price-tracker/load"
	"github.com/lorenzosyku/heating-oil-price-tracker/transform"
)

// Store is what the pipelines need from load.Postgres.
type Store interface {
	LatestDate(ctx context.Context) (*time.Time, error)
	UpsertHeatingOilPrices(ctx context.Context, records []transform.PriceRecord, batchSize int) (int, error)
	LatestSpotPrice(ctx context.Context) (*transform.SpotPrice, error)
	UpsertSpotPrice(ctx context.Context, sp transform.SpotPrice) error
	Close()
}

type Pipeline struct {
	Store         Store
	NyserdaClient *extract.NyserdaClient
	EIAClient     *extract.EIAClient
	Logger        *slog.Logger
	BatchSize     int
}

func NewHeatingOilPipeline(ctx context.Context, config *config.Config, logger *slog.Logger) (*Pipeline, error) {
	store, err := load.NewPostgres(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("error connecting to Postgres: %w", err)
	}

	return &Pipeline{
		Store:         store,
		NyserdaClient: extract.NewNyserdaClient(config, logger),
		Logger:        logger,
		BatchSize:     config.Nyserda.BatchSize,
	}, nil
}

func NewNymexPipeline(ctx context.Context, config *config.Config, logger *slog.Logger) (*Pipeline, error) {
	eiaClient, err := extract.NewEIAClient(config, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating EIA HTTP client: %w", err)
	}

	store, err := load.NewPostgres(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("error connecting to Postgres: %w", err)
	}

	return &Pipeline{
		Store:     store,
		EIAClient: eiaClient,
		Logger:    logger,
	}, nil
}

func (p *Pipeline) Close() {
	p.Store.Close()
}

// HeatingOil syncs the NYSERDA weekly heating oil prices into the
// heating_oil_prices table and returns the number of rows upserted.
func (p *Pipeline) HeatingOil(ctx context.Context) (int, error) {
	body, err := p.NyserdaClient.GetWeeklyPrices()
	if err != nil {
		return 0, fmt.Errorf("error fetching NYSERDA weekly prices: %w", err)
	}

	records, err := transform.WeeklyPrices(body, p.Logger)
	if err != nil {
		return 0, fmt.Errorf("error parsing NYSERDA CSV: %w", err)
	}

	latest, err := p.Store.LatestDate(ctx)
	if err != nil {
		return 0, fmt.Errorf("error fetching latest date from Postgres: %w", err)
	}
	if latest != nil {
		total := len(records)
		records = transform.FilterAfter(records, *latest)
		p.Logger.Info(fmt.Sprintf("Filtered to %d new rows (out of %d total)", len(records), total))
	}

	records = transform.DedupeLast(records)
	if len(records) == 0 {
		p.Logger.Info("No new data available")
		return 0, nil
	}

	written, err := p.Store.UpsertHeatingOilPrices(ctx, records, p.BatchSize)
	if err != nil {
		return written, fmt.Errorf("error upserting heating oil prices: %w", err)
	}

	return written, nil
}

// Nymex fetches the latest NY Harbor heating oil spot price from the EIA
// API, computes the change versus the previously stored price and upserts
// one row into the nymex_prices table.
func (p *Pipeline) Nymex(ctx context.Context) error {
	body, err := p.EIAClient.GetLatestSpotPrice()
	if err != nil {
		return fmt.Errorf("error fetching EIA spot price: %w", err)
	}

	date, price, err := transform.LatestSpotPrice(body)
	if err != nil {
		return fmt.Errorf("error parsing EIA response: %w", err)
	}

	previous, err := p.Store.LatestSpotPrice(ctx)
	if err != nil {
		return fmt.Errorf("error fetching latest spot price from Postgres: %w", err)
	}

	var previousPrice *float64
	if previous != nil {
		previousPrice = &previous.Price
	}
	change, changePercent := transform.ComputeChange(price, previousPrice)

	sp := transform.SpotPrice{
		Date:          date,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
	}
	if err := p.Store.UpsertSpotPrice(ctx, sp); err != nil {
		return fmt.Errorf("error upserting spot price: %w", err)
	}

	p.Logger.Info(fmt.Sprintf("Upserted spot price %.2f for %s (change %+.2f, %+.1f%%)", price, date, change, changePercent))
	return nil
}
