package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lorenzosyku/heating-oil-price-tracker/config"
	"github.com/lorenzosyku/heating-oil-price-tracker/extract"
	"github.com/lorenzosyku/heating-oil-price-tracker/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore implements Store in memory for pipeline tests.
type fakeStore struct {
	latestDate  *time.Time
	latestSpot  *transform.SpotPrice
	upsertErr   error
	upserted    []transform.PriceRecord
	spotUpserts []transform.SpotPrice
	closed      bool
}

func (s *fakeStore) LatestDate(ctx context.Context) (*time.Time, error) {
	return s.latestDate, nil
}

func (s *fakeStore) UpsertHeatingOilPrices(ctx context.Context, records []transform.PriceRecord, batchSize int) (int, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.upserted = append(s.upserted, records...)
	return len(records), nil
}

func (s *fakeStore) LatestSpotPrice(ctx context.Context) (*transform.SpotPrice, error) {
	return s.latestSpot, nil
}

func (s *fakeStore) UpsertSpotPrice(ctx context.Context, sp transform.SpotPrice) error {
	s.spotUpserts = append(s.spotUpserts, sp)
	return nil
}

func (s *fakeStore) Close() {
	s.closed = true
}

func setupTestConfig() *config.Config {
	return &config.Config{
		Extract: config.ExtractConfig{
			Backoff: config.BackoffConfig{
				RetryWaitMin: 10 * time.Millisecond,
				RetryWaitMax: 20 * time.Millisecond,
				RetryMax:     1,
			},
		},
		Nyserda: config.NyserdaConfig{BatchSize: 500},
		EIA:     config.EIAConfig{SeriesID: "PET.EER_EPLLPA_PF4_Y35NY_DPG.D"},
	}
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newHeatingOilTestPipeline(t *testing.T, store Store, csvBody string, status int) (*Pipeline, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(csvBody))
	}))

	cfg := setupTestConfig()
	log := setupTestLogger()
	client := extract.NewNyserdaClient(cfg, log)
	client.BaseURL = server.URL

	return &Pipeline{
		Store:         store,
		NyserdaClient: client,
		Logger:        log,
		BatchSize:     cfg.Nyserda.BatchSize,
	}, server
}

func TestHeatingOil(t *testing.T) {
	csvBody := `Date,Statewide Average ($/gal),Capital Region Average ($/gal)
2024-01-01,3.45,3.50
2024-01-08,3.47,
2024-01-01,3.45,3.52
`

	store := &fakeStore{}
	p, server := newHeatingOilTestPipeline(t, store, csvBody, http.StatusOK)
	defer server.Close()

	nRows, err := p.HeatingOil(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, nRows)
	require.Len(t, store.upserted, 4)

	byKey := make(map[string]transform.PriceRecord)
	for _, r := range store.upserted {
		byKey[r.Key()] = r
	}

	// The duplicated (2024-01-01, Capital Region Average) key resolves to
	// the last value supplied in the file.
	capital := byKey["2024-01-01|Capital Region Average"]
	require.NotNil(t, capital.Price)
	assert.Equal(t, 3.52, *capital.Price)

	// A blank price cell is stored as null, and rows after it still land.
	blank := byKey["2024-01-08|Capital Region Average"]
	assert.Nil(t, blank.Price)
	statewide := byKey["2024-01-08|Statewide Average"]
	require.NotNil(t, statewide.Price)
	assert.Equal(t, 3.47, *statewide.Price)
}

func TestHeatingOil_FiltersOldRows(t *testing.T) {
	csvBody := `Date,Statewide Average ($/gal)
2024-01-01,3.45
2024-01-08,3.47
2024-01-15,3.49
`

	latest := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{latestDate: &latest}
	p, server := newHeatingOilTestPipeline(t, store, csvBody, http.StatusOK)
	defer server.Close()

	nRows, err := p.HeatingOil(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, nRows)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, "2024-01-15", store.upserted[0].Date.Format(time.DateOnly))
}

func TestHeatingOil_NoNewRows(t *testing.T) {
	csvBody := `Date,Statewide Average ($/gal)
2024-01-01,3.45
`

	latest := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{latestDate: &latest}
	p, server := newHeatingOilTestPipeline(t, store, csvBody, http.StatusOK)
	defer server.Close()

	nRows, err := p.HeatingOil(context.Background())
	require.NoError(t, err)
	assert.Zero(t, nRows)
	assert.Empty(t, store.upserted)
}

func TestHeatingOil_FetchError(t *testing.T) {
	store := &fakeStore{}
	p, server := newHeatingOilTestPipeline(t, store, "", http.StatusInternalServerError)
	defer server.Close()

	nRows, err := p.HeatingOil(context.Background())
	assert.Error(t, err)
	assert.Zero(t, nRows)
	// A failed fetch must not reach the database.
	assert.Empty(t, store.upserted)
}

func TestHeatingOil_ParseError(t *testing.T) {
	csvBody := `Date,Notes
2024-01-01,no price columns here
`

	store := &fakeStore{}
	p, server := newHeatingOilTestPipeline(t, store, csvBody, http.StatusOK)
	defer server.Close()

	nRows, err := p.HeatingOil(context.Background())
	assert.ErrorContains(t, err, "error parsing NYSERDA CSV")
	assert.Zero(t, nRows)
	assert.Empty(t, store.upserted)
}

func TestHeatingOil_UpsertError(t *testing.T) {
	csvBody := `Date,Statewide Average ($/gal)
2024-01-01,3.45
`

	store := &fakeStore{upsertErr: assert.AnError}
	p, server := newHeatingOilTestPipeline(t, store, csvBody, http.StatusOK)
	defer server.Close()

	nRows, err := p.HeatingOil(context.Background())
	assert.ErrorContains(t, err, "error upserting heating oil prices")
	assert.Zero(t, nRows)
}

func newNymexTestPipeline(t *testing.T, store Store, jsonBody string) (*Pipeline, *httptest.Server) {
	t.Helper()
	t.Setenv("EIA_API_KEY", "test_key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(jsonBody))
	}))

	cfg := setupTestConfig()
	log := setupTestLogger()
	client, err := extract.NewEIAClient(cfg, log)
	require.NoError(t, err)
	client.BaseURL = server.URL

	return &Pipeline{
		Store:     store,
		EIAClient: client,
		Logger:    log,
	}, server
}

func TestNymex(t *testing.T) {
	store := &fakeStore{
		latestSpot: &transform.SpotPrice{Date: "2024-01-04", Price: 2.50},
	}
	p, server := newNymexTestPipeline(t, store, `{"response":{"data":[{"period":"2024-01-05","value":2.75}]}}`)
	defer server.Close()

	err := p.Nymex(context.Background())
	require.NoError(t, err)

	require.Len(t, store.spotUpserts, 1)
	sp := store.spotUpserts[0]
	assert.Equal(t, "2024-01-05", sp.Date)
	assert.Equal(t, 2.75, sp.Price)
	assert.Equal(t, 0.25, sp.Change)
	assert.Equal(t, 10.0, sp.ChangePercent)
}

func TestNymex_NoPreviousPrice(t *testing.T) {
	store := &fakeStore{}
	p, server := newNymexTestPipeline(t, store, `{"response":{"data":[{"period":"2024-01-05","value":2.75}]}}`)
	defer server.Close()

	err := p.Nymex(context.Background())
	require.NoError(t, err)

	require.Len(t, store.spotUpserts, 1)
	assert.Zero(t, store.spotUpserts[0].Change)
	assert.Zero(t, store.spotUpserts[0].ChangePercent)
}

func TestNymex_EmptyResponse(t *testing.T) {
	store := &fakeStore{}
	p, server := newNymexTestPipeline(t, store, `{"response":{"data":[]}}`)
	defer server.Close()

	err := p.Nymex(context.Background())
	assert.ErrorContains(t, err, "no data returned from EIA")
	assert.Empty(t, store.spotUpserts)
}
