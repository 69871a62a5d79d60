package extract

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/lorenzosyku/heating-oil-price-tracker/config"
)

const (
	eiaBaseURL  = "https://api.eia.gov"
	eiaSpotPath = "/v2/petroleum/pri/spt/data/"
)

type EIAClient struct {
	HTTPClient *retryablehttp.Client
	Logger     *slog.Logger
	BaseURL    string
	SeriesID   string
	apiKey     string
}

func NewEIAClient(config *config.Config, logger *slog.Logger) (*EIAClient, error) {
	apiKey := os.Getenv("EIA_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("EIA_API_KEY env variable is not set")
	}

	client := &EIAClient{
		HTTPClient: retryablehttp.NewClient(),
		Logger:     logger,
		BaseURL:    eiaBaseURL,
		SeriesID:   config.EIA.SeriesID,
		apiKey:     apiKey,
	}

	client.HTTPClient.RetryWaitMin = config.Extract.Backoff.RetryWaitMin
	client.HTTPClient.RetryWaitMax = config.Extract.Backoff.RetryWaitMax
	client.HTTPClient.RetryMax = config.Extract.Backoff.RetryMax
	client.HTTPClient.Logger = logger

	return client, nil
}

// GetLatestSpotPrice fetches the most recent daily spot price observation
// for the configured series from the EIA v2 API and returns the JSON body.
func (c *EIAClient) GetLatestSpotPrice() ([]byte, error) {
	url, err := c.spotPriceURL()
	if err != nil {
		return nil, err
	}
	return fetchData(c.HTTPClient, url, "EIA spot price")
}

// spotPriceURL builds the EIA request: api key, series facet, newest-first
// sort and a single observation.
func (c *EIAClient) spotPriceURL() (string, error) {
	parsedURL, err := url.Parse(c.BaseURL + eiaSpotPath)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	query := parsedURL.Query()
	query.Set("api_key", c.apiKey)
	query.Set("frequency", "daily")
	query.Set("data[0]", "value")
	query.Set("facets[series][]", c.SeriesID)
	query.Set("sort[0][column]", "period")
	query.Set("sort[0][direction]", "desc")
	query.Set("length", "1")
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}
