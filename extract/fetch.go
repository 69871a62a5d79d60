package extract

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/lorenzosyku/heating-oil-price-tracker/config"
)

// NYSERDA publishes the weekly heating oil price survey on data.ny.gov.
// The dataset ID is fixed; only the host is overridable (for tests).
const (
	nyserdaBaseURL = "https://data.ny.gov"
	nyserdaCSVPath = "/api/views/rc94-5y2u/rows.csv"
)

type NyserdaClient struct {
	HTTPClient *retryablehttp.Client
	Logger     *slog.Logger
	BaseURL    string
}

func NewNyserdaClient(config *config.Config, logger *slog.Logger) *NyserdaClient {
	client := &NyserdaClient{
		HTTPClient: retryablehttp.NewClient(),
		Logger:     logger,
		BaseURL:    nyserdaBaseURL,
	}

	client.HTTPClient.RetryWaitMin = config.Extract.Backoff.RetryWaitMin
	client.HTTPClient.RetryWaitMax = config.Extract.Backoff.RetryWaitMax
	client.HTTPClient.RetryMax = config.Extract.Backoff.RetryMax
	client.HTTPClient.Logger = logger

	return client
}

// GetWeeklyPrices fetches the full NYSERDA weekly heating oil price CSV
func (c *NyserdaClient) GetWeeklyPrices() ([]byte, error) {
	url := fmt.Sprintf("%s%s?accessType=DOWNLOAD", c.BaseURL, nyserdaCSVPath)
	return fetchData(c.HTTPClient, url, "weekly heating oil prices CSV")
}

// fetchData handles the common logic of making the HTTP request and checking the response status
func fetchData(client *retryablehttp.Client, url, description string) ([]byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch the `%s` file, status: %s, body: %s", description, resp.Status, string(body))
	}

	return body, nil
}
