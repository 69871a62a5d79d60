package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// SpotPrice is one output row for the nymex_prices table, keyed on date.
type SpotPrice struct {
	Date          string
	Price         float64
	Change        float64
	ChangePercent float64
}

// LatestSpotPrice decodes an EIA v2 response and returns the newest
// observation's period and dollar value.
func LatestSpotPrice(body []byte) (string, float64, error) {
	var payload struct {
		Response struct {
			Data []struct {
				Period string `json:"period"`
				// The API serves the value as a number or a quoted string
				// depending on the series, so decode it by hand.
				Value json.RawMessage `json:"value"`
			} `json:"data"`
		} `json:"response"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, fmt.Errorf("failed to decode EIA response: %w", err)
	}

	if len(payload.Response.Data) == 0 {
		return "", 0, fmt.Errorf("no data returned from EIA")
	}

	latest := payload.Response.Data[0]
	raw := bytes.Trim(bytes.TrimSpace(latest.Value), `"`)
	price, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse EIA price value %s: %w", latest.Value, err)
	}

	return latest.Period, math.Round(price*100) / 100, nil
}

// ComputeChange returns the dollar and percentage change versus the
// previous price, both rounded to 2 decimals. With no usable previous
// price it returns zeros.
func ComputeChange(current float64, previous *float64) (change, changePercent float64) {
	if previous == nil || *previous == 0 {
		return 0, 0
	}

	change = current - *previous
	changePercent = (change / *previous) * 100

	return math.Round(change*100) / 100, math.Round(changePercent*100) / 100
}
