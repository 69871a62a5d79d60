package transform

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PriceRecord is one output row for the heating_oil_prices table. Price is
// nil when the source cell is blank or non-numeric. The created_at column
// is a server-side default and never set here.
type PriceRecord struct {
	Date       time.Time
	RegionName string
	Price      *float64
}

// Key identifies a record within the table's uniqueness constraint.
func (r PriceRecord) Key() string {
	return r.Date.Format(time.DateOnly) + "|" + r.RegionName
}

// Date layouts observed in data.ny.gov exports over the years.
var dateLayouts = []string{
	time.DateOnly,
	"01/02/2006",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006 03:04:05 PM",
}

// ParseDate parses a source date cell into a calendar date (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

var dollarsPerGallonSuffix = regexp.MustCompile(`\s*\(\$\/gal\)`)

// RegionName normalizes a price column header into a region label,
// e.g. "Capital Region Average ($/gal)" -> "Capital Region Average".
func RegionName(column string) string {
	return strings.TrimSpace(dollarsPerGallonSuffix.ReplaceAllString(column, ""))
}

// ParsePrice parses a price cell into a 2-decimal dollar value. Blank and
// non-numeric cells yield nil rather than an error: the survey omits prices
// for some regions in some weeks.
func ParsePrice(cell string) *float64 {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	rounded := math.Round(v*100) / 100
	return &rounded
}

// WeeklyPrices reshapes the NYSERDA CSV from wide (one price column per
// region) to long (one record per date and region). The date column is the
// first header containing "date", falling back to week/month/period/year;
// price columns are the headers containing "average". A row with an
// unparseable date is logged and skipped; the run continues.
func WeeklyPrices(csvData []byte, logger *slog.Logger) ([]PriceRecord, error) {
	reader := csv.NewReader(bytes.NewReader(csvData))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	dateIdx := findDateColumn(header)
	if dateIdx < 0 {
		return nil, fmt.Errorf("no date column found in CSV header: %v", header)
	}

	priceCols := findPriceColumns(header, dateIdx)
	if len(priceCols) == 0 {
		return nil, fmt.Errorf("no price columns found in CSV header: %v", header)
	}

	var records []PriceRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV data: %w", err)
		}

		if dateIdx >= len(record) {
			logger.Warn(fmt.Sprintf("Skipping short row with %d fields", len(record)))
			continue
		}

		date, err := ParseDate(record[dateIdx])
		if err != nil {
			logger.Warn(fmt.Sprintf("Skipping row with bad date: %v", err))
			continue
		}

		for _, col := range priceCols {
			if col.index >= len(record) {
				continue
			}
			records = append(records, PriceRecord{
				Date:       date,
				RegionName: col.region,
				Price:      ParsePrice(record[col.index]),
			})
		}
	}

	return records, nil
}

type priceColumn struct {
	index  int
	region string
}

func findDateColumn(header []string) int {
	for i, col := range header {
		if strings.Contains(strings.ToLower(col), "date") {
			return i
		}
	}
	// Fall back to other temporal column names, matching how the upstream
	// dataset has renamed its first column before.
	for _, word := range []string{"week", "month", "period", "year"} {
		for i, col := range header {
			if strings.Contains(strings.ToLower(col), word) {
				return i
			}
		}
	}
	return -1
}

func findPriceColumns(header []string, dateIdx int) []priceColumn {
	var cols []priceColumn
	for i, col := range header {
		if i == dateIdx {
			continue
		}
		if strings.Contains(strings.ToLower(col), "average") {
			cols = append(cols, priceColumn{index: i, region: RegionName(col)})
		}
	}
	return cols
}

// FilterAfter drops records dated on or before cutoff, keeping order.
func FilterAfter(records []PriceRecord, cutoff time.Time) []PriceRecord {
	var kept []PriceRecord
	for _, r := range records {
		if r.Date.After(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}

// DedupeLast removes duplicate (date, region) records, keeping the last
// occurrence. When a source file restates a key, the last value supplied
// wins and the row is written once rather than upserted twice.
func DedupeLast(records []PriceRecord) []PriceRecord {
	seen := make(map[string]int, len(records))
	var deduped []PriceRecord
	for _, r := range records {
		key := r.Key()
		if i, ok := seen[key]; ok {
			deduped[i] = r
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, r)
	}
	return deduped
}
