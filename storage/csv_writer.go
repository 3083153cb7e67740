package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"tcg-market-pipeline/models"
)

// CSVWriter exports a leaderboard partition to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	// Write header
	if err := w.Write([]string{
		"price_date", "rank", "card_id", "card_name", "set_name", "number", "rarity", "max_market_price",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteLeaderboard writes one row per entry, in the order given.
func (c *CSVWriter) WriteLeaderboard(entries []models.LeaderboardEntry) error {
	for _, e := range entries {
		row := []string{
			e.PriceDate,
			strconv.Itoa(int(e.Rank)),
			e.CardID,
			e.CardName,
			e.SetName,
			e.Number,
			e.Rarity,
			decimal.NewFromFloat(e.MaxMarketPrice).StringFixed(2),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
