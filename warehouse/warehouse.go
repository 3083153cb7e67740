package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"tcg-market-pipeline/config"
	"tcg-market-pipeline/models"
	"tcg-market-pipeline/utils"
)

// MaxListingLimit caps the listings query.
const MaxListingLimit = 50

// view binds a view name to the partition glob of one dataset. hive adds the
// path keys as columns for datasets whose rows do not carry them.
type view struct {
	name string
	glob string
	hive bool
}

func views(p config.Paths) []view {
	part := "part-000.parquet"
	return []view{
		{"card_master", filepath.Join(p.CardMaster, "ingestion_date=*", part), false},
		{"card_price_variant_master", filepath.Join(p.VariantMaster, "ingestion_date=*", part), true},
		{"tcg_price_history", filepath.Join(p.PriceHistory, "price_date=*", part), false},
		{"weekly_top_tcg_cards", filepath.Join(p.WeeklyTopCards, "price_date=*", part), false},
		{"stg_ebay_listings", filepath.Join(p.StagingEbay, "price_date=*", "ingestion_date=*", part), false},
		{"ebay_market_snapshot", filepath.Join(p.MarketSnapshot, "ingestion_date=*", part), false},
		{"ebay_card_market_summary", filepath.Join(p.MarketSummary, "price_date=*", part), false},
	}
}

// Warehouse is a DuckDB connection with read-only views over the lake.
type Warehouse struct {
	db     *sql.DB
	paths  config.Paths
	logger *utils.Logger
	views  map[string]bool
}

// Open connects to DuckDB at dbPath ("" for in-memory) and registers a view
// for every dataset that has at least one partition.
func Open(ctx context.Context, dbPath string, paths config.Paths, logger *utils.Logger) (*Warehouse, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("warehouse: open duckdb: %w", err)
	}

	w := &Warehouse{db: db, paths: paths, logger: logger, views: make(map[string]bool)}
	if err := w.registerViews(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Warehouse) registerViews(ctx context.Context) error {
	for _, v := range views(w.paths) {
		matches, err := filepath.Glob(v.glob)
		if err != nil {
			return fmt.Errorf("warehouse: glob %s: %w", v.glob, err)
		}
		if len(matches) == 0 {
			w.logger.Debug("[warehouse] %s: no partitions yet, view skipped", v.name)
			continue
		}

		stmt := fmt.Sprintf(
			"CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet('%s', hive_partitioning=%t)",
			v.name, strings.ReplaceAll(v.glob, "'", "''"), v.hive)
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("warehouse: create view %s: %w", v.name, err)
		}
		w.views[v.name] = true
	}
	w.logger.Info("[warehouse] %d views registered", len(w.views))
	return nil
}

// HasView reports whether a dataset view was registered.
func (w *Warehouse) HasView(name string) bool {
	return w.views[name]
}

// DB exposes the connection for ad-hoc queries.
func (w *Warehouse) DB() *sql.DB {
	return w.db
}

func (w *Warehouse) Close() error {
	return w.db.Close()
}

// ListingQuery selects snapshot listings of one card.
type ListingQuery struct {
	CardID     string
	Descending bool
	Limit      int
}

// Listings returns the listings of q.CardID in the latest snapshot, ordered
// by price. Limit must be in 1..MaxListingLimit.
func (w *Warehouse) Listings(ctx context.Context, q ListingQuery) ([]models.SnapshotRow, error) {
	if q.Limit < 1 || q.Limit > MaxListingLimit {
		return nil, fmt.Errorf("warehouse: limit must be between 1 and %d, got %d", MaxListingLimit, q.Limit)
	}
	if !w.HasView("ebay_market_snapshot") {
		return nil, nil
	}

	order := "ASC"
	if q.Descending {
		order = "DESC"
	}

	rows, err := w.db.QueryContext(ctx, `
		SELECT listing_id, card_id, price_value, currency, condition, is_graded,
		       grade_value, title_match_confidence, title, listing_url, ingestion_date
		FROM ebay_market_snapshot
		WHERE ingestion_date = (SELECT max(ingestion_date) FROM ebay_market_snapshot)
		  AND card_id = ?
		ORDER BY price_value `+order+` NULLS LAST, listing_id
		LIMIT ?
	`, q.CardID, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("warehouse: query listings: %w", err)
	}
	defer rows.Close()

	var out []models.SnapshotRow
	for rows.Next() {
		var (
			r         models.SnapshotRow
			price     sql.NullFloat64
			currency  sql.NullString
			condition sql.NullString
			grade     sql.NullInt32
			title     sql.NullString
			url       sql.NullString
		)
		if err := rows.Scan(&r.ListingID, &r.CardID, &price, &currency, &condition, &r.IsGraded,
			&grade, &r.TitleMatchConfidence, &title, &url, &r.IngestionDate); err != nil {
			return nil, fmt.Errorf("warehouse: scan listing: %w", err)
		}
		if price.Valid {
			r.PriceValue = &price.Float64
		}
		if currency.Valid {
			r.Currency = &currency.String
		}
		if condition.Valid {
			r.Condition = &condition.String
		}
		if grade.Valid {
			r.GradeValue = &grade.Int32
		}
		r.Title = title.String
		if url.Valid {
			r.ListingURL = &url.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CardSummary reads the market summary of one card for the latest price date.
func (w *Warehouse) CardSummary(ctx context.Context, cardID string) (*models.MarketSummary, error) {
	if !w.HasView("ebay_card_market_summary") {
		return nil, nil
	}
	row := w.db.QueryRowContext(ctx, `
		SELECT card_id, price_date, listing_count, min_price, median_price, max_price,
		       graded_listing_count, ungraded_listing_count
		FROM ebay_card_market_summary
		WHERE price_date = (SELECT max(price_date) FROM ebay_card_market_summary)
		  AND card_id = ?
	`, cardID)

	var s models.MarketSummary
	err := row.Scan(&s.CardID, &s.PriceDate, &s.ListingCount, &s.MinPrice, &s.MedianPrice, &s.MaxPrice,
		&s.GradedListingCount, &s.UngradedListingCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("warehouse: query summary: %w", err)
	}
	return &s, nil
}
