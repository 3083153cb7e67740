package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"tcg-market-pipeline/models"
)

// PostgresCatalog mirrors card_master into PostgreSQL and serves it back as a
// catalog source.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresCatalog.
func NewPostgresCatalog(dsn string) (*PostgresCatalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pc := &PostgresCatalog{db: db}
	if err := pc.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pc, nil
}

func (pc *PostgresCatalog) migrate() error {
	_, err := pc.db.Exec(`
		CREATE TABLE IF NOT EXISTS card_master (
			card_id           TEXT PRIMARY KEY,
			card_name         TEXT NOT NULL,
			supertype         TEXT NOT NULL DEFAULT '',
			rarity            TEXT NOT NULL DEFAULT '',
			set_id            TEXT NOT NULL,
			set_name          TEXT NOT NULL,
			number            TEXT NOT NULL,
			set_printed_total INTEGER,
			release_date      TEXT NOT NULL DEFAULT '',
			ingestion_date    TEXT NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_card_master_set  ON card_master(set_id);
		CREATE INDEX IF NOT EXISTS idx_card_master_name ON card_master(card_name);
	`)
	return err
}

// Write upserts every card in batches.
func (pc *PostgresCatalog) Write(ctx context.Context, cards []models.CatalogCard) error {
	if len(cards) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(cards); i += batchSize {
		end := i + batchSize
		if end > len(cards) {
			end = len(cards)
		}
		query, args := upsertQuery(cards[i:end])
		if _, err := pc.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: upsert batch at %d: %w", i, err)
		}
	}
	return nil
}

const cardColumns = 10

func upsertQuery(batch []models.CatalogCard) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cardColumns)

	for idx, c := range batch {
		base := idx * cardColumns
		placeholders := make([]string, cardColumns)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		var printedTotal interface{}
		if c.SetPrintedTotal != nil {
			printedTotal = *c.SetPrintedTotal
		}
		valueArgs = append(valueArgs,
			c.CardID, c.CardName, c.Supertype, c.Rarity, c.SetID, c.SetName,
			c.Number, printedTotal, c.ReleaseDate, c.IngestionDate)
	}

	query := fmt.Sprintf(`
		INSERT INTO card_master (card_id, card_name, supertype, rarity, set_id, set_name,
			number, set_printed_total, release_date, ingestion_date)
		VALUES %s
		ON CONFLICT (card_id) DO UPDATE SET
			card_name = EXCLUDED.card_name,
			supertype = EXCLUDED.supertype,
			rarity = EXCLUDED.rarity,
			set_id = EXCLUDED.set_id,
			set_name = EXCLUDED.set_name,
			number = EXCLUDED.number,
			set_printed_total = EXCLUDED.set_printed_total,
			release_date = EXCLUDED.release_date,
			ingestion_date = EXCLUDED.ingestion_date,
			updated_at = NOW()
	`, strings.Join(valueStrings, ","))

	return query, valueArgs
}

func (pc *PostgresCatalog) Close() error {
	return pc.db.Close()
}

// FetchAll retrieves every mirrored card, ordered by id.
func (pc *PostgresCatalog) FetchAll(ctx context.Context) ([]models.CatalogCard, error) {
	rows, err := pc.db.QueryContext(ctx, `
		SELECT card_id, card_name, supertype, rarity, set_id, set_name,
		       number, set_printed_total, release_date, ingestion_date
		FROM card_master
		ORDER BY card_id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var cards []models.CatalogCard
	for rows.Next() {
		var c models.CatalogCard
		var printedTotal sql.NullInt32
		if err := rows.Scan(
			&c.CardID, &c.CardName, &c.Supertype, &c.Rarity, &c.SetID, &c.SetName,
			&c.Number, &printedTotal, &c.ReleaseDate, &c.IngestionDate,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if printedTotal.Valid {
			n := printedTotal.Int32
			c.SetPrintedTotal = &n
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
