package storage

import (
	"context"

	"tcg-market-pipeline/models"
)

// CatalogSource supplies the card_master records used to resolve listings.
type CatalogSource interface {
	FetchAll(ctx context.Context) ([]models.CatalogCard, error)
}

// CatalogWriter is the interface any card_master mirror must satisfy.
type CatalogWriter interface {
	Write(ctx context.Context, cards []models.CatalogCard) error
	Close() error
}

// ParquetCatalog reads the latest card_master partition from the lake.
type ParquetCatalog struct {
	dataset *Dataset[models.CatalogCard]
}

// FetchAll returns every card of the most recent card_master partition.
func (p *ParquetCatalog) FetchAll(_ context.Context) ([]models.CatalogCard, error) {
	latest, err := p.dataset.Latest("ingestion_date")
	if err != nil {
		return nil, err
	}
	return p.dataset.Read(IngestionDate(latest))
}
