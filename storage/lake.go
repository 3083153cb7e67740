package storage

import (
	"tcg-market-pipeline/config"
	"tcg-market-pipeline/models"
)

// Lake bundles every dataset of the pipeline, bound to its directory and
// schema contract.
type Lake struct {
	Paths config.Paths

	StagedCards    *Dataset[models.StagedCard]
	CardPrices     *Dataset[models.CardPrice]
	CardMaster     *Dataset[models.CatalogCard]
	VariantMaster  *Dataset[models.PriceVariant]
	PriceHistory   *Dataset[models.PriceObservation]
	Leaderboard    *Dataset[models.LeaderboardEntry]
	StagedListings *Dataset[models.ListingRow]
	Snapshot       *Dataset[models.SnapshotRow]
	Summary        *Dataset[models.MarketSummary]
}

// NewLake binds all datasets under p.
func NewLake(p config.Paths) (*Lake, error) {
	l := &Lake{Paths: p}
	var err error

	if l.StagedCards, err = NewDataset[models.StagedCard]("staging_cards", p.StagingCards); err != nil {
		return nil, err
	}
	if l.CardPrices, err = NewDataset[models.CardPrice]("staging_card_prices", p.StagingCardPrices); err != nil {
		return nil, err
	}
	if l.CardMaster, err = NewDataset[models.CatalogCard]("card_master", p.CardMaster); err != nil {
		return nil, err
	}
	if l.VariantMaster, err = NewDataset[models.PriceVariant]("card_price_variant_master", p.VariantMaster); err != nil {
		return nil, err
	}
	if l.PriceHistory, err = NewDataset[models.PriceObservation]("tcg_price_history", p.PriceHistory); err != nil {
		return nil, err
	}
	if l.Leaderboard, err = NewDataset[models.LeaderboardEntry]("weekly_top_tcg_cards", p.WeeklyTopCards); err != nil {
		return nil, err
	}
	if l.StagedListings, err = NewDataset[models.ListingRow]("staging_ebay_listings", p.StagingEbay); err != nil {
		return nil, err
	}
	if l.Snapshot, err = NewDataset[models.SnapshotRow]("ebay_market_snapshot", p.MarketSnapshot); err != nil {
		return nil, err
	}
	if l.Summary, err = NewDataset[models.MarketSummary]("ebay_card_market_summary", p.MarketSummary); err != nil {
		return nil, err
	}
	return l, nil
}

// Catalog returns the catalog source reading the latest card_master partition.
func (l *Lake) Catalog() *ParquetCatalog {
	return &ParquetCatalog{dataset: l.CardMaster}
}
