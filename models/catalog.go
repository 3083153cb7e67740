package models

import "strconv"

// TCGCard is one card object as returned by the catalog API.
type TCGCard struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Supertype string     `json:"supertype"`
	Number    string     `json:"number"`
	Rarity    string     `json:"rarity"`
	Set       TCGSet     `json:"set"`
	TCGPlayer *TCGPlayer `json:"tcgplayer,omitempty"`
}

// TCGSet is the set block embedded in a catalog card.
type TCGSet struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PrintedTotal *int   `json:"printedTotal"`
	ReleaseDate  string `json:"releaseDate"`
}

// TCGPlayer carries the market prices attached to a catalog card.
type TCGPlayer struct {
	URL       string                     `json:"url"`
	UpdatedAt string                     `json:"updatedAt"`
	Prices    map[string]TCGPriceMetrics `json:"prices"`
}

// TCGPriceMetrics is the price block for one price type (normal, holofoil, ...).
type TCGPriceMetrics struct {
	Low       *float64 `json:"low"`
	Mid       *float64 `json:"mid"`
	High      *float64 `json:"high"`
	Market    *float64 `json:"market"`
	DirectLow *float64 `json:"directLow"`
}

// StagedCard is a row of the staging cards dataset.
type StagedCard struct {
	CardID          string `parquet:"card_id"`
	Name            string `parquet:"name"`
	Supertype       string `parquet:"supertype"`
	Number          string `parquet:"number"`
	Rarity          string `parquet:"rarity"`
	SetID           string `parquet:"set_id"`
	SetName         string `parquet:"set_name"`
	SetPrintedTotal *int32 `parquet:"set_printed_total,optional"`
	SetReleaseDate  string `parquet:"set_release_date"`
	IngestionDate   string `parquet:"ingestion_date"`
}

// CardPrice is a row of the staging card_prices dataset: one per card and price type.
type CardPrice struct {
	CardID        string  `parquet:"card_id"`
	PriceType     string  `parquet:"price_type"`
	Market        float64 `parquet:"market"`
	TCGUpdateDate string  `parquet:"tcg_update_date"`
	IngestionDate string  `parquet:"ingestion_date"`
}

// CatalogCard is the canonical card_master record. It is read-only input to
// listing resolution.
type CatalogCard struct {
	CardID          string `parquet:"card_id"`
	CardName        string `parquet:"card_name"`
	Supertype       string `parquet:"supertype"`
	Rarity          string `parquet:"rarity"`
	SetID           string `parquet:"set_id"`
	SetName         string `parquet:"set_name"`
	Number          string `parquet:"number"`
	SetPrintedTotal *int32 `parquet:"set_printed_total,optional"`
	ReleaseDate     string `parquet:"release_date"`
	IngestionDate   string `parquet:"ingestion_date"`
}

// CardNumber renders the printed "number/total" form used on listing titles.
// Without a printed total it is just the number.
func (c CatalogCard) CardNumber() string {
	if c.SetPrintedTotal == nil {
		return c.Number
	}
	return c.Number + "/" + strconv.Itoa(int(*c.SetPrintedTotal))
}

// PriceVariant is a row of card_price_variant_master.
type PriceVariant struct {
	VariantID int64  `parquet:"card_price_variant_id"`
	CardID    string `parquet:"card_id"`
	PriceType string `parquet:"price_type"`
}

// PriceObservation is a row of the tcg_price_history fact.
type PriceObservation struct {
	CardID        string  `parquet:"card_id"`
	VariantID     int64   `parquet:"card_price_variant_id"`
	PriceDate     string  `parquet:"price_date"`
	MarketPrice   float64 `parquet:"market_price"`
	IngestionDate string  `parquet:"ingestion_date"`
}

// LeaderboardEntry is a row of weekly_top_tcg_cards.
type LeaderboardEntry struct {
	PriceDate      string  `parquet:"price_date"`
	Rank           int32   `parquet:"rank"`
	CardID         string  `parquet:"card_id"`
	MaxMarketPrice float64 `parquet:"max_market_price"`
	CardName       string  `parquet:"card_name"`
	SetName        string  `parquet:"set_name"`
	Number         string  `parquet:"number"`
	Rarity         string  `parquet:"rarity"`
	IngestionDate  string  `parquet:"ingestion_date"`
}
