package models

// ConfidenceTier grades how certain a listing-to-card match is.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
	TierReject ConfidenceTier = "reject"
)

// Amount is a marketplace money value. Value is a decimal string.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Image is a marketplace image reference.
type Image struct {
	ImageURL string `json:"imageUrl"`
}

// ItemSummary is one unprocessed marketplace search result.
type ItemSummary struct {
	ItemID          string  `json:"itemId"`
	Title           string  `json:"title"`
	Price           *Amount `json:"price,omitempty"`
	Condition       string  `json:"condition,omitempty"`
	ConditionID     string  `json:"conditionId,omitempty"`
	Image           *Image  `json:"image,omitempty"`
	ThumbnailImages []Image `json:"thumbnailImages,omitempty"`
	ItemWebURL      string  `json:"itemWebUrl,omitempty"`
}

// RawListingDocument is the typed view of one raw acquisition document.
type RawListingDocument struct {
	ItemSummaries []ItemSummary `json:"itemSummaries"`
}

// ListingRow is a row of the staging listings dataset. Every resolution
// signal is kept for auditability.
type ListingRow struct {
	ListingID            string   `parquet:"listing_id"`
	CardID               string   `parquet:"card_id"`
	PriceDate            string   `parquet:"price_date"`
	IngestionDate        string   `parquet:"ingestion_date"`
	Title                string   `parquet:"title"`
	TitleNormalized      string   `parquet:"title_normalized"`
	ImageURL             *string  `parquet:"image_url,optional"`
	ThumbnailURL         *string  `parquet:"thumbnail_url,optional"`
	PriceValue           *float64 `parquet:"price_value,optional"`
	Currency             *string  `parquet:"currency,optional"`
	Condition            *string  `parquet:"condition,optional"`
	ConditionID          *string  `parquet:"condition_id,optional"`
	IsGraded             bool     `parquet:"is_graded"`
	GradeValue           *int32   `parquet:"grade_value,optional"`
	ParsedGrade          *string  `parquet:"parsed_grade,optional"`
	ListingURL           *string  `parquet:"listing_url,optional"`
	NameMatch            bool     `parquet:"name_match"`
	CardNumberMatch      *bool    `parquet:"card_number_match,optional"`
	SetMatch             bool     `parquet:"set_match"`
	TitleMatchConfidence string   `parquet:"title_match_confidence"`
}

// SnapshotRow is a row of ebay_market_snapshot: accepted (high/medium) listings only.
type SnapshotRow struct {
	ListingID            string   `parquet:"listing_id"`
	CardID               string   `parquet:"card_id"`
	PriceValue           *float64 `parquet:"price_value,optional"`
	Currency             *string  `parquet:"currency,optional"`
	Condition            *string  `parquet:"condition,optional"`
	IsGraded             bool     `parquet:"is_graded"`
	GradeValue           *int32   `parquet:"grade_value,optional"`
	TitleMatchConfidence string   `parquet:"title_match_confidence"`
	Title                string   `parquet:"title"`
	ListingURL           *string  `parquet:"listing_url,optional"`
	IngestionDate        string   `parquet:"ingestion_date"`
}

// MarketSummary is the per-card market aggregate derived from the snapshot.
type MarketSummary struct {
	CardID               string  `parquet:"card_id"`
	PriceDate            string  `parquet:"price_date"`
	ListingCount         int64   `parquet:"listing_count"`
	MinPrice             float64 `parquet:"min_price"`
	MedianPrice          float64 `parquet:"median_price"`
	MaxPrice             float64 `parquet:"max_price"`
	GradedListingCount   int64   `parquet:"graded_listing_count"`
	UngradedListingCount int64   `parquet:"ungraded_listing_count"`
}

// StageReport is the per-stage tally printed at the end of every run.
type StageReport struct {
	Stage     string
	Processed int
	Accepted  int
	Rejected  int
	Skipped   int
	Failed    int

	// Tiers counts emitted rows per confidence tier, for stages that classify.
	Tiers map[ConfidenceTier]int
}
