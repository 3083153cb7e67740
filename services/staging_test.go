package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-market-pipeline/config"
	"tcg-market-pipeline/models"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

var charizard = models.CatalogCard{
	CardID: "base1-4", CardName: "Charizard", SetID: "base1", SetName: "Base Set",
	Number: "4", SetPrintedTotal: int32Ptr(102), Rarity: "Rare Holo",
}

func item(id, title, price string) models.ItemSummary {
	return models.ItemSummary{
		ItemID:     id,
		Title:      title,
		Price:      &models.Amount{Value: price, Currency: "USD"},
		Condition:  "Used",
		ItemWebURL: "https://www.ebay.com/itm/" + id,
		Image:      &models.Image{ImageURL: "https://i.ebayimg.com/" + id + ".jpg"},
	}
}

func TestTransformListingGraded(t *testing.T) {
	row, ok := TransformListing(item("v1|1|0", "Charizard 4/102 Base Set Holo PSA 9", "1250.00"), charizard, "2024-05-01", "2024-05-02")
	require.True(t, ok)

	assert.Equal(t, "v1|1|0", row.ListingID)
	assert.Equal(t, "base1-4", row.CardID)
	assert.Equal(t, "charizard 4 102 base set holo psa 9", row.TitleNormalized)
	assert.Equal(t, "high", row.TitleMatchConfidence)
	assert.True(t, row.IsGraded)
	require.NotNil(t, row.GradeValue)
	assert.Equal(t, int32(9), *row.GradeValue)
	require.NotNil(t, row.ParsedGrade)
	assert.Equal(t, "PSA 9", *row.ParsedGrade)
	require.NotNil(t, row.PriceValue)
	assert.Equal(t, 1250.0, *row.PriceValue)
	assert.Equal(t, "USD", *row.Currency)
	assert.Equal(t, "https://www.ebay.com/itm/v1|1|0", *row.ListingURL)
	assert.Nil(t, row.ThumbnailURL)
	assert.Nil(t, row.ConditionID)
}

func TestTransformListingDropsNonCard(t *testing.T) {
	_, ok := TransformListing(item("v1|2|0", "Custom Gold Foil Charizard Proxy Card", "9.99"), charizard, "2024-05-01", "2024-05-02")
	assert.False(t, ok)
}

func TestTransformListingKeepsRejectTier(t *testing.T) {
	row, ok := TransformListing(item("v1|3|0", "Charizard 11/108 Evolutions", "3.50"), charizard, "2024-05-01", "2024-05-02")
	require.True(t, ok)
	assert.Equal(t, "reject", row.TitleMatchConfidence)
	assert.False(t, row.IsGraded)
	assert.Nil(t, row.GradeValue)
}

func TestTransformListingUnparsablePrice(t *testing.T) {
	it := item("v1|4|0", "Charizard Base Set", "n/a")
	row, ok := TransformListing(it, charizard, "2024-05-01", "2024-05-02")
	require.True(t, ok)
	assert.Nil(t, row.PriceValue)
	assert.Equal(t, "USD", *row.Currency)
	assert.Equal(t, "medium", row.TitleMatchConfidence)
}

func newTestLake(t *testing.T) *storage.Lake {
	t.Helper()
	lake, err := storage.NewLake(config.NewPaths(t.TempDir()))
	require.NoError(t, err)
	return lake
}

func TestListingStagerStage(t *testing.T) {
	lake := newTestLake(t)
	rawDir := storage.PartitionDir(lake.Paths.RawEbayListings, storage.PriceDate("2024-05-01"), storage.IngestionDate("2024-05-02"))

	require.NoError(t, storage.WriteJSON(filepath.Join(rawDir, "base1-4.json"), models.RawListingDocument{
		ItemSummaries: []models.ItemSummary{
			item("v1|1|0", "Charizard 4/102 Base Set Holo PSA 9", "1250.00"),
			item("v1|2|0", "Custom Gold Foil Charizard Proxy Card", "9.99"),
			item("v1|3|0", "Charizard 11/108 Evolutions", "3.50"),
			item("v1|4|0", "Charizard Holo Base Set Unlimited", "300"),
			item("v1|1|0", "Charizard 4/102 Base Set Holo PSA 9", "1250.00"),
			{Title: "no id"},
		},
	}))
	require.NoError(t, storage.WriteJSON(filepath.Join(rawDir, "unknown-1.json"), models.RawListingDocument{}))

	stager := NewListingStager(utils.NewNopLogger(), NewCatalogIndex([]models.CatalogCard{charizard}), lake.Paths.RawEbayListings, lake.StagedListings)
	report, err := stager.Stage("2024-05-01", "2024-05-02")
	require.NoError(t, err)

	assert.Equal(t, 6, report.Processed)
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 2, report.Skipped, "unknown card file and item without id")
	assert.Equal(t, 1, report.Tiers[models.TierReject])

	rows, err := lake.StagedListings.Read(storage.PriceDate("2024-05-01"), storage.IngestionDate("2024-05-02"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "high", rows[0].TitleMatchConfidence)
	assert.Equal(t, "reject", rows[1].TitleMatchConfidence)
	assert.Equal(t, "medium", rows[2].TitleMatchConfidence)
}

func TestListingStagerMissingRawPartition(t *testing.T) {
	lake := newTestLake(t)
	stager := NewListingStager(utils.NewNopLogger(), NewCatalogIndex(nil), lake.Paths.RawEbayListings, lake.StagedListings)
	_, err := stager.Stage("2024-05-01", "2024-05-02")
	assert.ErrorIs(t, err, storage.ErrPartitionNotFound)
}

func TestLatestRawPartition(t *testing.T) {
	lake := newTestLake(t)
	for _, p := range [][2]string{{"2024-04-24", "2024-04-25"}, {"2024-05-01", "2024-05-02"}, {"2024-05-01", "2024-05-03"}} {
		dir := storage.PartitionDir(lake.Paths.RawEbayListings, storage.PriceDate(p[0]), storage.IngestionDate(p[1]))
		require.NoError(t, storage.WriteJSON(filepath.Join(dir, "x.json"), models.RawListingDocument{}))
	}

	pd, id, err := LatestRawPartition(lake.Paths.RawEbayListings)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", pd)
	assert.Equal(t, "2024-05-03", id)
}
