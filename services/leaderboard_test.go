package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

func syntheticFacts(n int, priceDate string) ([]models.CatalogCard, []models.PriceVariant, []models.PriceObservation) {
	var cards []models.CatalogCard
	var variants []models.PriceVariant
	var history []models.PriceObservation

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sv1-%03d", i)
		cards = append(cards, models.CatalogCard{CardID: id, CardName: "Card " + id, SetID: "sv1", SetName: "Scarlet", Number: fmt.Sprint(i)})
		for _, vt := range []string{"normal", "holofoil"} {
			vid := VariantID(id, vt)
			variants = append(variants, models.PriceVariant{VariantID: vid, CardID: id, PriceType: vt})
			// price cycles so that many cards tie on the same maximum
			price := float64(i%37) + 1
			if vt == "normal" {
				price /= 2
			}
			history = append(history, models.PriceObservation{CardID: id, VariantID: vid, PriceDate: priceDate, MarketPrice: price})
		}
	}
	return cards, variants, history
}

func TestRankCardsInvariants(t *testing.T) {
	cards, variants, history := syntheticFacts(450, "2024-05-01")
	entries := RankCards(history, variants, NewCatalogIndex(cards), "2024-05-01", "2024-05-02", LeaderboardSize)

	require.Len(t, entries, LeaderboardSize)
	ranks := make(map[int32]bool)
	for i, e := range entries {
		assert.Equal(t, int32(i+1), e.Rank)
		ranks[e.Rank] = true
		if i > 0 {
			prev := entries[i-1]
			assert.GreaterOrEqual(t, prev.MaxMarketPrice, e.MaxMarketPrice, "price must be non-increasing")
			if prev.MaxMarketPrice == e.MaxMarketPrice {
				assert.Less(t, prev.CardID, e.CardID, "ties break by card_id")
			}
		}
	}
	assert.Len(t, ranks, LeaderboardSize)
	assert.Equal(t, 37.0, entries[0].MaxMarketPrice, "maximum is taken across variants")
	assert.Equal(t, "sv1-036", entries[0].CardID)
}

func TestRankCardsSkipsUnknownVariantsAndCards(t *testing.T) {
	cards := []models.CatalogCard{{CardID: "a", CardName: "A"}, {CardID: "b", CardName: "B"}}
	variants := []models.PriceVariant{{VariantID: 1, CardID: "a"}, {VariantID: 2, CardID: "b"}, {VariantID: 3, CardID: "ghost"}}
	history := []models.PriceObservation{
		{CardID: "a", VariantID: 1, PriceDate: "d", MarketPrice: 5},
		{CardID: "b", VariantID: 2, PriceDate: "d", MarketPrice: 5},
		{CardID: "ghost", VariantID: 3, PriceDate: "d", MarketPrice: 100},
		{CardID: "a", VariantID: 99, PriceDate: "d", MarketPrice: 1000},
		{CardID: "b", VariantID: 2, PriceDate: "other", MarketPrice: 500},
	}

	entries := RankCards(history, variants, NewCatalogIndex(cards), "d", "i", LeaderboardSize)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].CardID)
	assert.Equal(t, "b", entries[1].CardID)
	assert.Equal(t, 5.0, entries[0].MaxMarketPrice)
	assert.Equal(t, "A", entries[0].CardName)
}

func TestLeaderboardServiceBuild(t *testing.T) {
	lake := newTestLake(t)
	cards, variants, history := syntheticFacts(250, "2024-05-01")
	for i := range cards {
		cards[i].IngestionDate = "2024-05-02"
	}
	for i := range history {
		history[i].IngestionDate = "2024-05-02"
	}
	require.NoError(t, lake.CardMaster.Write(cards, storage.IngestionDate("2024-05-02")))
	require.NoError(t, lake.VariantMaster.Write(variants, storage.IngestionDate("2024-05-02")))
	require.NoError(t, lake.PriceHistory.Write(MergeObservations(nil, history), storage.PriceDate("2024-05-01")))

	svc := NewLeaderboardService(utils.NewNopLogger(), lake)
	entries, err := svc.Build(context.Background(), "", "2024-05-02")
	require.NoError(t, err)
	assert.Len(t, entries, LeaderboardSize)

	priceDate, stored, err := LatestLeaderboard(lake)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", priceDate)
	assert.Equal(t, entries, stored)
}

func TestLeaderboardServiceMissingInput(t *testing.T) {
	svc := NewLeaderboardService(utils.NewNopLogger(), newTestLake(t))
	_, err := svc.Build(context.Background(), "", "2024-05-02")
	assert.ErrorIs(t, err, storage.ErrPartitionNotFound)
}

type staticCatalog []models.CatalogCard

func (c staticCatalog) FetchAll(context.Context) ([]models.CatalogCard, error) { return c, nil }

// twoCardFacts writes price facts for a and b where each card's variant only
// exists in a different variant master partition.
func twoCardFacts(t *testing.T, lake *storage.Lake) {
	t.Helper()
	va, vb := VariantID("a", "holofoil"), VariantID("b", "normal")
	require.NoError(t, lake.VariantMaster.Write([]models.PriceVariant{{VariantID: va, CardID: "a", PriceType: "holofoil"}}, storage.IngestionDate("2024-04-01")))
	require.NoError(t, lake.VariantMaster.Write([]models.PriceVariant{{VariantID: vb, CardID: "b", PriceType: "normal"}}, storage.IngestionDate("2024-05-02")))
	require.NoError(t, lake.PriceHistory.Write([]models.PriceObservation{
		{CardID: "a", VariantID: va, PriceDate: "2024-03-30", MarketPrice: 90, IngestionDate: "2024-04-01"},
		{CardID: "b", VariantID: vb, PriceDate: "2024-03-30", MarketPrice: 40, IngestionDate: "2024-05-02"},
	}, storage.PriceDate("2024-03-30")))
}

func TestLeaderboardServiceJoinsEveryVariantPartition(t *testing.T) {
	lake := newTestLake(t)
	twoCardFacts(t, lake)
	require.NoError(t, lake.CardMaster.Write([]models.CatalogCard{
		{CardID: "a", CardName: "A", SetID: "s", SetName: "S", Number: "1", IngestionDate: "2024-05-02"},
		{CardID: "b", CardName: "B", SetID: "s", SetName: "S", Number: "2", IngestionDate: "2024-05-02"},
	}, storage.IngestionDate("2024-05-02")))

	entries, err := NewLeaderboardService(utils.NewNopLogger(), lake).Build(context.Background(), "2024-03-30", "2024-05-03")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].CardID, "variant only in the older partition still joins")
	assert.Equal(t, "b", entries[1].CardID)
}

func TestLeaderboardServiceUsesConfiguredCatalog(t *testing.T) {
	lake := newTestLake(t)
	twoCardFacts(t, lake)

	src := staticCatalog{{CardID: "a", CardName: "Mirrored A", SetID: "s", SetName: "S", Number: "1"}}
	entries, err := NewLeaderboardService(utils.NewNopLogger(), lake).WithCatalog(src).Build(context.Background(), "", "2024-05-03")
	require.NoError(t, err)
	require.Len(t, entries, 1, "cards missing from the catalog are not ranked")
	assert.Equal(t, "Mirrored A", entries[0].CardName)
}
