package services

import (
	"context"
	"fmt"
	"sort"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

// LeaderboardSize is the number of ranked cards per price date.
const LeaderboardSize = 200

// RankCards joins the price facts of one price date to the variant master and
// the catalog, takes each card's highest market price across its variants
// and ranks the top limit cards. Equal prices are ordered by card_id.
func RankCards(history []models.PriceObservation, variants []models.PriceVariant, catalog *CatalogIndex, priceDate, ingestionDate string, limit int) []models.LeaderboardEntry {
	known := make(map[int64]string, len(variants))
	for _, v := range variants {
		known[v.VariantID] = v.CardID
	}

	best := make(map[string]float64)
	for _, o := range history {
		if o.PriceDate != priceDate {
			continue
		}
		if cardID, ok := known[o.VariantID]; !ok || cardID != o.CardID {
			continue
		}
		if _, ok := catalog.Lookup(o.CardID); !ok {
			continue
		}
		if cur, seen := best[o.CardID]; !seen || o.MarketPrice > cur {
			best[o.CardID] = o.MarketPrice
		}
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := best[ids[i]], best[ids[j]]
		if pi != pj {
			return pi > pj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}

	entries := make([]models.LeaderboardEntry, 0, len(ids))
	for i, id := range ids {
		card, _ := catalog.Lookup(id)
		entries = append(entries, models.LeaderboardEntry{
			PriceDate:      priceDate,
			Rank:           int32(i + 1),
			CardID:         id,
			MaxMarketPrice: best[id],
			CardName:       card.CardName,
			SetName:        card.SetName,
			Number:         card.Number,
			Rarity:         card.Rarity,
			IngestionDate:  ingestionDate,
		})
	}
	return entries
}

// LeaderboardService builds weekly_top_tcg_cards partitions.
type LeaderboardService struct {
	logger  *utils.Logger
	lake    *storage.Lake
	catalog storage.CatalogSource
}

// NewLeaderboardService reads the catalog from the lake's card_master unless
// WithCatalog replaces it.
func NewLeaderboardService(logger *utils.Logger, lake *storage.Lake) *LeaderboardService {
	return &LeaderboardService{logger: logger, lake: lake, catalog: lake.Catalog()}
}

// WithCatalog sets the source of the card attributes joined into the ranking.
func (s *LeaderboardService) WithCatalog(src storage.CatalogSource) *LeaderboardService {
	s.catalog = src
	return s
}

// Build ranks priceDate (latest price partition when empty) against the
// catalog and every variant master partition, and replaces the leaderboard
// partition.
func (s *LeaderboardService) Build(ctx context.Context, priceDate, ingestionDate string) ([]models.LeaderboardEntry, error) {
	var err error
	if priceDate == "" {
		if priceDate, err = s.lake.PriceHistory.Latest("price_date"); err != nil {
			return nil, err
		}
	}

	history, err := s.lake.PriceHistory.Read(storage.PriceDate(priceDate))
	if err != nil {
		return nil, err
	}

	variants, err := s.allVariants()
	if err != nil {
		return nil, err
	}

	cards, err := s.catalog.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	catalog := NewCatalogIndex(cards)

	entries := RankCards(history, variants, catalog, priceDate, ingestionDate, LeaderboardSize)
	if len(entries) < LeaderboardSize {
		s.logger.Warn("[leaderboard] %s: only %d qualifying cards", priceDate, len(entries))
	}

	if err := s.lake.Leaderboard.Write(entries, storage.PriceDate(priceDate)); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	s.logger.Info("[leaderboard] %s: %d cards ranked", priceDate, len(entries))
	return entries, nil
}

// allVariants unions every variant master partition so that older price
// dates still join to variants absent from the newest ingestion.
func (s *LeaderboardService) allVariants() ([]models.PriceVariant, error) {
	dates, err := s.lake.VariantMaster.Values("ingestion_date")
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%s: %w", s.lake.VariantMaster.Name, storage.ErrPartitionNotFound)
	}

	seen := make(map[int64]struct{})
	var out []models.PriceVariant
	for _, d := range dates {
		rows, err := s.lake.VariantMaster.Read(storage.IngestionDate(d))
		if err != nil {
			return nil, err
		}
		for _, v := range rows {
			if _, dup := seen[v.VariantID]; dup {
				continue
			}
			seen[v.VariantID] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}

// LatestLeaderboard returns the newest leaderboard price date and its rows
// ordered by rank.
func LatestLeaderboard(lake *storage.Lake) (string, []models.LeaderboardEntry, error) {
	priceDate, err := lake.Leaderboard.Latest("price_date")
	if err != nil {
		return "", nil, err
	}
	entries, err := lake.Leaderboard.Read(storage.PriceDate(priceDate))
	if err != nil {
		return "", nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	return priceDate, entries, nil
}
