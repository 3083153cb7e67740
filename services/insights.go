package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/utils"
)

type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, out: os.Stdout}
}

// WithOutput redirects printed reports.
func (s *InsightService) WithOutput(w io.Writer) *InsightService {
	s.out = w
	return s
}

func (s *InsightService) Generate(priceDate string, leaderboard []models.LeaderboardEntry, summaries []models.MarketSummary) *models.InsightReport {
	report := &models.InsightReport{
		PriceDate:  priceDate,
		CardsBySet: make(map[string]int),
	}

	if len(leaderboard) > 0 {
		ranked := make([]models.LeaderboardEntry, len(leaderboard))
		copy(ranked, leaderboard)
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

		report.RankedCards = len(ranked)
		report.MinTopPrice = ranked[0].MaxMarketPrice
		report.MaxTopPrice = ranked[0].MaxMarketPrice
		var total float64
		for _, e := range ranked {
			total += e.MaxMarketPrice
			if e.MaxMarketPrice < report.MinTopPrice {
				report.MinTopPrice = e.MaxMarketPrice
			}
			if e.MaxMarketPrice > report.MaxTopPrice {
				report.MaxTopPrice = e.MaxMarketPrice
			}
			if e.SetName != "" {
				report.CardsBySet[e.SetName]++
			}
		}
		report.AverageTopPrice = round2(total / float64(len(ranked)))
		report.MinTopPrice = round2(report.MinTopPrice)
		report.MaxTopPrice = round2(report.MaxTopPrice)

		// Top 5 by rank
		if len(ranked) > 5 {
			report.TopCards = ranked[:5]
		} else {
			report.TopCards = ranked
		}
	}

	for i := range summaries {
		sm := &summaries[i]
		report.SummarizedCards++
		report.TotalListings += sm.ListingCount
		report.GradedListings += sm.GradedListingCount
		if report.MostListed == nil || sm.ListingCount > report.MostListed.ListingCount {
			report.MostListed = sm
		}
	}

	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	w := s.out
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  CARD MARKET INSIGHTS  %s\033[0m\n", r.PriceDate)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Leaderboard
	fmt.Fprintf(w, "\033[1;33m  Leaderboard\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Ranked cards      : \033[1m%d\033[0m\n", r.RankedCards)
	if r.RankedCards > 0 {
		fmt.Fprintf(w, "  Average top price : \033[1;32m$%.2f\033[0m\n", r.AverageTopPrice)
		fmt.Fprintf(w, "  Lowest ranked     : \033[1;32m$%.2f\033[0m\n", r.MinTopPrice)
		fmt.Fprintf(w, "  Highest ranked    : \033[1;32m$%.2f\033[0m\n", r.MaxTopPrice)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Top 5 Cards\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopCards) == 0 {
		fmt.Fprintf(w, "  No ranked cards\n")
	} else {
		for _, e := range r.TopCards {
			title := truncate(e.CardName+" ("+e.SetName+")", 38)
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m$%.2f\033[0m\n",
				e.Rank, title, e.MaxMarketPrice)
		}
	}
	fmt.Fprintln(w)

	// Marketplace
	fmt.Fprintf(w, "\033[1;33m  Marketplace Listings\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Cards summarized : \033[1m%d\033[0m\n", r.SummarizedCards)
	fmt.Fprintf(w, "  Listings         : \033[1m%d\033[0m (graded %d)\n", r.TotalListings, r.GradedListings)
	if r.MostListed != nil {
		fmt.Fprintf(w, "  Most listed      : %s, %d listings, median \033[1;31m$%.2f\033[0m\n",
			r.MostListed.CardID, r.MostListed.ListingCount, r.MostListed.MedianPrice)
	}
	fmt.Fprintln(w)

	// Cards by set
	fmt.Fprintf(w, "\033[1;33m  Ranked Cards by Set\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.CardsBySet) == 0 {
		fmt.Fprintf(w, "  No set data\n")
	} else {
		type setCount struct {
			set   string
			count int
		}
		var sets []setCount
		for set, cnt := range r.CardsBySet {
			sets = append(sets, setCount{set, cnt})
		}
		sort.Slice(sets, func(i, j int) bool {
			if sets[i].count != sets[j].count {
				return sets[i].count > sets[j].count
			}
			return sets[i].set < sets[j].set
		})
		for _, sc := range sets {
			bar := strings.Repeat("█", sc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(sc.set, 28), bar, sc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// PrintStage writes the one-line summary every stage ends with.
func (s *InsightService) PrintStage(r models.StageReport) {
	line := fmt.Sprintf("[%s] processed=%d accepted=%d rejected=%d skipped=%d failed=%d",
		r.Stage, r.Processed, r.Accepted, r.Rejected, r.Skipped, r.Failed)

	if len(r.Tiers) > 0 {
		var parts []string
		for _, t := range []models.ConfidenceTier{models.TierHigh, models.TierMedium, models.TierLow, models.TierReject} {
			parts = append(parts, fmt.Sprintf("%s=%d", t, r.Tiers[t]))
		}
		line += " tiers(" + strings.Join(parts, " ") + ")"
	}

	s.logger.Info("%s", line)
	fmt.Fprintln(s.out, line)
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
