package models

// InsightReport is the end-of-run market overview printed to the console.
type InsightReport struct {
	PriceDate string

	RankedCards     int
	AverageTopPrice float64
	MinTopPrice     float64
	MaxTopPrice     float64
	TopCards        []LeaderboardEntry
	CardsBySet      map[string]int

	SummarizedCards int
	TotalListings   int64
	GradedListings  int64
	MostListed      *MarketSummary
}
