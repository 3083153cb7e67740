package services

import (
	"regexp"
	"strings"

	"tcg-market-pipeline/models"
)

// cardNumberRegexp finds a printed "number/total" in a raw title.
var cardNumberRegexp = regexp.MustCompile(`\b(\d{1,3}/\d{1,3})\b`)

// Match holds the signals and resulting tier of one listing-to-card match.
// NumberMatch is nil when the title carries no card number.
type Match struct {
	NameMatch   bool
	NumberMatch *bool
	SetMatch    bool
	Tier        models.ConfidenceTier
}

// CatalogIndex is a read-only card_id lookup built once per run.
type CatalogIndex struct {
	cards map[string]models.CatalogCard
}

// NewCatalogIndex indexes cards by id. The first record for an id wins.
func NewCatalogIndex(cards []models.CatalogCard) *CatalogIndex {
	idx := &CatalogIndex{cards: make(map[string]models.CatalogCard, len(cards))}
	for _, c := range cards {
		if _, dup := idx.cards[c.CardID]; dup {
			continue
		}
		idx.cards[c.CardID] = c
	}
	return idx
}

// Lookup returns the catalog card for id.
func (idx *CatalogIndex) Lookup(cardID string) (models.CatalogCard, bool) {
	c, ok := idx.cards[cardID]
	return c, ok
}

// Len returns the number of indexed cards.
func (idx *CatalogIndex) Len() int {
	return len(idx.cards)
}

// ExtractCardNumber returns the first "n/total" found in a raw title.
func ExtractCardNumber(rawTitle string) (string, bool) {
	m := cardNumberRegexp.FindStringSubmatch(rawTitle)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ClassifyConfidence applies the match policy. Order matters: a name or
// number mismatch rejects regardless of the set, an exact number is decisive
// for high, and a missing number can only yield medium or low.
func ClassifyConfidence(nameMatch bool, numberMatch *bool, setMatch bool) models.ConfidenceTier {
	switch {
	case !nameMatch:
		return models.TierReject
	case numberMatch != nil && !*numberMatch:
		return models.TierReject
	case numberMatch != nil && *numberMatch:
		return models.TierHigh
	case setMatch:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// Resolve matches a listing title against its candidate catalog card.
func Resolve(titleNormalized, rawTitle string, card models.CatalogCard) Match {
	m := Match{
		NameMatch: strings.Contains(titleNormalized, NormalizeCatalogName(card.CardName)),
	}

	if number, found := ExtractCardNumber(rawTitle); found {
		eq := number == card.CardNumber()
		m.NumberMatch = &eq
	}

	normalizedSet := NormalizeSetName(card.SetName)
	m.SetMatch = normalizedSet != "" && strings.Contains(titleNormalized, normalizedSet)

	m.Tier = ClassifyConfidence(m.NameMatch, m.NumberMatch, m.SetMatch)
	return m
}
