package services

import (
	"strings"
	"unicode"
)

// catalogDescriptors are variant suffixes stripped from catalog names so that
// "Charizard-GX" or "Pikachu VMAX" match listings that only name the base card.
var catalogDescriptors = map[string]struct{}{
	"ex":    {},
	"gx":    {},
	"v":     {},
	"vmax":  {},
	"vstar": {},
	"promo": {},
	"alt":   {},
	"art":   {},
	"lvx":   {},
}

// deltaSymbol marks delta-species cards and is dropped from catalog names.
const deltaSymbol = "δ"

// Normalize lower-cases text, turns punctuation into whitespace and collapses
// runs of whitespace. Descriptors such as EX or VMAX are kept.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeCatalogName reduces a catalog card name to its base name by
// removing variant descriptors and the delta symbol.
func NormalizeCatalogName(name string) string {
	normalized := strings.ReplaceAll(Normalize(name), deltaSymbol, "")

	tokens := strings.Fields(normalized)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, descriptor := catalogDescriptors[tok]; descriptor {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// NormalizeSetName normalizes a catalog set name for substring matching.
func NormalizeSetName(setName string) string {
	return Normalize(setName)
}
