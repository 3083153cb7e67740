package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tcg-market-pipeline/models"
)

func TestUpsertQueryPlaceholders(t *testing.T) {
	total := int32(102)
	batch := []models.CatalogCard{
		{CardID: "base1-4", CardName: "Charizard", SetID: "base1", SetName: "Base", Number: "4", SetPrintedTotal: &total, IngestionDate: "2024-05-02"},
		{CardID: "swshp-SWSH050", CardName: "Pikachu V", SetID: "swshp", SetName: "SWSH Black Star Promos", Number: "SWSH050", IngestionDate: "2024-05-02"},
	}

	query, args := upsertQuery(batch)
	assert.Len(t, args, 2*cardColumns)
	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)")
	assert.Contains(t, query, "($11,$12,$13,$14,$15,$16,$17,$18,$19,$20)")
	assert.True(t, strings.Contains(query, "ON CONFLICT (card_id) DO UPDATE"))

	assert.Equal(t, int32(102), args[7])
	assert.Nil(t, args[17], "missing printed total is written as NULL")
}
