package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractGrade(t *testing.T) {
	tests := []struct {
		title   string
		graded  bool
		service string
		value   int
	}{
		{"Charizard 4/102 Base Set Holo PSA 9", true, "psa", 9},
		{"Umbreon VMAX PSA10 Gem Mint", true, "psa", 10},
		{"Lugia Neo Genesis BGS 9.5", true, "bgs", 9},
		{"Pikachu Illustrator CGC 7", true, "cgc", 7},
		{"Pikachu VMAX Vivid Voltage", false, "", 0},
		{"PSA ready Charizard NM", false, "", 0},
		{"psa 100 fake", false, "", 0},
	}

	for _, tt := range tests {
		g, ok := ExtractGrade(Normalize(tt.title))
		assert.Equal(t, tt.graded, ok, "graded(%q)", tt.title)
		if tt.graded {
			assert.Equal(t, tt.service, g.Service, "service(%q)", tt.title)
			assert.Equal(t, tt.value, g.Value, "value(%q)", tt.title)
		}
	}
}

func TestGradeLabel(t *testing.T) {
	assert.Equal(t, "PSA 10", Grade{Service: "psa", Value: 10}.Label())
}
