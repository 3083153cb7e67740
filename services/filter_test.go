package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNonCard(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Custom Gold Foil Charizard Proxy Card", true},
		{"Charizard Fan Art Card", true},
		{"Pikachu Sticker Sheet", true},
		{"Charizard Poster 24x36", true},
		{"Blue Foil Mewtwo Card", true},
		{"Silver foil Lugia", true},
		{"Umbreon acrylic display case", true},
		{"Rayquaza Replica Metal Card", true},
		{"Charizard 4/102 Base Set Holo PSA 9", false},
		{"Pikachu VMAX Vivid Voltage", false},
		{"Foil Pikachu Reverse Holo", false},
		{"Gengar Holo 5/62 Fossil", false},
	}

	for _, tt := range tests {
		got := IsNonCard(Normalize(tt.title))
		assert.Equal(t, tt.want, got, "IsNonCard(%q)", tt.title)
	}
}
