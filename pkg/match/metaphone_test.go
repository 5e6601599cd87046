package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetaphone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Summer Trip", "SMRTRP"},
		{"Summer Trip Party", "SMRTRPPRT"},
		{"Thompson", "0MPSN"},
		{"Philip", "FLP"},
		{"Church", "XRX"},
		{"Science", "SNS"},
		{"Xavier", "SFR"},
		{"Edge", "EJ"},
		{"Cia", "X"},
		{"Knot", "NT"},
		{"Aero", "ER"},
		{"  42 Summer", "SMR"},
		{"", ""},
		{"123", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Metaphone(tt.in))
		})
	}
}

func TestMetaphoneIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, Metaphone("SUMMER TRIP"), Metaphone("summer trip"))
}

func TestSimilarText(t *testing.T) {
	assert.Equal(t, 4, SimilarText("World", "Word"))
	assert.Equal(t, 5, SimilarText("bafoobar", "barfoo"))
	assert.Equal(t, 3, SimilarText("barfoo", "bafoobar"))
	assert.Equal(t, 0, SimilarText("", "abc"))
	assert.Equal(t, 6, SimilarText("SMRTRP", "SMRTRPPRT"))
}

func TestSimilarPercent(t *testing.T) {
	assert.InDelta(t, 71.428571, SimilarPercent("bafoobar", "barfoo"), 1e-5)
	assert.InDelta(t, 80.0, SimilarPercent("SMRTRP", "SMRTRPPRT"), 1e-9)
	assert.Equal(t, float64(100), SimilarPercent("ABC", "ABC"))
	assert.Zero(t, SimilarPercent("", ""))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "Zilele Orasului", Fold("Zilele Orașului"))
	assert.Equal(t, "Cafe Creme", Fold("Café Crème"))
	assert.Equal(t, "plain", Fold("plain"))
}
