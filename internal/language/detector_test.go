package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		in   string
		want Tag
	}{
		{"en", English},
		{"EN", English},
		{"english", English},
		{"tr", Turkish},
		{"Turkish", Turkish},
		{" tr ", Turkish},
		{"", Unknown},
		{"de", Unknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTag(tt.in), "ParseTag(%q)", tt.in)
	}
}

func TestDetect(t *testing.T) {
	d := NewDetector(English, 0.6)

	tests := []struct {
		name string
		text string
		want Tag
	}{
		{
			"english question",
			"What is the minimum GPA required to keep a merit scholarship?",
			English,
		},
		{
			"turkish question",
			"Yurt başvurusu için hangi belgeler gerekiyor ve son başvuru tarihi nedir?",
			Turkish,
		},
		{
			"empty falls back",
			"",
			English,
		},
		{
			"whitespace falls back",
			"   \n ",
			English,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.text))
		})
	}
}

func TestDetectFallbackConfiguration(t *testing.T) {
	d := NewDetector(Turkish, 0.99)

	// Letter-free input under a near-impossible threshold resolves to the
	// configured fallback rather than a guess.
	assert.Equal(t, Turkish, d.Detect("12345"))
}

func TestNewDetectorUnknownFallbackDefaultsToEnglish(t *testing.T) {
	d := NewDetector(Unknown, 0.6)
	assert.Equal(t, English, d.Detect(""))
}
