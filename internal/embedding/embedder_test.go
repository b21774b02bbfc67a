package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello   world  ", "hello world"},
		{"line\none\n\nline two", "line one line two"},
		{"tabs\tand  spaces", "tabs and spaces"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.in))
	}
}

func TestNormalizeProducesUnitVector(t *testing.T) {
	vec := []float32{3, 4}
	Normalize(vec)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
	assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vec[1]), 1e-6)
}

func TestNormalizeZeroVectorUnchanged(t *testing.T) {
	vec := []float32{0, 0, 0}
	Normalize(vec)
	assert.Equal(t, []float32{0, 0, 0}, vec)
}

func TestDimension(t *testing.T) {
	c := NewClient("http://localhost:8000/v1", "", "bge-m3", 1024)
	assert.Equal(t, 1024, c.Dimension())
}
