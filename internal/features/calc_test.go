package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     float64
	}{
		{"half away from zero positive", 0.125, 2, 0.13},
		{"half away from zero negative", -0.125, 2, -0.13},
		{"integer half", -2.5, 0, -3},
		{"four decimals", math.Pi, 4, 3.1416},
		{"NaN collapses", math.NaN(), 2, 0},
		{"Inf collapses", math.Inf(1), 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Round(tt.value, tt.decimals))
		})
	}
}

func TestVarianceIsPopulation(t *testing.T) {
	assert.Equal(t, 4.0, Variance([]float64{2, 4, 4, 4, 5, 5, 7, 9}))
	assert.Equal(t, 0.0, Variance(nil))
}

func TestSafeDiv(t *testing.T) {
	assert.Equal(t, 0.0, SafeDiv(10, 0))
	assert.Equal(t, 0.0, SafeDiv(10, -1))
	assert.Equal(t, 2.5, SafeDiv(10, 4))
}

func TestMinMax(t *testing.T) {
	lo, hi := MinMax([]float64{3, -1, 8, 2})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 8.0, hi)

	lo, hi = MinMax(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}
