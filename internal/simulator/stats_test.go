package simulator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	d := summarize([]float64{5, 1, 4, 2, 3})

	assert.InDelta(t, 3, d.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), d.Std, 1e-12)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 5.0, d.Max)
	assert.Equal(t, 3.0, d.Median)
	assert.Equal(t, 2.0, d.P25)
	assert.Equal(t, 4.0, d.P75)
}

func TestSummarize_EvenMedian(t *testing.T) {
	d := summarize([]float64{4, 1, 3, 2})
	assert.Equal(t, 2.5, d.Median)
}

func TestSummarize_Degenerate(t *testing.T) {
	assert.Equal(t, ScoreDistribution{}, summarize(nil))

	single := summarize([]float64{7})
	assert.Equal(t, constantDistribution(7), single)
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	summarize(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestSummarizePlayer(t *testing.T) {
	d := summarizePlayer([]float64{2, 8, 5})

	assert.InDelta(t, 5, d.Mean, 1e-12)
	assert.InDelta(t, 3, d.Std, 1e-12)
	assert.Equal(t, 2.0, d.Min)
	assert.Equal(t, 8.0, d.Max)
	assert.False(t, d.IsLocked)
}

func TestCreditWinners(t *testing.T) {
	tests := []struct {
		name   string
		totals []float64
		want   []float64
	}{
		{name: "single winner", totals: []float64{100, 90}, want: []float64{1, 0}},
		{name: "two-way tie", totals: []float64{100, 100}, want: []float64{0.5, 0.5}},
		{name: "three-way tie", totals: []float64{80, 80, 80}, want: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
		{name: "tie within tolerance", totals: []float64{100, 100 + 1e-12, 50}, want: []float64{0.5, 0.5, 0}},
		{name: "single team", totals: []float64{42}, want: []float64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wins := make([]float64, len(tt.totals))
			creditWinners(tt.totals, wins)
			assert.InDeltaSlice(t, tt.want, wins, 1e-12)
		})
	}
}
