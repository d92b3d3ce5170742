package simulator

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// tieTolerance treats team totals this close as equal.
const tieTolerance = 1e-9

// ScoreDistribution summarizes a team's simulated totals.
type ScoreDistribution struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
}

// PlayerScoreDistribution summarizes a player's simulated scores.
type PlayerScoreDistribution struct {
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	IsLocked bool    `json:"is_locked"`
}

func constantDistribution(v float64) ScoreDistribution {
	return ScoreDistribution{Mean: v, Min: v, Max: v, Median: v, P25: v, P75: v}
}

func summarize(values []float64) ScoreDistribution {
	if len(values) == 0 {
		return ScoreDistribution{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return ScoreDistribution{
		Mean:   stat.Mean(sorted, nil),
		Std:    stdDev(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: median(sorted),
		P25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
}

func summarizePlayer(values []float64) PlayerScoreDistribution {
	if len(values) == 0 {
		return PlayerScoreDistribution{}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return PlayerScoreDistribution{
		Mean: stat.Mean(values, nil),
		Std:  stdDev(values),
		Min:  lo,
		Max:  hi,
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// stdDev is the sample standard deviation, 0 for fewer than two values.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// creditWinners adds 1/|winners| to wins for every team tied for the top
// total.
func creditWinners(totals, wins []float64) {
	if len(totals) == 0 {
		return
	}
	best := totals[0]
	for _, t := range totals[1:] {
		best = math.Max(best, t)
	}

	winners := 0
	for _, t := range totals {
		if t >= best-tieTolerance {
			winners++
		}
	}
	if winners == 0 {
		return
	}
	credit := 1 / float64(winners)
	for i, t := range totals {
		if t >= best-tieTolerance {
			wins[i] += credit
		}
	}
}
