package simulator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/stitts-dev/matchup-sim/internal/types"
)

// ErrUnknownDistribution is raised when sampling a distribution type the
// fitter never produces.
var ErrUnknownDistribution = errors.New("unknown distribution type")

// DistributionType identifies the family fitted to a player's output.
type DistributionType string

const (
	DistributionConstant        DistributionType = "constant"
	DistributionGamma           DistributionType = "gamma"
	DistributionLogNormal       DistributionType = "lognormal"
	DistributionTruncatedNormal DistributionType = "truncated_normal"
)

// Truncated-normal parameters for players projected at or below zero.
const (
	truncatedNormalMean = 0.5
	truncatedNormalStd  = 1.5
)

// Small-mean, high-variance players use a log-normal instead of a gamma.
const (
	logNormalMaxMean = 3.0
	logNormalMinCV   = 1.0
)

// uniformEpsilon keeps inverse CDFs away from their infinite tails.
const uniformEpsilon = 1e-12

// CVBounds holds the plausible coefficient of variation range for a position
// and the CV assumed when a player has no scoring history.
type CVBounds struct {
	Min    float64
	Max    float64
	Rookie float64
}

var positionCVBounds = map[types.Position]CVBounds{
	types.PositionQB:  {Min: 0.25, Max: 0.60, Rookie: 0.40},
	types.PositionRB:  {Min: 0.35, Max: 0.85, Rookie: 0.55},
	types.PositionWR:  {Min: 0.40, Max: 0.95, Rookie: 0.65},
	types.PositionTE:  {Min: 0.45, Max: 1.05, Rookie: 0.70},
	types.PositionK:   {Min: 0.35, Max: 0.80, Rookie: 0.50},
	types.PositionDST: {Min: 0.50, Max: 1.20, Rookie: 0.75},
}

var defaultCVBounds = CVBounds{Min: 0.2, Max: 1.5, Rookie: 0.6}

// BoundsFor returns the CV bounds for a position.
func BoundsFor(position types.Position) CVBounds {
	if b, ok := positionCVBounds[position]; ok {
		return b
	}
	return defaultCVBounds
}

// DistributionParams is a fitted per-player distribution. Only the fields
// for Type are populated.
type DistributionParams struct {
	Type       DistributionType `json:"distribution_type"`
	Alpha      float64          `json:"alpha,omitempty"`
	Theta      float64          `json:"theta,omitempty"`
	Mu         float64          `json:"mu,omitempty"`
	Sigma      float64          `json:"sigma,omitempty"`
	MeanPoints float64          `json:"mean_points,omitempty"`
}

// ResolveStdDev estimates a player's standard deviation for this week. A
// usable scoring history contributes its CV, scaled to the current
// projection; otherwise the position's rookie CV is used.
func ResolveStdDev(projection float64, stats *types.VarianceStats, position types.Position) float64 {
	cv := BoundsFor(position).Rookie
	if stats != nil && stats.GamesPlayed > 0 && stats.MeanPoints > 0 && stats.StdPoints > 0 {
		cv = stats.StdPoints / stats.MeanPoints
	}
	return cv * math.Abs(projection)
}

// FitDistribution selects and parameterizes a distribution for a projected
// mean and standard deviation.
func FitDistribution(mean, std float64, position types.Position) DistributionParams {
	if math.IsNaN(std) || std < 0 {
		std = 0
	}

	if mean > 0 && std > 0 {
		bounds := BoundsFor(position)
		cv := math.Max(bounds.Min, math.Min(bounds.Max, std/mean))
		std = cv * mean
	}

	switch {
	case std == 0:
		return DistributionParams{Type: DistributionConstant, MeanPoints: mean}
	case mean <= 0:
		return DistributionParams{Type: DistributionTruncatedNormal}
	}

	cv := std / mean
	if mean < logNormalMaxMean && cv > logNormalMinCV {
		sigma2 := math.Log(1 + cv*cv)
		return DistributionParams{
			Type:  DistributionLogNormal,
			Mu:    math.Log(mean) - sigma2/2,
			Sigma: math.Sqrt(sigma2),
		}
	}

	variance := std * std
	return DistributionParams{
		Type:  DistributionGamma,
		Alpha: mean * mean / variance,
		Theta: variance / mean,
	}
}

// Mean returns the theoretical mean of the distribution.
func (d DistributionParams) Mean() float64 {
	switch d.Type {
	case DistributionConstant:
		return d.MeanPoints
	case DistributionGamma:
		return d.Alpha * d.Theta
	case DistributionLogNormal:
		return math.Exp(d.Mu + d.Sigma*d.Sigma/2)
	case DistributionTruncatedNormal:
		return truncatedNormalMean
	default:
		return 0
	}
}

// Sample maps a uniform u in [0, 1] to a score through the inverse CDF. It
// panics with ErrUnknownDistribution for a type the fitter never produces.
func (d DistributionParams) Sample(u float64) float64 {
	u = clampUniform(u)

	switch d.Type {
	case DistributionConstant:
		return d.MeanPoints
	case DistributionGamma:
		return distuv.Gamma{Alpha: d.Alpha, Beta: 1 / d.Theta}.Quantile(u)
	case DistributionLogNormal:
		return math.Exp(d.Mu + d.Sigma*NormalQuantile(u))
	case DistributionTruncatedNormal:
		return math.Max(0, truncatedNormalMean+truncatedNormalStd*NormalQuantile(u))
	default:
		panic(fmt.Errorf("%w: %q", ErrUnknownDistribution, d.Type))
	}
}

func clampUniform(u float64) float64 {
	if math.IsNaN(u) {
		return 0.5
	}
	return math.Max(uniformEpsilon, math.Min(1-uniformEpsilon, u))
}
