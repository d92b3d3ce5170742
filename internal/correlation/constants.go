package correlation

import (
	"math"
	"strings"

	"github.com/stitts-dev/matchup-sim/internal/types"
)

// Blending thresholds for historical pair correlations. These come from
// historical analysis and must not be tuned without new data.
const (
	MinGamesForBlend = 6
	MinGamesForFull  = 12
)

// Confidence thresholds for player-vs-game-outcome correlations.
const (
	MinConfidenceForBlend = 0.3
	MinConfidenceForFull  = 0.8
)

// Archetype labels with correlation adjustments.
const (
	ArchetypeRushingQB      = "rushing_qb"
	ArchetypePocketQB       = "pocket_qb"
	ArchetypePassCatchingRB = "pass_catching_rb"
	ArchetypeBellCowRB      = "bell_cow_rb"
	ArchetypeTargetHogWR    = "target_hog_wr"
	ArchetypeDeepThreatWR   = "deep_threat_wr"
	ArchetypeReceivingTE    = "receiving_te"
)

// RankPair is an unordered pair of normalized position ranks with A <= B.
type RankPair struct {
	A string
	B string
}

func newRankPair(a, b string) RankPair {
	if b < a {
		a, b = b, a
	}
	return RankPair{A: a, B: b}
}

// NormalizePositionRank maps a bare position to its conservative default
// rank. Anything else is returned unchanged.
func NormalizePositionRank(rank string) string {
	switch rank {
	case "WR":
		return "WR3"
	case "RB":
		return "RB2"
	case "TE":
		return "TE1"
	default:
		return rank
	}
}

// basePosition strips the tier suffix from a rank ("WR2" -> "WR").
func basePosition(rank string) string {
	return strings.TrimRightFunc(rank, func(r rune) bool { return r >= '0' && r <= '9' })
}

// tableRank collapses deep tiers and tiered non-skill positions onto the keys
// present in the default tables.
func tableRank(rank string) string {
	rank = NormalizePositionRank(rank)
	switch base := basePosition(rank); base {
	case "QB", "K", "DST":
		return base
	case "WR":
		if rank != "WR1" && rank != "WR2" {
			return "WR3"
		}
	case "RB":
		if rank != "RB1" {
			return "RB2"
		}
	case "TE":
		if rank != "TE1" {
			return "TE2"
		}
	}
	return rank
}

// sameTeamDefaults are teammate correlations by position-rank pair.
var sameTeamDefaults = map[RankPair]float64{
	newRankPair("QB", "QB"):   -0.30,
	newRankPair("QB", "RB1"):  0.15,
	newRankPair("QB", "RB2"):  0.08,
	newRankPair("QB", "WR1"):  0.45,
	newRankPair("QB", "WR2"):  0.36,
	newRankPair("QB", "WR3"):  0.25,
	newRankPair("QB", "TE1"):  0.33,
	newRankPair("QB", "TE2"):  0.15,
	newRankPair("QB", "K"):    0.20,
	newRankPair("QB", "DST"):  0.02,
	newRankPair("RB1", "RB2"): -0.25,
	newRankPair("RB2", "RB2"): -0.15,
	newRankPair("RB1", "WR1"): -0.06,
	newRankPair("RB1", "WR2"): -0.05,
	newRankPair("RB1", "WR3"): -0.04,
	newRankPair("RB1", "TE1"): -0.05,
	newRankPair("RB1", "TE2"): -0.02,
	newRankPair("RB1", "K"):   0.15,
	newRankPair("RB1", "DST"): 0.10,
	newRankPair("RB2", "WR1"): -0.04,
	newRankPair("RB2", "WR2"): -0.03,
	newRankPair("RB2", "WR3"): -0.03,
	newRankPair("RB2", "TE1"): -0.03,
	newRankPair("RB2", "TE2"): -0.02,
	newRankPair("RB2", "K"):   0.08,
	newRankPair("RB2", "DST"): 0.05,
	newRankPair("WR1", "WR2"): -0.05,
	newRankPair("WR1", "WR3"): -0.08,
	newRankPair("WR2", "WR3"): -0.05,
	newRankPair("WR3", "WR3"): -0.05,
	newRankPair("WR1", "TE1"): -0.05,
	newRankPair("WR2", "TE1"): -0.04,
	newRankPair("WR3", "TE1"): -0.03,
	newRankPair("WR1", "TE2"): -0.02,
	newRankPair("WR2", "TE2"): -0.02,
	newRankPair("WR3", "TE2"): -0.02,
	newRankPair("WR1", "K"):   0.10,
	newRankPair("WR2", "K"):   0.08,
	newRankPair("WR3", "K"):   0.06,
	newRankPair("TE1", "TE2"): -0.10,
	newRankPair("TE1", "K"):   0.08,
	newRankPair("TE2", "K"):   0.04,
	newRankPair("K", "DST"):   0.12,
}

// crossTeamDefaults are correlations between opponents in the same game.
var crossTeamDefaults = map[RankPair]float64{
	newRankPair("QB", "QB"):   0.25,
	newRankPair("QB", "RB1"):  0.05,
	newRankPair("QB", "RB2"):  0.03,
	newRankPair("QB", "WR1"):  0.20,
	newRankPair("QB", "WR2"):  0.15,
	newRankPair("QB", "WR3"):  0.10,
	newRankPair("QB", "TE1"):  0.12,
	newRankPair("QB", "TE2"):  0.05,
	newRankPair("QB", "K"):    0.05,
	newRankPair("QB", "DST"):  -0.40,
	newRankPair("RB1", "RB1"): -0.05,
	newRankPair("RB1", "RB2"): -0.03,
	newRankPair("RB1", "WR1"): 0.05,
	newRankPair("RB1", "WR2"): 0.04,
	newRankPair("RB1", "WR3"): 0.03,
	newRankPair("RB1", "TE1"): 0.03,
	newRankPair("RB1", "DST"): -0.25,
	newRankPair("RB2", "DST"): -0.15,
	newRankPair("WR1", "WR1"): 0.15,
	newRankPair("WR1", "WR2"): 0.12,
	newRankPair("WR1", "WR3"): 0.08,
	newRankPair("WR2", "WR2"): 0.10,
	newRankPair("WR2", "WR3"): 0.07,
	newRankPair("WR3", "WR3"): 0.05,
	newRankPair("WR1", "TE1"): 0.08,
	newRankPair("WR2", "TE1"): 0.06,
	newRankPair("WR3", "TE1"): 0.04,
	newRankPair("TE1", "TE1"): 0.05,
	newRankPair("WR1", "DST"): -0.25,
	newRankPair("WR2", "DST"): -0.20,
	newRankPair("WR3", "DST"): -0.15,
	newRankPair("TE1", "DST"): -0.20,
	newRankPair("TE2", "DST"): -0.10,
	newRankPair("K", "K"):     0.10,
	newRankPair("K", "DST"):   -0.20,
	newRankPair("DST", "DST"): 0.05,
}

// ArchetypeRule shifts a teammate correlation when the other player matches
// Target, either by exact normalized rank ("WR1") or by bare position ("RB").
type ArchetypeRule struct {
	Target string
	Delta  float64
}

var archetypeRules = map[string][]ArchetypeRule{
	ArchetypeRushingQB: {
		{Target: "RB", Delta: -0.20},
		{Target: "WR1", Delta: -0.05},
	},
	ArchetypePocketQB: {
		{Target: "WR1", Delta: 0.05},
	},
	ArchetypePassCatchingRB: {
		{Target: "QB", Delta: 0.05},
		{Target: "TE1", Delta: -0.03},
	},
	ArchetypeBellCowRB: {
		{Target: "DST", Delta: 0.05},
		{Target: "QB", Delta: -0.05},
	},
	ArchetypeTargetHogWR: {
		{Target: "WR2", Delta: -0.05},
		{Target: "WR3", Delta: -0.05},
		{Target: "TE1", Delta: -0.05},
	},
	ArchetypeDeepThreatWR: {
		{Target: "QB", Delta: 0.10},
	},
	ArchetypeReceivingTE: {
		{Target: "QB", Delta: 0.05},
		{Target: "WR1", Delta: -0.05},
	},
}

// gameOutcomeKey indexes game-outcome defaults by position and optional
// archetype. An empty archetype is the position-level default.
type gameOutcomeKey struct {
	Position  types.Position
	Archetype string
}

var gameOutcomeDefaults = map[gameOutcomeKey]float64{
	{Position: types.PositionQB}:  0.30,
	{Position: types.PositionRB}:  0.35,
	{Position: types.PositionWR}:  0.20,
	{Position: types.PositionTE}:  0.15,
	{Position: types.PositionK}:   0.25,
	{Position: types.PositionDST}: -0.30,

	{Position: types.PositionQB, Archetype: ArchetypeRushingQB}:      0.20,
	{Position: types.PositionQB, Archetype: ArchetypePocketQB}:       0.35,
	{Position: types.PositionRB, Archetype: ArchetypePassCatchingRB}: 0.25,
	{Position: types.PositionRB, Archetype: ArchetypeBellCowRB}:      0.40,
	{Position: types.PositionWR, Archetype: ArchetypeDeepThreatWR}:   0.28,
}

// PositionDefault returns the table correlation for two ranks. Unknown pairs
// are uncorrelated.
func PositionDefault(rankA, rankB string, relationship Relationship) float64 {
	key := newRankPair(tableRank(rankA), tableRank(rankB))
	switch relationship {
	case SameTeam:
		return sameTeamDefaults[key]
	case CrossTeamSameGame:
		return crossTeamDefaults[key]
	default:
		return 0
	}
}

// archetypeDelta returns the adjustment an archetype applies against a
// teammate holding otherRank.
func archetypeDelta(archetype, otherRank string) float64 {
	rules, ok := archetypeRules[archetype]
	if !ok {
		return 0
	}
	otherRank = NormalizePositionRank(otherRank)
	otherBase := basePosition(otherRank)

	delta := 0.0
	for _, rule := range rules {
		if rule.Target == otherRank || rule.Target == otherBase {
			delta += rule.Delta
		}
	}
	return delta
}

// ApplyArchetypeAdjustment shifts a same-team base correlation by both
// players' archetype rules and clamps the result to [-1, 1].
func ApplyArchetypeAdjustment(base float64, archetypeA, rankA, archetypeB, rankB string) float64 {
	adjusted := base + archetypeDelta(archetypeA, rankB) + archetypeDelta(archetypeB, rankA)
	return Clamp(adjusted)
}

// GameOutcomeDefault returns the default player-vs-game correlation for a
// position, preferring an archetype-specific value when one exists.
func GameOutcomeDefault(position types.Position, archetype string) float64 {
	if archetype != "" {
		if v, ok := gameOutcomeDefaults[gameOutcomeKey{Position: position, Archetype: archetype}]; ok {
			return v
		}
	}
	return gameOutcomeDefaults[gameOutcomeKey{Position: position}]
}

// Clamp limits a correlation to [-1, 1]. NaN is treated as no correlation.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1.0, math.Min(1.0, v))
}
