package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/matchup-sim/internal/types"
)

func TestNormalizePositionRank(t *testing.T) {
	tests := map[string]string{
		"WR":  "WR3",
		"RB":  "RB2",
		"TE":  "TE1",
		"WR1": "WR1",
		"RB1": "RB1",
		"QB":  "QB",
		"K":   "K",
		"DST": "DST",
		"LS":  "LS",
		"":    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePositionRank(in), "input %q", in)
	}
}

func TestTableRank(t *testing.T) {
	tests := map[string]string{
		"QB1": "QB",
		"QB":  "QB",
		"K1":  "K",
		"WR1": "WR1",
		"WR5": "WR3",
		"WR":  "WR3",
		"RB3": "RB2",
		"TE2": "TE2",
		"TE3": "TE2",
		"FB":  "FB",
	}
	for in, want := range tests {
		assert.Equal(t, want, tableRank(in), "input %q", in)
	}
}

func TestPositionDefault(t *testing.T) {
	t.Run("same team tables are symmetric", func(t *testing.T) {
		assert.Equal(t, PositionDefault("QB", "WR1", SameTeam), PositionDefault("WR1", "QB", SameTeam))
		assert.InDelta(t, 0.45, PositionDefault("QB", "WR1", SameTeam), 1e-12)
	})

	t.Run("bare positions use conservative ranks", func(t *testing.T) {
		assert.Equal(t, PositionDefault("QB", "WR3", SameTeam), PositionDefault("QB", "WR", SameTeam))
		assert.Equal(t, PositionDefault("QB", "RB2", SameTeam), PositionDefault("QB", "RB", SameTeam))
	})

	t.Run("cross team QB vs opposing DST is negative", func(t *testing.T) {
		assert.Less(t, PositionDefault("QB", "DST", CrossTeamSameGame), 0.0)
	})

	t.Run("unknown pairs and other relationships are zero", func(t *testing.T) {
		assert.Zero(t, PositionDefault("LS", "QB", SameTeam))
		assert.Zero(t, PositionDefault("QB", "WR1", Independent))
		assert.Zero(t, PositionDefault("QB", "WR1", NoGame))
	})

	t.Run("all table values are valid correlations", func(t *testing.T) {
		for pair, v := range sameTeamDefaults {
			assert.True(t, v >= -1 && v <= 1, "same team %v", pair)
			assert.LessOrEqual(t, pair.A, pair.B)
		}
		for pair, v := range crossTeamDefaults {
			assert.True(t, v >= -1 && v <= 1, "cross team %v", pair)
			assert.LessOrEqual(t, pair.A, pair.B)
		}
	})
}

func TestApplyArchetypeAdjustment(t *testing.T) {
	tests := []struct {
		name       string
		base       float64
		archetypeA string
		rankA      string
		archetypeB string
		rankB      string
		want       float64
	}{
		{
			name:       "rushing qb vs own RB1",
			base:       0.15,
			archetypeA: ArchetypeRushingQB,
			rankA:      "QB",
			rankB:      "RB1",
			want:       -0.05,
		},
		{
			name:       "rushing qb applies from either side",
			base:       0.15,
			rankA:      "RB1",
			archetypeB: ArchetypeRushingQB,
			rankB:      "QB",
			want:       -0.05,
		},
		{
			name:       "rushing qb vs bare RB",
			base:       0.08,
			archetypeA: ArchetypeRushingQB,
			rankA:      "QB",
			rankB:      "RB",
			want:       -0.12,
		},
		{
			name:       "rushing qb vs WR1",
			base:       0.45,
			archetypeA: ArchetypeRushingQB,
			rankA:      "QB",
			rankB:      "WR1",
			want:       0.40,
		},
		{
			name:       "rushing qb vs WR2 unchanged",
			base:       0.36,
			archetypeA: ArchetypeRushingQB,
			rankA:      "QB",
			rankB:      "WR2",
			want:       0.36,
		},
		{
			name:       "both archetypes sum",
			base:       0.15,
			archetypeA: ArchetypeRushingQB,
			rankA:      "QB",
			archetypeB: ArchetypePassCatchingRB,
			rankB:      "RB1",
			want:       0.0,
		},
		{
			name:       "clamps at upper bound",
			base:       0.95,
			rankA:      "QB",
			archetypeB: ArchetypeDeepThreatWR,
			rankB:      "WR2",
			want:       1.0,
		},
		{
			name:       "clamps at lower bound",
			base:       -0.95,
			archetypeA: ArchetypeRushingQB,
			rankA:      "QB",
			rankB:      "RB1",
			want:       -1.0,
		},
		{
			name:       "unknown archetype unchanged",
			base:       0.2,
			archetypeA: "gadget",
			rankA:      "WR1",
			rankB:      "QB",
			want:       0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyArchetypeAdjustment(tt.base, tt.archetypeA, tt.rankA, tt.archetypeB, tt.rankB)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestGameOutcomeDefault(t *testing.T) {
	assert.InDelta(t, 0.30, GameOutcomeDefault(types.PositionQB, ""), 1e-12)
	assert.InDelta(t, 0.20, GameOutcomeDefault(types.PositionQB, ArchetypeRushingQB), 1e-12)
	assert.InDelta(t, 0.20, GameOutcomeDefault(types.PositionWR, ArchetypeRushingQB), 1e-12, "archetype without an entry falls back to position")
	assert.Zero(t, GameOutcomeDefault(types.Position("LS"), ""))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(3))
	assert.Equal(t, -1.0, Clamp(-3))
	assert.Equal(t, 0.25, Clamp(0.25))
	assert.Equal(t, 0.0, Clamp(nan()))
}
