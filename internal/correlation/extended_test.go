package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/matchup-sim/internal/types"
)

func TestBuilder_BuildExtended(t *testing.T) {
	players := []types.Player{
		player("qb1", "KC", types.PositionQB, "QB"),
		player("wr1", "KC", types.PositionWR, "WR1"),
		player("qb2", "SF", types.PositionQB, "QB"),
		player("wr2", "PHI", types.PositionWR, "WR1"),
		player("rb1", "BUF", types.PositionRB, "RB1"),
	}
	b := NewBuilder(testSchedule(), nil, nil, DefaultRegularizeOptions())

	em := b.BuildExtended(players, nil)

	require.NotNil(t, em.Matrix)
	assert.Equal(t, 5, em.PlayerCount)
	assert.Equal(t, []string{"g-kc-sf", "g-phi-dal"}, em.Games)
	assert.Equal(t, 7, em.Size())
	assert.Equal(t, 7, em.Matrix.SymmetricDim())
	assert.Equal(t, map[string]int{"g-kc-sf": 5, "g-phi-dal": 6}, em.GameIndices)
	assertValidCorrelationMatrix(t, em.Matrix)
	require.False(t, em.UsedFallback)

	t.Run("game outcomes are independent", func(t *testing.T) {
		assert.Equal(t, 0.0, em.Matrix.At(5, 6))
	})

	t.Run("players load on their own game", func(t *testing.T) {
		assert.InDelta(t, 0.30*0.95, em.Matrix.At(0, 5), 1e-12)
		assert.InDelta(t, 0.20*0.95, em.Matrix.At(1, 5), 1e-12)
		assert.InDelta(t, 0.30*0.95, em.Matrix.At(2, 5), 1e-12)
		assert.InDelta(t, 0.20*0.95, em.Matrix.At(3, 6), 1e-12)
	})

	t.Run("players do not load on other games", func(t *testing.T) {
		assert.Zero(t, em.Matrix.At(0, 6))
		assert.Zero(t, em.Matrix.At(3, 5))
	})

	t.Run("bye player has no game", func(t *testing.T) {
		assert.Zero(t, em.Matrix.At(4, 5))
		assert.Zero(t, em.Matrix.At(4, 6))
	})

	t.Run("player block matches the plain builder", func(t *testing.T) {
		assert.InDelta(t, 0.45*0.95, em.Matrix.At(0, 1), 1e-12)
	})
}

func TestBuilder_BuildExtended_Empty(t *testing.T) {
	b := NewBuilder(testSchedule(), nil, nil, DefaultRegularizeOptions())

	em := b.BuildExtended(nil, nil)

	assert.Nil(t, em.Matrix)
	assert.Zero(t, em.Size())
}

func TestBuilder_GameID(t *testing.T) {
	b := NewBuilder(testSchedule(), nil, nil, DefaultRegularizeOptions())

	withESBID := player("qb1", "KC", types.PositionQB, "QB")
	withESBID.ESBID = "2025091400"
	assert.Equal(t, "2025091400", b.GameID(withESBID))

	assert.Equal(t, "g-kc-sf", b.GameID(player("qb2", "SF", types.PositionQB, "QB")))
	assert.Empty(t, b.GameID(player("rb1", "BUF", types.PositionRB, "RB1")))
}

func TestBuilder_GameOutcomeCorrelation(t *testing.T) {
	wr := player("wr1", "KC", types.PositionWR, "WR1")

	tests := []struct {
		name    string
		outcome *types.GameOutcomeCorrelation
		want    float64
	}{
		{name: "no estimate", want: 0.20},
		{name: "low confidence", outcome: &types.GameOutcomeCorrelation{Correlation: 0.6, Confidence: 0.2}, want: 0.20},
		{name: "blend threshold", outcome: &types.GameOutcomeCorrelation{Correlation: 0.6, Confidence: 0.3}, want: 0.20},
		{name: "half blend", outcome: &types.GameOutcomeCorrelation{Correlation: 0.6, Confidence: 0.55}, want: 0.40},
		{name: "full confidence", outcome: &types.GameOutcomeCorrelation{Correlation: 0.6, Confidence: 0.8}, want: 0.60},
		{name: "high confidence", outcome: &types.GameOutcomeCorrelation{Correlation: 0.6, Confidence: 0.95}, want: 0.60},
		{name: "clamped", outcome: &types.GameOutcomeCorrelation{Correlation: 1.7, Confidence: 0.9}, want: 1.0},
	}

	b := NewBuilder(testSchedule(), nil, nil, DefaultRegularizeOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomes := map[string]types.GameOutcomeCorrelation{}
			if tt.outcome != nil {
				outcomes["wr1"] = *tt.outcome
			}
			assert.InDelta(t, tt.want, b.GameOutcomeCorrelation(wr, outcomes), 1e-12)
		})
	}
}

func TestBuilder_GameOutcomeCorrelation_ArchetypeDefault(t *testing.T) {
	rb := player("rb1", "KC", types.PositionRB, "RB1")
	b := NewBuilder(testSchedule(), nil, map[string]string{"rb1": ArchetypeBellCowRB}, DefaultRegularizeOptions())

	assert.InDelta(t, 0.40, b.GameOutcomeCorrelation(rb, nil), 1e-12)

	dst := player("dst1", "SF", types.PositionDST, "DST")
	assert.InDelta(t, -0.30, b.GameOutcomeCorrelation(dst, nil), 1e-12)
}
