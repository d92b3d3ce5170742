package correlation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/matchup-sim/internal/types"
)

func nan() float64 { return math.NaN() }

func testSchedule() types.Schedule {
	return types.Schedule{
		"KC":  {Opponent: "SF", GameID: "g-kc-sf", IsHome: true},
		"SF":  {Opponent: "KC", GameID: "g-kc-sf", IsHome: false},
		"PHI": {Opponent: "DAL", GameID: "g-phi-dal", IsHome: true},
		"DAL": {Opponent: "PHI", GameID: "g-phi-dal", IsHome: false},
	}
}

func player(pid, team string, pos types.Position, rank string) types.Player {
	return types.Player{PID: pid, NFLTeam: team, Position: pos, PositionRank: rank}
}

// assertValidCorrelationMatrix checks symmetry, unit diagonal, bounds and
// Cholesky decomposability.
func assertValidCorrelationMatrix(t *testing.T, m *mat.SymDense) {
	t.Helper()
	require.NotNil(t, m)
	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		assert.InDelta(t, 1.0, m.At(i, i), 1e-12, "diagonal %d", i)
		for j := 0; j < n; j++ {
			v := m.At(i, j)
			assert.False(t, math.IsNaN(v), "entry (%d,%d) is NaN", i, j)
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
			assert.Equal(t, v, m.At(j, i), "asymmetric at (%d,%d)", i, j)
		}
	}
	assert.True(t, IsPositiveDefinite(m), "matrix must admit a Cholesky factorization")
}

// correlationOf returns the matrix entry for two players, or 0 when either
// is missing.
func correlationOf(pm *PlayerMatrix, pidA, pidB string) float64 {
	i, okA := pm.Index[pidA]
	j, okB := pm.Index[pidB]
	if !okA || !okB || pm.Matrix == nil {
		return 0
	}
	return pm.Matrix.At(i, j)
}
