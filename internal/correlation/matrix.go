package correlation

import (
	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/matchup-sim/internal/types"
)

// Builder assembles player correlation matrices for one week. All inputs are
// read-only snapshots supplied by the caller.
type Builder struct {
	schedule     types.Schedule
	correlations types.CorrelationCache
	archetypes   map[string]string
	options      RegularizeOptions
	regularize   Regularizer
}

// NewBuilder creates a correlation matrix builder
func NewBuilder(schedule types.Schedule, correlations types.CorrelationCache, archetypes map[string]string, opts RegularizeOptions) *Builder {
	return &Builder{
		schedule:     schedule,
		correlations: correlations,
		archetypes:   archetypes,
		options:      opts.withDefaults(),
		regularize:   Regularize,
	}
}

// WithRegularizer replaces the positive-definite repair applied to built
// matrices. A nil r restores Regularize.
func (b *Builder) WithRegularizer(r Regularizer) *Builder {
	if r == nil {
		r = Regularize
	}
	b.regularize = r
	return b
}

// PlayerMatrix is a regularized player correlation matrix.
type PlayerMatrix struct {
	Matrix       *mat.SymDense
	Index        map[string]int
	UsedFallback bool
}

// Build returns the regularized correlation matrix for players.
func (b *Builder) Build(players []types.Player) *PlayerMatrix {
	raw, index := b.rawMatrix(players, 0)
	if raw == nil {
		return &PlayerMatrix{Index: index}
	}

	regularized, fallback := b.regularize(raw, b.options)
	return &PlayerMatrix{
		Matrix:       regularized,
		Index:        index,
		UsedFallback: fallback,
	}
}

// rawMatrix fills the unregularized player block of an (n+extra)-sized
// matrix. Extra rows are left for the caller with a unit diagonal.
func (b *Builder) rawMatrix(players []types.Player, extra int) (*mat.SymDense, map[string]int) {
	n := len(players)
	index := make(map[string]int, n)
	for i, p := range players {
		if _, seen := index[p.PID]; !seen {
			index[p.PID] = i
		}
	}
	if n+extra == 0 {
		return nil, index
	}

	m := mat.NewSymDense(n+extra, nil)
	for i := 0; i < n+extra; i++ {
		m.SetSym(i, i, 1)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m.SetSym(i, j, b.PairCorrelation(players[i], players[j]))
		}
	}
	return m, index
}

// PairCorrelation resolves the correlation between two players using the
// blending hierarchy: identity, relationship, historical cache weighted by
// games together, then archetype-adjusted position defaults.
func (b *Builder) PairCorrelation(a, c types.Player) float64 {
	if a.PID == c.PID {
		return 1
	}

	relationship := DetectRelationship(a, c, b.schedule)
	if relationship == NoGame || relationship == Independent {
		return 0
	}

	fallback := b.positionDefault(a, c, relationship)

	entry, ok := b.correlations.Lookup(a.PID, c.PID)
	if !ok || isStale(entry, a, c) || entry.GamesTogether < MinGamesForBlend {
		return fallback
	}

	if entry.GamesTogether >= MinGamesForFull {
		return Clamp(entry.Correlation)
	}

	weight := float64(entry.GamesTogether-MinGamesForBlend) / float64(MinGamesForFull-MinGamesForBlend)
	return Clamp(weight*entry.Correlation + (1-weight)*fallback)
}

func (b *Builder) positionDefault(a, c types.Player, relationship Relationship) float64 {
	rankA := NormalizePositionRank(a.Rank())
	rankC := NormalizePositionRank(c.Rank())
	base := PositionDefault(rankA, rankC, relationship)
	if relationship != SameTeam {
		return Clamp(base)
	}
	return ApplyArchetypeAdjustment(base, b.archetype(a), rankA, b.archetype(c), rankC)
}

// archetype prefers the caller's archetype map over the player record.
func (b *Builder) archetype(p types.Player) string {
	if label, ok := b.archetypes[p.PID]; ok && label != "" {
		return label
	}
	return p.Archetype
}

// isStale reports whether either player has changed teams since the entry
// was calculated.
func isStale(entry types.CorrelationEntry, a, c types.Player) bool {
	key := types.NewPairKey(a.PID, c.PID)
	recordedA, recordedC := entry.TeamAAtCalc, entry.TeamBAtCalc
	if key.A != a.PID {
		recordedA, recordedC = recordedC, recordedA
	}
	if recordedA != "" && recordedA != a.NFLTeam {
		return true
	}
	return recordedC != "" && recordedC != c.NFLTeam
}
