package correlation

import (
	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/matchup-sim/internal/types"
)

// ExtendedMatrix is a player correlation matrix augmented with one latent
// game-outcome variable per distinct game. Player rows come first, followed
// by game rows in the order listed in Games.
type ExtendedMatrix struct {
	Matrix       *mat.SymDense
	Index        map[string]int
	GameIndices  map[string]int
	Games        []string
	PlayerCount  int
	UsedFallback bool
}

// Size is the total dimension of the matrix (players plus games).
func (em *ExtendedMatrix) Size() int {
	return em.PlayerCount + len(em.Games)
}

// BuildExtended returns the regularized (N+G)×(N+G) matrix. Game outcomes are
// independent of each other; players correlate only with their own game.
func (b *Builder) BuildExtended(players []types.Player, outcomes map[string]types.GameOutcomeCorrelation) *ExtendedMatrix {
	games := make([]string, 0)
	gameIndices := make(map[string]int)
	playerGames := make([]string, len(players))
	for i, p := range players {
		gameID := b.GameID(p)
		playerGames[i] = gameID
		if gameID == "" {
			continue
		}
		if _, seen := gameIndices[gameID]; !seen {
			gameIndices[gameID] = len(players) + len(games)
			games = append(games, gameID)
		}
	}

	raw, index := b.rawMatrix(players, len(games))
	result := &ExtendedMatrix{
		Index:       index,
		GameIndices: gameIndices,
		Games:       games,
		PlayerCount: len(players),
	}
	if raw == nil {
		return result
	}

	for i, p := range players {
		if playerGames[i] == "" {
			continue
		}
		raw.SetSym(i, gameIndices[playerGames[i]], b.GameOutcomeCorrelation(p, outcomes))
	}

	result.Matrix, result.UsedFallback = b.regularize(raw, b.options)
	return result
}

// GameID returns the player's game, using the schedule when the player
// record carries no esbid.
func (b *Builder) GameID(p types.Player) string {
	if p.ESBID != "" {
		return p.ESBID
	}
	if game, ok := b.schedule.Game(p.NFLTeam); ok {
		return game.GameID
	}
	return ""
}

// GameOutcomeCorrelation resolves a player's correlation with their game's
// latent outcome, weighting any estimate by its confidence against the
// position (or position:archetype) default.
func (b *Builder) GameOutcomeCorrelation(p types.Player, outcomes map[string]types.GameOutcomeCorrelation) float64 {
	fallback := GameOutcomeDefault(p.Position, b.archetype(p))

	record, ok := outcomes[p.PID]
	if !ok || !(record.Confidence >= MinConfidenceForBlend) {
		return Clamp(fallback)
	}
	if record.Confidence >= MinConfidenceForFull {
		return Clamp(record.Correlation)
	}

	weight := (record.Confidence - MinConfidenceForBlend) / (MinConfidenceForFull - MinConfidenceForBlend)
	return Clamp(weight*record.Correlation + (1-weight)*fallback)
}
