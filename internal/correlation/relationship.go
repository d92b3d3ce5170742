package correlation

import "github.com/stitts-dev/matchup-sim/internal/types"

// Relationship classifies how two players' games relate in a given week.
type Relationship int

const (
	// NoGame means at least one player's team is on bye.
	NoGame Relationship = iota
	SameTeam
	CrossTeamSameGame
	Independent
)

func (r Relationship) String() string {
	switch r {
	case SameTeam:
		return "SAME_TEAM"
	case CrossTeamSameGame:
		return "CROSS_TEAM_SAME_GAME"
	case Independent:
		return "INDEPENDENT"
	default:
		return "null"
	}
}

// DetectRelationship classifies a player pair from the week's schedule.
// Opponents must point at each other; a one-sided schedule entry is treated
// as independent.
func DetectRelationship(a, b types.Player, schedule types.Schedule) Relationship {
	gameA, okA := schedule.Game(a.NFLTeam)
	gameB, okB := schedule.Game(b.NFLTeam)
	if !okA || !okB {
		return NoGame
	}

	if a.NFLTeam == b.NFLTeam {
		return SameTeam
	}

	if gameA.Opponent == b.NFLTeam && gameB.Opponent == a.NFLTeam {
		return CrossTeamSameGame
	}

	return Independent
}
