package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/matchup-sim/internal/types"
)

func TestDetectRelationship(t *testing.T) {
	schedule := testSchedule()
	schedule["NYJ"] = types.GameInfo{Opponent: "KC", GameID: "bad"}

	tests := []struct {
		name  string
		teamA string
		teamB string
		want  Relationship
	}{
		{name: "teammates", teamA: "KC", teamB: "KC", want: SameTeam},
		{name: "opponents", teamA: "KC", teamB: "SF", want: CrossTeamSameGame},
		{name: "opponents reversed", teamA: "SF", teamB: "KC", want: CrossTeamSameGame},
		{name: "different games", teamA: "KC", teamB: "PHI", want: Independent},
		{name: "one-sided opponent entry", teamA: "NYJ", teamB: "KC", want: Independent},
		{name: "first team on bye", teamA: "BUF", teamB: "KC", want: NoGame},
		{name: "second team on bye", teamA: "KC", teamB: "BUF", want: NoGame},
		{name: "teammates on bye", teamA: "BUF", teamB: "BUF", want: NoGame},
		{name: "missing team", teamA: "", teamB: "KC", want: NoGame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := types.Player{PID: "a", NFLTeam: tt.teamA}
			b := types.Player{PID: "b", NFLTeam: tt.teamB}
			assert.Equal(t, tt.want, DetectRelationship(a, b, schedule))
		})
	}
}

func TestDetectRelationship_NilSchedule(t *testing.T) {
	a := types.Player{PID: "a", NFLTeam: "KC"}
	assert.Equal(t, NoGame, DetectRelationship(a, a, nil))
}

func TestRelationship_String(t *testing.T) {
	assert.Equal(t, "SAME_TEAM", SameTeam.String())
	assert.Equal(t, "CROSS_TEAM_SAME_GAME", CrossTeamSameGame.String())
	assert.Equal(t, "INDEPENDENT", Independent.String())
	assert.Equal(t, "null", NoGame.String())
}
