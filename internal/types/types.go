package types

// Position is an NFL roster position.
type Position string

const (
	PositionQB  Position = "QB"
	PositionRB  Position = "RB"
	PositionWR  Position = "WR"
	PositionTE  Position = "TE"
	PositionK   Position = "K"
	PositionDST Position = "DST"
)

// Player is a rostered NFL player for one fantasy week.
type Player struct {
	PID           string   `json:"pid"`
	NFLTeam       string   `json:"nfl_team"`
	Position      Position `json:"position"`
	PositionRank  string   `json:"position_rank,omitempty"`
	FantasyTeamID int64    `json:"fantasy_team_id"`
	ESBID         string   `json:"esbid,omitempty"`
	Archetype     string   `json:"archetype,omitempty"`
}

// Rank returns the usage tier used for correlation lookups, falling back to
// the bare position when no rank was supplied.
func (p Player) Rank() string {
	if p.PositionRank != "" {
		return p.PositionRank
	}
	return string(p.Position)
}

// GameInfo describes a team's game for the week.
type GameInfo struct {
	Opponent string `json:"opponent"`
	GameID   string `json:"game_id"`
	IsHome   bool   `json:"is_home"`
}

// Schedule maps an NFL team to its game. Teams on bye are absent.
type Schedule map[string]GameInfo

// Game returns the team's game and whether the team plays this week.
func (s Schedule) Game(team string) (GameInfo, bool) {
	if s == nil || team == "" {
		return GameInfo{}, false
	}
	g, ok := s[team]
	return g, ok
}

// PairKey is an unordered player pair with A <= B.
type PairKey struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NewPairKey normalizes the pair so that lookups are order independent.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// CorrelationEntry is a historical pairwise correlation. TeamAAtCalc belongs
// to PairKey.A and TeamBAtCalc to PairKey.B.
type CorrelationEntry struct {
	Correlation   float64 `json:"correlation"`
	GamesTogether int     `json:"games_together"`
	TeamAAtCalc   string  `json:"team_a_at_calc,omitempty"`
	TeamBAtCalc   string  `json:"team_b_at_calc,omitempty"`
}

// CorrelationCache holds historical correlations keyed by normalized pair.
type CorrelationCache map[PairKey]CorrelationEntry

// Lookup finds the entry for two players in either order.
func (c CorrelationCache) Lookup(a, b string) (CorrelationEntry, bool) {
	if c == nil {
		return CorrelationEntry{}, false
	}
	e, ok := c[NewPairKey(a, b)]
	return e, ok
}

// VarianceStats is a player's rolling scoring history.
type VarianceStats struct {
	MeanPoints  float64 `json:"mean_points"`
	StdPoints   float64 `json:"std_points"`
	GamesPlayed int     `json:"games_played"`
}

// GameOutcomeCorrelation is a player's estimated correlation with the latent
// outcome of their game.
type GameOutcomeCorrelation struct {
	Correlation float64 `json:"correlation"`
	Confidence  float64 `json:"confidence"`
}

// FantasyTeam is a participant in the matchup.
type FantasyTeam struct {
	TeamID int64  `json:"team_id"`
	Name   string `json:"name"`
}
