package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/matchup-sim/internal/correlation"
	"github.com/stitts-dev/matchup-sim/internal/types"
	"github.com/stitts-dev/matchup-sim/pkg/config"
	"github.com/stitts-dev/matchup-sim/pkg/logger"
)

var (
	ErrNilRequest     = errors.New("simulation request is nil")
	ErrInvalidRequest = errors.New("invalid simulation request")
)

// Request is everything one matchup simulation needs. All inputs are
// read-only snapshots owned by the caller.
type Request struct {
	Players                 []types.Player                          `json:"players"`
	Projections             map[string]float64                      `json:"projections"`
	VarianceCache           map[string]types.VarianceStats          `json:"variance_cache,omitempty"`
	CorrelationCache        types.CorrelationCache                  `json:"correlation_cache,omitempty"`
	Archetypes              map[string]string                       `json:"archetypes,omitempty"`
	Schedule                types.Schedule                          `json:"schedule"`
	Teams                   []types.FantasyTeam                     `json:"teams"`
	NSimulations            int                                     `json:"n_simulations,omitempty"`
	Seed                    *int64                                  `json:"seed,omitempty"`
	LockedScores            map[string]float64                      `json:"locked_scores,omitempty"`
	IncludeRawScores        bool                                    `json:"include_raw_scores,omitempty"`
	UseGameOutcomes         bool                                    `json:"use_game_outcomes,omitempty"`
	GameOutcomeCorrelations map[string]types.GameOutcomeCorrelation `json:"game_outcome_correlations,omitempty"`
}

// Result holds win probabilities and score distributions for a matchup.
type Result struct {
	SimulationID             string                             `json:"simulation_id"`
	WinProbabilities         map[int64]float64                  `json:"win_probabilities"`
	ScoreDistributions       map[int64]ScoreDistribution        `json:"score_distributions"`
	PlayerScoreDistributions map[string]PlayerScoreDistribution `json:"player_score_distributions"`
	NSimulations             int                                `json:"n_simulations"`
	ElapsedMS                int64                              `json:"elapsed_ms"`
	CorrelationFallback      bool                               `json:"correlation_fallback"`
	LockedPlayerCount        int                                `json:"locked_player_count"`
	RawTeamScores            map[int64][]float64                `json:"raw_team_scores,omitempty"`
	Truncated                bool                               `json:"truncated"`
	ExcludedPlayers          []string                           `json:"excluded_players,omitempty"`
}

// Config controls engine sizing. Zero values fall back to defaults.
type Config struct {
	DefaultSimulations int
	MaxSimulations     int
	Workers            int
	ChunkSize          int
	Regularize         correlation.RegularizeOptions
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultSimulations: 10000,
		MaxSimulations:     200000,
		Workers:            runtime.NumCPU(),
		ChunkSize:          1000,
		Regularize:         correlation.DefaultRegularizeOptions(),
	}
}

// ConfigFrom maps service configuration onto engine settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		DefaultSimulations: cfg.DefaultSimulations,
		MaxSimulations:     cfg.MaxSimulations,
		Workers:            cfg.Workers(),
		ChunkSize:          cfg.ChunkSize,
		Regularize: correlation.RegularizeOptions{
			Shrinkage:     cfg.CorrelationShrinkage,
			MinEigenvalue: cfg.MinEigenvalue,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultSimulations <= 0 {
		c.DefaultSimulations = d.DefaultSimulations
	}
	if c.MaxSimulations <= 0 {
		c.MaxSimulations = d.MaxSimulations
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.Regularize == (correlation.RegularizeOptions{}) {
		c.Regularize = d.Regularize
	}
	return c
}

// Engine runs Monte Carlo matchup simulations. An Engine holds no per-run
// state and may be shared across goroutines.
type Engine struct {
	config     Config
	logger     *logrus.Logger
	regularize correlation.Regularizer
}

// NewEngine creates a new simulation engine
func NewEngine(cfg Config, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		config:     cfg.withDefaults(),
		logger:     logger,
		regularize: correlation.Regularize,
	}
}

// simulatedPlayer is a pending player with its fitted distribution.
type simulatedPlayer struct {
	player types.Player
	team   int
	dist   DistributionParams
}

// run is the per-call working state shared read-only by workers.
type run struct {
	teamIDs    []int64
	lockedBase []float64
	players    []simulatedPlayer
	sampler    *CorrelatedSampler
	seed       int64
	n          int
	chunkSize  int
}

// chunkResult accumulates one chunk of iterations.
type chunkResult struct {
	index        int
	iterations   int
	wins         []float64
	teamScores   [][]float64
	playerScores [][]float64
}

// Config returns the engine settings after defaults are applied.
func (e *Engine) Config() Config {
	return e.config
}

// Run simulates the matchup. Cancelling ctx stops work between chunks and
// returns statistics over the completed chunks with Truncated set; if no
// chunk completed, ctx.Err() is returned.
func (e *Engine) Run(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	start := time.Now()

	n := req.NSimulations
	if n <= 0 {
		n = e.config.DefaultSimulations
	}
	if n > e.config.MaxSimulations {
		return nil, fmt.Errorf("%w: n_simulations %d exceeds maximum %d", ErrInvalidRequest, n, e.config.MaxSimulations)
	}

	simulationID := uuid.New().String()
	log := logger.WithSimulationContext(e.logger, simulationID, len(req.Teams), len(req.Players))

	result := &Result{
		SimulationID:             simulationID,
		WinProbabilities:         make(map[int64]float64),
		ScoreDistributions:       make(map[int64]ScoreDistribution),
		PlayerScoreDistributions: make(map[string]PlayerScoreDistribution),
	}

	teamIDs, teamIndex := indexTeams(req.Teams)
	if len(teamIDs) == 0 {
		log.Warn("No teams in matchup")
		result.ElapsedMS = time.Since(start).Milliseconds()
		return result, nil
	}

	r := &run{
		teamIDs:    teamIDs,
		lockedBase: make([]float64, len(teamIDs)),
		n:          n,
		chunkSize:  e.config.ChunkSize,
	}

	var pending []types.Player
	seen := make(map[string]bool, len(req.Players))
	for _, p := range req.Players {
		if seen[p.PID] {
			continue
		}
		seen[p.PID] = true

		team, ok := teamIndex[p.FantasyTeamID]
		if !ok {
			log.WithFields(logrus.Fields{"pid": p.PID, "fantasy_team_id": p.FantasyTeamID}).Warn("Player is not on a matchup team, excluding")
			result.ExcludedPlayers = append(result.ExcludedPlayers, p.PID)
			continue
		}

		if points, locked := req.LockedScores[p.PID]; locked {
			r.lockedBase[team] += points
			result.PlayerScoreDistributions[p.PID] = PlayerScoreDistribution{
				Mean: points, Min: points, Max: points, IsLocked: true,
			}
			result.LockedPlayerCount++
			continue
		}

		projection, ok := req.Projections[p.PID]
		if !ok || math.IsNaN(projection) || math.IsInf(projection, 0) {
			log.WithFields(logrus.Fields{"pid": p.PID, "position": p.Position}).Warn("No projection for player, excluding from simulation")
			result.ExcludedPlayers = append(result.ExcludedPlayers, p.PID)
			continue
		}
		pending = append(pending, p)
	}

	switch {
	case len(pending) == 0 && result.LockedPlayerCount == 0:
		log.Warn("No active players, assigning equal win probability")
		share := 1 / float64(len(teamIDs))
		for _, id := range teamIDs {
			result.WinProbabilities[id] = share
			result.ScoreDistributions[id] = constantDistribution(0)
		}
		result.ElapsedMS = time.Since(start).Milliseconds()
		return result, nil

	case len(pending) == 0:
		log.WithField("locked_players", result.LockedPlayerCount).Info("All players locked, resolving matchup from actual scores")
		wins := make([]float64, len(teamIDs))
		creditWinners(r.lockedBase, wins)
		for i, id := range teamIDs {
			result.WinProbabilities[id] = wins[i]
			result.ScoreDistributions[id] = constantDistribution(r.lockedBase[i])
		}
		result.ElapsedMS = time.Since(start).Milliseconds()
		return result, nil
	}

	matrix, fallback := e.buildMatrix(req, pending, log)
	result.CorrelationFallback = fallback
	if fallback {
		log.Warn("Correlation matrix regularization failed, simulating players independently")
	}

	sampler, err := NewCorrelatedSampler(matrix)
	if err != nil {
		return nil, fmt.Errorf("failed to create correlated sampler: %w", err)
	}
	r.sampler = sampler

	r.players = make([]simulatedPlayer, len(pending))
	for i, p := range pending {
		projection := req.Projections[p.PID]
		var stats *types.VarianceStats
		if s, ok := req.VarianceCache[p.PID]; ok {
			stats = &s
		}
		std := ResolveStdDev(projection, stats, p.Position)
		r.players[i] = simulatedPlayer{
			player: p,
			team:   teamIndex[p.FantasyTeamID],
			dist:   FitDistribution(projection, std, p.Position),
		}
	}

	expected := make(map[int64]float64, len(teamIDs))
	for i, id := range teamIDs {
		expected[id] = r.lockedBase[i]
	}
	for _, sp := range r.players {
		expected[teamIDs[sp.team]] += sp.dist.Mean()
	}

	if req.Seed != nil {
		r.seed = *req.Seed
	} else {
		r.seed = time.Now().UnixNano()
	}

	log.WithFields(logrus.Fields{
		"n_simulations":   n,
		"pending_players": len(pending),
		"locked_players":  result.LockedPlayerCount,
		"matrix_size":     sampler.Dim(),
		"workers":         e.config.Workers,
		"expected_totals": expected,
	}).Debug("Starting Monte Carlo simulation")

	chunks := e.simulate(ctx, r)

	completed := 0
	for _, c := range chunks {
		if c != nil {
			completed += c.iterations
		}
	}
	if completed == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if completed < n {
		result.Truncated = true
		log.WithFields(logrus.Fields{"completed": completed, "requested": n}).Warn("Simulation cancelled, returning partial results")
	}

	e.aggregate(r, chunks, completed, req.IncludeRawScores, result)
	result.NSimulations = completed
	result.ElapsedMS = time.Since(start).Milliseconds()

	log.WithFields(logrus.Fields{
		"n_simulations": completed,
		"elapsed_ms":    result.ElapsedMS,
		"truncated":     result.Truncated,
	}).Info("Monte Carlo simulation completed")

	return result, nil
}

// buildMatrix returns the regularized correlation matrix for pending
// players, extended with game-outcome variables when requested. Game
// columns are drawn but never scored.
func (e *Engine) buildMatrix(req *Request, pending []types.Player, log *logrus.Entry) (mat.Symmetric, bool) {
	builder := correlation.NewBuilder(req.Schedule, req.CorrelationCache, req.Archetypes, e.config.Regularize).
		WithRegularizer(e.regularize)
	if req.UseGameOutcomes {
		em := builder.BuildExtended(pending, req.GameOutcomeCorrelations)
		log.WithFields(logrus.Fields{
			"games":       len(em.Games),
			"matrix_size": em.Size(),
		}).Debug("Built extended correlation matrix")
		return em.Matrix, em.UsedFallback
	}
	pm := builder.Build(pending)
	return pm.Matrix, pm.UsedFallback
}

// simulate shards the iteration range into chunks and runs them on a worker
// pool. The returned slice is indexed by chunk; chunks skipped because ctx
// was cancelled are nil.
func (e *Engine) simulate(ctx context.Context, r *run) []*chunkResult {
	numChunks := (r.n + r.chunkSize - 1) / r.chunkSize
	numWorkers := e.config.Workers
	if numWorkers > numChunks {
		numWorkers = numChunks
	}

	chunksChan := make(chan int, numChunks)
	resultsChan := make(chan *chunkResult, numChunks)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go e.simulationWorker(ctx, r, chunksChan, resultsChan, &wg)
	}

	for i := 0; i < numChunks; i++ {
		chunksChan <- i
	}
	close(chunksChan)

	wg.Wait()
	close(resultsChan)

	chunks := make([]*chunkResult, numChunks)
	for c := range resultsChan {
		chunks[c.index] = c
	}
	return chunks
}

func (e *Engine) simulationWorker(ctx context.Context, r *run, chunksChan <-chan int, resultsChan chan<- *chunkResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for index := range chunksChan {
		select {
		case <-ctx.Done():
			continue
		default:
		}
		resultsChan <- r.runChunk(index)
	}
}

// runChunk simulates one chunk from its own sub-stream.
func (r *run) runChunk(index int) *chunkResult {
	first := index * r.chunkSize
	iterations := r.chunkSize
	if first+iterations > r.n {
		iterations = r.n - first
	}

	c := &chunkResult{
		index:        index,
		iterations:   iterations,
		wins:         make([]float64, len(r.teamIDs)),
		teamScores:   make([][]float64, len(r.teamIDs)),
		playerScores: make([][]float64, len(r.players)),
	}
	for t := range c.teamScores {
		c.teamScores[t] = make([]float64, iterations)
	}
	for p := range c.playerScores {
		c.playerScores[p] = make([]float64, iterations)
	}

	stream := r.sampler.Stream(ChunkSeed(r.seed, index))
	uniforms := make([]float64, r.sampler.Dim())
	totals := make([]float64, len(r.teamIDs))

	for k := 0; k < iterations; k++ {
		uniforms = stream.Next(uniforms)
		copy(totals, r.lockedBase)

		for i, sp := range r.players {
			score := sp.dist.Sample(uniforms[i])
			c.playerScores[i][k] = score
			totals[sp.team] += score
		}

		for t, total := range totals {
			c.teamScores[t][k] = total
		}
		creditWinners(totals, c.wins)
	}

	return c
}

// aggregate combines chunk accumulators in chunk order.
func (e *Engine) aggregate(r *run, chunks []*chunkResult, completed int, includeRaw bool, result *Result) {
	wins := make([]float64, len(r.teamIDs))
	teamScores := make([][]float64, len(r.teamIDs))
	playerScores := make([][]float64, len(r.players))
	for t := range teamScores {
		teamScores[t] = make([]float64, 0, completed)
	}
	for p := range playerScores {
		playerScores[p] = make([]float64, 0, completed)
	}

	for _, c := range chunks {
		if c == nil {
			continue
		}
		for t := range wins {
			wins[t] += c.wins[t]
			teamScores[t] = append(teamScores[t], c.teamScores[t]...)
		}
		for p := range playerScores {
			playerScores[p] = append(playerScores[p], c.playerScores[p]...)
		}
	}

	for t, id := range r.teamIDs {
		result.WinProbabilities[id] = wins[t] / float64(completed)
		result.ScoreDistributions[id] = summarize(teamScores[t])
	}
	for i, sp := range r.players {
		result.PlayerScoreDistributions[sp.player.PID] = summarizePlayer(playerScores[i])
	}

	if includeRaw {
		result.RawTeamScores = make(map[int64][]float64, len(r.teamIDs))
		for t, id := range r.teamIDs {
			result.RawTeamScores[id] = teamScores[t]
		}
	}
}

// indexTeams returns team ids in input order, ignoring duplicates.
func indexTeams(teams []types.FantasyTeam) ([]int64, map[int64]int) {
	ids := make([]int64, 0, len(teams))
	index := make(map[int64]int, len(teams))
	for _, t := range teams {
		if _, dup := index[t.TeamID]; dup {
			continue
		}
		index[t.TeamID] = len(ids)
		ids = append(ids, t.TeamID)
	}
	return ids, index
}
