package simulator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var (
	ErrNoResults = errors.New("no results to aggregate")
	ErrNilResult = errors.New("result is nil")
)

// AggregateWeeks combines weekly results into season-to-date totals by
// adding per-iteration team scores. Simulated weeks must carry raw team
// scores with a common iteration count. Weeks resolved without simulation
// (NSimulations == 0) contribute their fixed team totals to every iteration.
func AggregateWeeks(results ...*Result) (*Result, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	teamIDs, err := commonTeams(results)
	if err != nil {
		return nil, err
	}

	n := 0
	for i, r := range results {
		if r.NSimulations == 0 {
			continue
		}
		if n == 0 {
			n = r.NSimulations
		}
		if r.NSimulations != n {
			return nil, fmt.Errorf("week %d has %d iterations, expected %d", i, r.NSimulations, n)
		}
		for _, id := range teamIDs {
			if len(r.RawTeamScores[id]) != n {
				return nil, fmt.Errorf("week %d is missing raw scores for team %d", i, id)
			}
		}
	}

	iterations := n
	if iterations == 0 {
		iterations = 1
	}

	totals := make([][]float64, len(teamIDs))
	for t, id := range teamIDs {
		totals[t] = make([]float64, iterations)
		for _, r := range results {
			if r.NSimulations == 0 {
				fixed := r.ScoreDistributions[id].Mean
				for k := range totals[t] {
					totals[t][k] += fixed
				}
				continue
			}
			for k, v := range r.RawTeamScores[id] {
				totals[t][k] += v
			}
		}
	}

	combined := &Result{
		SimulationID:             uuid.New().String(),
		WinProbabilities:         make(map[int64]float64, len(teamIDs)),
		ScoreDistributions:       make(map[int64]ScoreDistribution, len(teamIDs)),
		PlayerScoreDistributions: make(map[string]PlayerScoreDistribution),
		NSimulations:             n,
		RawTeamScores:            make(map[int64][]float64, len(teamIDs)),
	}
	for _, r := range results {
		combined.ElapsedMS += r.ElapsedMS
		combined.LockedPlayerCount += r.LockedPlayerCount
		combined.CorrelationFallback = combined.CorrelationFallback || r.CorrelationFallback
		combined.Truncated = combined.Truncated || r.Truncated
		combined.ExcludedPlayers = append(combined.ExcludedPlayers, r.ExcludedPlayers...)
	}

	wins := make([]float64, len(teamIDs))
	iteration := make([]float64, len(teamIDs))
	for k := 0; k < iterations; k++ {
		for t := range teamIDs {
			iteration[t] = totals[t][k]
		}
		creditWinners(iteration, wins)
	}

	for t, id := range teamIDs {
		combined.WinProbabilities[id] = wins[t] / float64(iterations)
		if n == 0 {
			combined.ScoreDistributions[id] = constantDistribution(totals[t][0])
			continue
		}
		combined.ScoreDistributions[id] = summarize(totals[t])
		combined.RawTeamScores[id] = totals[t]
	}
	if n == 0 {
		combined.RawTeamScores = nil
	}

	return combined, nil
}

// commonTeams returns the sorted team ids shared by every result.
func commonTeams(results []*Result) ([]int64, error) {
	if results[0] == nil {
		return nil, fmt.Errorf("week 0: %w", ErrNilResult)
	}
	ids := make([]int64, 0, len(results[0].WinProbabilities))
	for id := range results[0].WinProbabilities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for i, r := range results[1:] {
		if r == nil {
			return nil, fmt.Errorf("week %d: %w", i+1, ErrNilResult)
		}
		if len(r.WinProbabilities) != len(ids) {
			return nil, fmt.Errorf("week %d has %d teams, expected %d", i+1, len(r.WinProbabilities), len(ids))
		}
		for _, id := range ids {
			if _, ok := r.WinProbabilities[id]; !ok {
				return nil, fmt.Errorf("week %d is missing team %d", i+1, id)
			}
		}
	}
	return ids, nil
}
