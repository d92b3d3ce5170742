package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stitts-dev/matchup-sim/internal/cache"
	"github.com/stitts-dev/matchup-sim/internal/simulator"
	"github.com/stitts-dev/matchup-sim/pkg/config"
	"github.com/stitts-dev/matchup-sim/pkg/logger"
)

var (
	errNoRequests       = errors.New("no simulation requests in input")
	errCacheUnavailable = errors.New("result cache is disabled or unreachable")
)

type options struct {
	input          string
	simulations    int
	simulationsSet bool
	seed           int64
	seedSet        bool
	rawScores      bool
	noCache        bool
	pretty         bool
	flushCache     bool
	cacheStatus    bool
}

func main() {
	flags := pflag.NewFlagSet("simulate", pflag.ExitOnError)
	input := flags.StringP("input", "i", "-", "path to a JSON simulation request, - for stdin")
	simulations := flags.IntP("simulations", "n", 0, "number of Monte Carlo iterations (overrides the request)")
	seed := flags.Int64("seed", 0, "random seed (overrides the request)")
	flags.Int("workers", 0, "simulation workers, 0 for one per CPU")
	rawScores := flags.Bool("raw-scores", false, "include per-iteration team scores in the output")
	noCache := flags.Bool("no-cache", false, "skip the Redis result cache")
	pretty := flags.Bool("pretty", false, "indent JSON output")
	flushCache := flags.Bool("flush-cache", false, "remove every cached simulation result and exit")
	cacheStatus := flags.Bool("cache-status", false, "print result cache statistics and exit")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	if err := v.BindPFlag("SIMULATION_WORKERS", flags.Lookup("workers")); err != nil {
		logrus.Fatalf("Failed to bind flags: %v", err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	logger.WithService("matchup-sim").WithFields(logrus.Fields{
		"environment": cfg.Env,
		"workers":     cfg.Workers(),
		"cache":       cfg.CacheEnabled && !*noCache,
	}).Debug("Starting matchup simulation")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		input:          *input,
		simulations:    *simulations,
		simulationsSet: flags.Changed("simulations"),
		seed:           *seed,
		seedSet:        flags.Changed("seed"),
		rawScores:      *rawScores,
		noCache:        *noCache,
		pretty:         *pretty,
		flushCache:     *flushCache,
		cacheStatus:    *cacheStatus,
	}
	if opts.flushCache || opts.cacheStatus {
		if err := runCacheCommand(ctx, cfg, opts, os.Stdout, log); err != nil {
			logger.WithService("matchup-sim").Fatalf("Cache command failed: %v", err)
		}
		return
	}
	if err := run(ctx, cfg, opts, os.Stdin, os.Stdout, log); err != nil {
		logger.WithService("matchup-sim").Fatalf("Simulation failed: %v", err)
	}
}

// run simulates one request, or a JSON array of weekly requests whose
// results are combined into season-to-date totals.
func run(ctx context.Context, cfg *config.Config, opts options, stdin io.Reader, stdout io.Writer, log *logrus.Logger) error {
	reqs, err := readRequests(opts.input, stdin)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		if opts.simulationsSet {
			req.NSimulations = opts.simulations
		}
		if opts.seedSet {
			seed := opts.seed
			req.Seed = &seed
		}
		if opts.rawScores || len(reqs) > 1 {
			req.IncludeRawScores = true
		}
	}

	var runner cache.Runner = simulator.NewEngine(simulator.ConfigFrom(cfg), log)
	resultCache, client := openCache(ctx, cfg, opts, log)
	if client != nil {
		defer client.Close()
	}

	results := make([]*simulator.Result, 0, len(reqs))
	for week, req := range reqs {
		var result *simulator.Result
		if resultCache != nil {
			var hit bool
			result, hit, err = resultCache.Run(ctx, runner, req)
			if hit {
				logger.WithSimulationID(log, result.SimulationID).WithField("week", week).Info("Served simulation from cache")
			}
		} else {
			result, err = runner.Run(ctx, req)
		}
		if err != nil {
			return fmt.Errorf("week %d: %w", week, err)
		}
		results = append(results, result)
	}

	result := results[0]
	if len(results) > 1 {
		if result, err = simulator.AggregateWeeks(results...); err != nil {
			return fmt.Errorf("failed to aggregate weeks: %w", err)
		}
		if !opts.rawScores {
			result.RawTeamScores = nil
		}
	}

	return writeJSON(stdout, result, opts.pretty)
}

// runCacheCommand flushes or reports on the result cache.
func runCacheCommand(ctx context.Context, cfg *config.Config, opts options, stdout io.Writer, log *logrus.Logger) error {
	resultCache, client := openCache(ctx, cfg, options{}, log)
	if resultCache == nil {
		return errCacheUnavailable
	}
	defer client.Close()

	if opts.flushCache {
		if err := resultCache.Flush(ctx); err != nil {
			return err
		}
	}
	return writeJSON(stdout, resultCache.Status(ctx), opts.pretty)
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	encoder := json.NewEncoder(w)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func readRequests(path string, stdin io.Reader) ([]*simulator.Request, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}

	var reqs []*simulator.Request
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, fmt.Errorf("failed to decode request: %w", err)
		}
	} else {
		var req simulator.Request
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return nil, fmt.Errorf("failed to decode request: %w", err)
		}
		reqs = append(reqs, &req)
	}

	for i, req := range reqs {
		if req == nil {
			return nil, fmt.Errorf("failed to decode request: week %d is null", i)
		}
	}
	if len(reqs) == 0 {
		return nil, errNoRequests
	}
	return reqs, nil
}

// openCache connects to Redis when caching is enabled. An unreachable
// server disables caching for this run.
func openCache(ctx context.Context, cfg *config.Config, opts options, log *logrus.Logger) (*cache.SimulationCache, *redis.Client) {
	if !cfg.CacheEnabled || opts.noCache {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("Invalid REDIS_URL, result cache disabled")
		return nil, nil
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unavailable, result cache disabled")
		client.Close()
		return nil, nil
	}

	return cache.NewSimulationCache(client, log, cfg.CacheTTL), client
}
