package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/matchup-sim/internal/simulator"
	"github.com/stitts-dev/matchup-sim/pkg/logger"
)

const (
	keyPrefix  = "simulation:"
	setRetries = 3
)

var (
	// ErrCacheMiss is returned when no result is stored under a key.
	ErrCacheMiss = errors.New("simulation result not found in cache")
	// ErrCorruptEntry is returned when a stored result cannot be decoded.
	ErrCorruptEntry = errors.New("corrupt simulation cache entry")
)

// Runner executes a simulation request with fixed engine settings.
type Runner interface {
	Run(ctx context.Context, req *simulator.Request) (*simulator.Result, error)
	Config() simulator.Config
}

// fingerprint is everything a seeded result depends on. Worker count and
// the simulation ceiling are left out since they never change a result.
type fingerprint struct {
	Request            *simulator.Request `json:"request"`
	DefaultSimulations int                `json:"default_simulations"`
	ChunkSize          int                `json:"chunk_size"`
	Shrinkage          float64            `json:"shrinkage"`
	MinEigenvalue      float64            `json:"min_eigenvalue"`
}

// SimulationCache stores results of seeded simulation requests in Redis.
type SimulationCache struct {
	client *redis.Client
	logger *logrus.Logger
	ttl    time.Duration
}

// NewSimulationCache creates a new simulation result cache
func NewSimulationCache(client *redis.Client, logger *logrus.Logger, ttl time.Duration) *SimulationCache {
	return &SimulationCache{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Key fingerprints a request together with the engine settings that shape
// its draws. Unseeded requests are not reproducible and report ok = false.
func Key(req *simulator.Request, cfg simulator.Config) (key string, ok bool, err error) {
	if req == nil || req.Seed == nil {
		return "", false, nil
	}
	data, err := json.Marshal(fingerprint{
		Request:            req,
		DefaultSimulations: cfg.DefaultSimulations,
		ChunkSize:          cfg.ChunkSize,
		Shrinkage:          cfg.Regularize.Shrinkage,
		MinEigenvalue:      cfg.Regularize.MinEigenvalue,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal simulation request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), true, nil
}

// Set stores a simulation result in cache
func (c *SimulationCache) Set(ctx context.Context, key string, result *simulator.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal simulation result: %w", err)
	}

	fullKey := keyPrefix + key
	if err := c.client.Set(ctx, fullKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set simulation result in cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":     fullKey,
		"expiration":    c.ttl,
		"n_simulations": result.NSimulations,
	}).Debug("Cached simulation result")

	return nil
}

// SetWithRetry attempts to store a result up to maxRetries times
func (c *SimulationCache) SetWithRetry(ctx context.Context, key string, result *simulator.Result, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if err := c.Set(ctx, key, result); err != nil {
			lastErr = err
			c.logger.WithError(err).WithField("attempt", i+1).Warn("Cache set attempt failed")
			if i == maxRetries-1 {
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("failed to set cache after %d retries: %w", maxRetries, lastErr)
}

// Get retrieves a simulation result from cache
func (c *SimulationCache) Get(ctx context.Context, key string) (*simulator.Result, error) {
	fullKey := keyPrefix + key
	data, err := c.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get simulation result from cache: %w", err)
	}

	var result simulator.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, fullKey, err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":     fullKey,
		"n_simulations": result.NSimulations,
	}).Debug("Retrieved simulation result from cache")

	return &result, nil
}

// Delete removes a simulation result from cache
func (c *SimulationCache) Delete(ctx context.Context, key string) error {
	fullKey := keyPrefix + key
	if err := c.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("failed to delete simulation result from cache: %w", err)
	}

	c.logger.WithField("cache_key", fullKey).Debug("Deleted simulation result from cache")
	return nil
}

// Flush clears all simulation results from cache
func (c *SimulationCache) Flush(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return fmt.Errorf("failed to get simulation keys: %w", err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete simulation keys: %w", err)
		}
	}

	c.logger.WithField("deleted_keys", len(keys)).Info("Flushed simulation cache")
	return nil
}

// Status returns cache statistics
func (c *SimulationCache) Status(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service":   "simulation-cache",
		"timestamp": time.Now(),
		"connected": c.client.Ping(ctx).Err() == nil,
	}

	if dbSize := c.client.DBSize(ctx); dbSize.Err() == nil {
		status["db_size"] = dbSize.Val()
	}

	if keys, err := c.client.Keys(ctx, keyPrefix+"*").Result(); err == nil {
		status["simulation_keys"] = len(keys)
	}

	return status
}

// Run serves req from cache when possible and otherwise runs it, storing
// complete seeded results. Cache failures are logged and never fail the run;
// undecodable entries are evicted and recomputed.
func (c *SimulationCache) Run(ctx context.Context, runner Runner, req *simulator.Request) (*simulator.Result, bool, error) {
	key, cacheable, err := Key(req, runner.Config())
	if err != nil {
		c.logger.WithError(err).Warn("Failed to fingerprint simulation request")
		cacheable = false
	}

	if cacheable {
		result, err := c.Get(ctx, key)
		switch {
		case err == nil:
			logger.WithSimulationID(c.logger, result.SimulationID).Debug("Simulation cache hit")
			return result, true, nil
		case errors.Is(err, ErrCorruptEntry):
			c.logger.WithError(err).Warn("Evicting corrupt simulation cache entry")
			if err := c.Delete(ctx, key); err != nil {
				c.logger.WithError(err).Warn("Failed to evict simulation cache entry")
			}
		case !errors.Is(err, ErrCacheMiss):
			c.logger.WithError(err).Warn("Simulation cache lookup failed")
		}
	}

	result, err := runner.Run(ctx, req)
	if err != nil {
		return nil, false, err
	}

	if cacheable && !result.Truncated {
		if err := c.SetWithRetry(ctx, key, result, setRetries); err != nil {
			logger.WithSimulationID(c.logger, result.SimulationID).WithError(err).Warn("Failed to cache simulation result")
		}
	}

	return result, false, nil
}
