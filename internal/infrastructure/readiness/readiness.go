// Package readiness blocks until the services the application depends on
// accept requests, retrying at a fixed interval.
package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Checker probes a single dependency
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Pinger is satisfied by persistence.Database
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker probes the database with a trivial query
type DatabaseChecker struct {
	db Pinger
}

// NewDatabaseChecker creates a checker for db
func NewDatabaseChecker(db Pinger) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) error {
	return c.db.Ping(ctx)
}

// RedisChecker probes Redis with PING
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a checker for client
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Config controls the retry loop
type Config struct {
	MaxTries       int           // attempts per checker, values below 1 mean 1
	Wait           time.Duration // pause between attempts
	AttemptTimeout time.Duration // upper bound for a single attempt, 0 = none
}

// Prober waits for a set of checkers in order
type Prober struct {
	checkers []Checker
	cfg      Config
	logger   *zap.Logger
}

// NewProber creates a prober for the given checkers
func NewProber(cfg Config, logger *zap.Logger, checkers ...Checker) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTries < 1 {
		cfg.MaxTries = 1
	}
	return &Prober{checkers: checkers, cfg: cfg, logger: logger}
}

// Wait returns once every checker has succeeded, or with the last error of
// the first checker that exhausted its attempts. Cancelling ctx stops the wait.
func (p *Prober) Wait(ctx context.Context) error {
	for _, c := range p.checkers {
		if err := p.waitFor(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prober) waitFor(ctx context.Context, c Checker) error {
	log := p.logger.With(zap.String("dependency", c.Name()))
	log.Info("Waiting for dependency",
		zap.Int("max_tries", p.cfg.MaxTries),
		zap.Duration("wait", p.cfg.Wait),
	)

	attempts := 0
	op := func() error {
		attempts++
		attemptCtx := ctx
		if p.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.cfg.AttemptTimeout)
			defer cancel()
		}
		return c.Check(attemptCtx)
	}
	notify := func(err error, next time.Duration) {
		log.Warn("Dependency not ready, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.cfg.Wait), uint64(p.cfg.MaxTries-1)),
		ctx,
	)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		log.Error("Dependency not ready", zap.Int("attempts", attempts), zap.Error(err))
		return fmt.Errorf("%s not ready after %d attempts: %w", c.Name(), attempts, err)
	}

	log.Info("Dependency ready", zap.Int("attempts", attempts))
	return nil
}
