// Package health reports whether the service and its dependencies respond.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	CheckDatabase = "database"
	CheckRedis    = "redis"
	CheckExternal = "external"
)

const defaultCheckTimeout = 3 * time.Second

// Pinger is a dependency that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Check struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"responseTime"`
	Error        string `json:"error,omitempty"`
}

type Report struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Uptime    float64          `json:"uptime"`
	Checks    map[string]Check `json:"checks"`
}

// Healthy reports whether the endpoint should answer 200.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Clock    clock.Clock
	Redis    *redis.Client `optional:"true"`
	External Pinger        `name:"payment_processor" optional:"true"`
}

type Checker struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	probes  map[string]func(ctx context.Context) error
	version string
	started time.Time
	timeout time.Duration
}

func NewChecker(p Params) *Checker {
	c := &Checker{
		db:      p.DB,
		log:     p.Log.Named("health"),
		clock:   p.Clock,
		version: p.Cfg.AppVersion,
		started: p.Clock.Now(),
		timeout: defaultCheckTimeout,
	}
	c.probes = map[string]func(ctx context.Context) error{
		CheckDatabase: c.pingDatabase,
	}
	if p.Redis != nil {
		client := p.Redis
		c.probes[CheckRedis] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	if p.External != nil {
		c.probes[CheckExternal] = p.External.Ping
	}
	return c
}

// Check runs every probe concurrently, each under its own timeout. A failed
// database makes the service unhealthy; any other failure degrades it.
func (c *Checker) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check, len(c.probes))
	)
	for name, probe := range c.probes {
		wg.Add(1)
		go func(name string, probe func(context.Context) error) {
			defer wg.Done()
			result := c.run(ctx, probe)
			if result.Status != StatusHealthy {
				c.log.Warn("health check failed", zap.String("check", name), zap.String("error", result.Error))
			}
			mu.Lock()
			checks[name] = result
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	status := StatusHealthy
	for name, check := range checks {
		if check.Status == StatusHealthy {
			continue
		}
		if name == CheckDatabase {
			status = StatusUnhealthy
			break
		}
		status = StatusDegraded
	}

	now := c.clock.Now()
	return Report{
		Status:    status,
		Timestamp: now,
		Version:   c.version,
		Uptime:    now.Sub(c.started).Seconds(),
		Checks:    checks,
	}
}

func (c *Checker) run(ctx context.Context, probe func(context.Context) error) Check {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- probe(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.New("check timed out")
		}
		return Check{Status: StatusUnhealthy, ResponseTime: elapsed, Error: err.Error()}
	}
	return Check{Status: StatusHealthy, ResponseTime: elapsed}
}

func (c *Checker) pingDatabase(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	var one int
	return c.db.WithContext(ctx).Raw(`SELECT 1 FROM organizations LIMIT 1`).Scan(&one).Error
}
