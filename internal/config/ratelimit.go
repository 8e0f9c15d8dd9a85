package config

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Rate limit classes.
const (
	RateClassAPI      = "api"
	RateClassAuth     = "auth"
	RateClassWebhook  = "webhook"
	RateClassStripe   = "stripe"
	RateClassDatabase = "database"
)

type RateLimitPolicy struct {
	Window time.Duration
	Limit  int
}

type RateLimitPolicies map[string]RateLimitPolicy

func DefaultRateLimitPolicies() RateLimitPolicies {
	return RateLimitPolicies{
		RateClassAPI:      {Window: time.Minute, Limit: 100},
		RateClassAuth:     {Window: time.Minute, Limit: 10},
		RateClassWebhook:  {Window: time.Minute, Limit: 1000},
		RateClassStripe:   {Window: time.Minute, Limit: 50},
		RateClassDatabase: {Window: time.Minute, Limit: 200},
	}
}

// RateLimitConfigHolder serves the active policy table. The table comes from
// code defaults, optionally overridden by a yml file that is watched for edits.
type RateLimitConfigHolder struct {
	current atomic.Value // holds RateLimitPolicies
}

func NewRateLimitConfigHolder(cfg Config, log *zap.Logger) (*RateLimitConfigHolder, error) {
	holder := &RateLimitConfigHolder{}
	defaults := DefaultRateLimitPolicies()

	path := strings.TrimSpace(cfg.RateLimitConfig)
	if path == "" {
		holder.current.Store(defaults)
		return holder, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yml")
	for class, policy := range defaults {
		v.SetDefault("classes."+class+".window", policy.Window)
		v.SetDefault("classes."+class+".limit", policy.Limit)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rate limit config: %w", err)
	}

	policies, err := decodeRateLimitPolicies(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(policies)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRateLimitPolicies(v)
		if err != nil {
			log.Warn("rate limit config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("rate limit config reloaded", zap.String("file", e.Name), zap.Strings("classes", updated.Classes()))
	})

	return holder, nil
}

// NewStaticRateLimitConfig builds a holder over a fixed table.
func NewStaticRateLimitConfig(policies RateLimitPolicies) *RateLimitConfigHolder {
	holder := &RateLimitConfigHolder{}
	holder.current.Store(policies)
	return holder
}

func (h *RateLimitConfigHolder) Get() RateLimitPolicies {
	return h.current.Load().(RateLimitPolicies)
}

// Policy returns the policy for class, falling back to the api class.
func (h *RateLimitConfigHolder) Policy(class string) RateLimitPolicy {
	policies := h.Get()
	if policy, ok := policies[class]; ok {
		return policy
	}
	return policies[RateClassAPI]
}

func (p RateLimitPolicies) Classes() []string {
	out := make([]string, 0, len(p))
	for class := range p {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

func decodeRateLimitPolicies(v *viper.Viper) (RateLimitPolicies, error) {
	classes := map[string]struct{}{}
	for class := range DefaultRateLimitPolicies() {
		classes[class] = struct{}{}
	}
	for class := range v.GetStringMap("classes") {
		classes[strings.ToLower(class)] = struct{}{}
	}

	policies := make(RateLimitPolicies, len(classes))
	for class := range classes {
		policies[class] = RateLimitPolicy{
			Window: v.GetDuration("classes." + class + ".window"),
			Limit:  v.GetInt("classes." + class + ".limit"),
		}
	}
	if err := validateRateLimitPolicies(policies); err != nil {
		return nil, err
	}
	return policies, nil
}

func validateRateLimitPolicies(policies RateLimitPolicies) error {
	if _, ok := policies[RateClassAPI]; !ok {
		return fmt.Errorf("rate limit class %q is required", RateClassAPI)
	}
	for class, policy := range policies {
		if policy.Window <= 0 {
			return fmt.Errorf("rate limit class %q: window must be positive", class)
		}
		if policy.Limit <= 0 {
			return fmt.Errorf("rate limit class %q: limit must be positive", class)
		}
	}
	return nil
}
