package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
	"go.uber.org/zap"
)

const keyPattern = "ratelimit:%s:%s"

// Decision is what the limiter tells the transport layer about a request.
type Decision struct {
	Allowed   bool
	Class     string
	Limit     int
	Remaining int
	ResetAt   time.Time
	// Bypassed is set when the store was not consulted, either because
	// limiting is off or because the store failed.
	Bypassed bool
}

// RetryAfter is the wait until the window frees a slot, at least a second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait.Round(time.Second)
}

type Limiter struct {
	enabled  bool
	store    Store
	policies *config.RateLimitConfigHolder
	clock    clock.Clock
	log      *zap.Logger
}

func NewLimiter(enabled bool, store Store, policies *config.RateLimitConfigHolder, c clock.Clock, log *zap.Logger) *Limiter {
	if c == nil {
		c = clock.System()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{
		enabled:  enabled && store != nil,
		store:    store,
		policies: policies,
		clock:    c,
		log:      log.Named("ratelimit"),
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// Check counts one request for identifier against the policy of class.
// Store failures let the request through.
func (l *Limiter) Check(ctx context.Context, identifier, class string) Decision {
	class = strings.ToLower(strings.TrimSpace(class))
	policy := l.policy(class)
	if !l.Enabled() {
		return Decision{Allowed: true, Class: class, Limit: policy.Limit, Remaining: policy.Limit, Bypassed: true}
	}

	res, err := l.store.Check(ctx, fmt.Sprintf(keyPattern, class, identifier), policy.Window, policy.Limit)
	if err != nil {
		l.log.Error("rate limit check failed, allowing request",
			zap.String("class", class),
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		return Decision{
			Allowed:   true,
			Class:     class,
			Limit:     policy.Limit,
			Remaining: policy.Limit,
			ResetAt:   l.clock.Now().Add(policy.Window),
			Bypassed:  true,
		}
	}
	return Decision{
		Allowed:   res.Allowed,
		Class:     class,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
	}
}

func (l *Limiter) Now() time.Time {
	if l == nil || l.clock == nil {
		return time.Now().UTC()
	}
	return l.clock.Now()
}

func (l *Limiter) policy(class string) config.RateLimitPolicy {
	if l == nil || l.policies == nil {
		return config.DefaultRateLimitPolicies()[config.RateClassAPI]
	}
	return l.policies.Policy(class)
}

// Identifier keys a caller by user id when authenticated, otherwise by the
// first forwarded client address.
func Identifier(userID string, header http.Header) string {
	if id := strings.TrimSpace(userID); id != "" {
		return "user:" + id
	}
	if forwarded := header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return "ip:" + first
		}
	}
	for _, name := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if ip := strings.TrimSpace(header.Get(name)); ip != "" {
			return "ip:" + ip
		}
	}
	return "ip:unknown"
}
