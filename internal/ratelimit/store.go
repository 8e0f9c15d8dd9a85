package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one sliding-window check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store counts requests per key over a sliding window. A request is only
// recorded when it is allowed.
type Store interface {
	Check(ctx context.Context, key string, window time.Duration, limit int) (Result, error)
}
