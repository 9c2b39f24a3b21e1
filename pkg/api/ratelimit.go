package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter applies a global and a per-user request budget.
type RateLimiter struct {
	globalLimiter *rate.Limiter
	userLimiters  map[string]*rate.Limiter
	mu            sync.RWMutex

	requestsPerSecond float64
	burst             int
}

// NewRateLimiter creates a rate limiter with the given per-user budget.
// The global budget is ten times the per-user one.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		globalLimiter:     rate.NewLimiter(rate.Limit(requestsPerSecond*10), burst*10),
		userLimiters:      make(map[string]*rate.Limiter),
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
	}
}

// Allow checks if a request from the given user should be allowed.
func (rl *RateLimiter) Allow(userID string) bool {
	if !rl.globalLimiter.Allow() {
		return false
	}
	return rl.getUserLimiter(userID).Allow()
}

// getUserLimiter gets or creates a rate limiter for a specific user.
func (rl *RateLimiter) getUserLimiter(userID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.userLimiters[userID]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := rl.userLimiters[userID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(rl.requestsPerSecond), rl.burst)
	rl.userLimiters[userID] = limiter
	return limiter
}
