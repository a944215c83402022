package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window admission controller keyed by caller
// identity. One mutex guards all keys; admission volume here is HTTP
// request rate, so striping is not worth the complexity.
type Limiter struct {
	mu         sync.Mutex
	admissions map[string][]time.Time
	now        func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		admissions: make(map[string][]time.Time),
		now:        time.Now,
	}
}

// Allow prunes admissions for key older than the window, then admits the
// call only when fewer than maxRequests remain. A denied call mutates
// nothing, so a burst of M > N concurrent calls admits exactly N.
func (limiter *Limiter) Allow(key string, maxRequests int, window time.Duration) bool {
	if limiter == nil || maxRequests <= 0 || window <= 0 {
		return false
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.now()
	cutoff := now.Add(-window)

	recent := limiter.admissions[key][:0]
	for _, stamp := range limiter.admissions[key] {
		if stamp.After(cutoff) {
			recent = append(recent, stamp)
		}
	}

	if len(recent) >= maxRequests {
		limiter.admissions[key] = recent
		return false
	}

	limiter.admissions[key] = append(recent, now)
	return true
}

// Prune drops keys with no admissions inside the window. Callers may run
// it periodically to bound memory for churning key sets.
func (limiter *Limiter) Prune(window time.Duration) {
	if limiter == nil || window <= 0 {
		return
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	cutoff := limiter.now().Add(-window)
	for key, stamps := range limiter.admissions {
		recent := stamps[:0]
		for _, stamp := range stamps {
			if stamp.After(cutoff) {
				recent = append(recent, stamp)
			}
		}
		if len(recent) == 0 {
			delete(limiter.admissions, key)
			continue
		}
		limiter.admissions[key] = recent
	}
}

// KeyCount reports how many keys currently hold admissions.
func (limiter *Limiter) KeyCount() int {
	if limiter == nil {
		return 0
	}
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	return len(limiter.admissions)
}
