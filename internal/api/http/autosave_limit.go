package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitor pairs a limiter with the last time it was used so idle entries
// can be swept.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// AutosaveLimiter throttles answer saves per attempt.
type AutosaveLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewAutosaveLimiter allows perSecond saves per attempt with the given
// burst. A non-positive rate disables throttling.
func NewAutosaveLimiter(perSecond float64, burst int) *AutosaveLimiter {
	if burst < 1 {
		burst = 1
	}
	l := rate.Inf
	if perSecond > 0 {
		l = rate.Limit(perSecond)
	}
	return &AutosaveLimiter{
		visitors: make(map[string]*visitor),
		limit:    l,
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether another save for attemptID may go through now.
func (l *AutosaveLimiter) Allow(attemptID string) bool {
	if l == nil || l.limit == rate.Inf {
		return true
	}
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) > time.Minute {
		for id, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, id)
			}
		}
		l.lastSweep = now
	}
	v, ok := l.visitors[attemptID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[attemptID] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (l *AutosaveLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
