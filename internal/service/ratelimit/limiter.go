package ratelimit

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	xhttp "Ares/pkg/http"
)

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// idleAfter is how long a key goes unseen before its bucket is forgotten.
const idleAfter = 10 * time.Minute

// Limiter keeps one token bucket per key. A new key starts with a full burst.
type Limiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

// New allows bursts of capacity requests refilled at refillPerSec. A zero
// refill never refills.
func New(capacity, refillPerSec float64) *Limiter {
	burst := int(math.Floor(capacity))
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(refillPerSec),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) bool {
	_, ok := l.reserve(key)
	return ok
}

func (l *Limiter) reserve(key string) (time.Duration, bool) {
	now := l.now()
	l.mu.Lock()
	if l.lastSweep.IsZero() {
		l.lastSweep = now
	} else if now.Sub(l.lastSweep) > idleAfter {
		l.sweepLocked(now.Add(-idleAfter))
		l.lastSweep = now
	}
	c, ok := l.clients[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.seen = now
	l.mu.Unlock()

	r := c.lim.ReserveN(now, 1)
	if !r.OK() {
		return 0, false
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return wait, false
	}
	return 0, true
}

// Sweep forgets keys idle for longer than idle and reports how many.
func (l *Limiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(l.now().Add(-idle))
}

func (l *Limiter) sweepLocked(cutoff time.Time) int {
	n := 0
	for k, c := range l.clients {
		if c.seen.Before(cutoff) {
			delete(l.clients, k)
			n++
		}
	}
	return n
}

// Middleware answers 429 with a Retry-After hint once a client IP is over
// its limit.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			wait, ok := l.reserve(c.RealIP())
			if !ok {
				if wait > 0 {
					c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				}
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded, retry later"))
			}
			return next(c)
		}
	}
}
