package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	clientIdleTTL   = 10 * time.Minute
	evictAfterCount = 10000
)

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rate       rate.Limit
	burst      int
}

func newClientLimiter(perMinute int) *clientLimiter {
	return &clientLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rate:       rate.Limit(float64(perMinute) / 60.0),
		burst:      max(1, perMinute/3),
	}
}

// allow spends a token for ip. When none is left it returns false and how
// long until the next one.
func (l *clientLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.limiters) >= evictAfterCount {
		l.evict(now.Add(-clientIdleTTL))
	}

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[ip] = limiter
	}
	l.lastAccess[ip] = now

	r := limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *clientLimiter) evict(cutoff time.Time) {
	for ip, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.limiters, ip)
			delete(l.lastAccess, ip)
		}
	}
}

// ClientRateLimit throttles anonymous callers per IP. perMinute <= 0
// disables it. The IP is c.ClientIP(), so forwarded headers only count when
// the engine trusts the proxy that set them.
//
// Rejections are plain text like the per-vehicle cooldown, so callers of the
// public routes get a single 429 shape.
func ClientRateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	l := newClientLimiter(perMinute)
	return func(c *gin.Context) {
		ok, wait := l.allow(c.ClientIP(), time.Now())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.String(http.StatusTooManyRequests, throttleMessage(wait))
			c.Abort()
			return
		}
		c.Next()
	}
}

func throttleMessage(wait time.Duration) string {
	minutes := max(1, int(math.Ceil(wait.Minutes())))
	unit := "minutos"
	if minutes == 1 {
		unit = "minuto"
	}
	return fmt.Sprintf("Demasiadas solicitudes, intenta de nuevo en %d %s", minutes, unit)
}
