package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
)

// idleClientAge is how long a client bucket may sit unused before the
// janitor drops it.
const idleClientAge = 3 * time.Minute

// clientLimiter pairs a token bucket with its last use so idle entries
// can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client-IP request budget. The budget comes
// from ratelimit.requests_per_minute, with burst capacity equal to 10%
// of the per-minute limit. A janitor goroutine evicts idle buckets
// until Stop is called.
type RateLimiter struct {
	perMinute int
	perSecond rate.Limit
	burst     int

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter builds a limiter and starts its janitor. The caller
// owns the lifecycle and stops it on shutdown. When rate limiting is
// disabled the returned limiter is nil; Middleware and Stop both
// accept that.
func NewRateLimiter(cfg *viper.Viper) *RateLimiter {
	if !cfg.GetBool("ratelimit.enabled") {
		return nil
	}

	perMinute := cfg.GetInt("ratelimit.requests_per_minute")
	if perMinute <= 0 {
		perMinute = 120
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}

	rl := &RateLimiter{
		perMinute: perMinute,
		perSecond: rate.Limit(float64(perMinute) / 60.0),
		burst:     burst,
		clients:   make(map[string]*clientLimiter),
		stop:      make(chan struct{}),
	}
	go rl.janitor(time.Minute)
	return rl
}

// Middleware enforces the budget per client IP.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	if rl == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			rl.mu.Lock()
			client, ok := rl.clients[ip]
			if !ok {
				client = &clientLimiter{limiter: rate.NewLimiter(rl.perSecond, rl.burst)}
				rl.clients[ip] = client
			}
			client.lastSeen = time.Now()
			rl.mu.Unlock()

			if !client.limiter.Allow() {
				c.Response().Header().Set("Retry-After", "60")
				return apperrors.RateLimitError(rl.perMinute, "1m")
			}

			return next(c)
		}
	}
}

// Stop terminates the janitor. Safe to call repeatedly and on the nil
// limiter.
func (rl *RateLimiter) Stop() {
	if rl == nil {
		return
	}
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			rl.sweep(now)
		case <-rl.stop:
			return
		}
	}
}

// sweep drops buckets that have been idle for a few minutes.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, client := range rl.clients {
		if now.Sub(client.lastSeen) > idleClientAge {
			delete(rl.clients, ip)
		}
	}
}
