package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcoot/playerhub/internal/api/apierr"
)

// RateLimiterConfig holds per-client rate limiting settings
type RateLimiterConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
	// TrustForwardedFor keys clients by the first X-Forwarded-For address.
	// Only enable behind a proxy that sets the header itself.
	TrustForwardedFor bool
}

// DefaultRateLimiterConfig allows 5 requests per second with a burst of 10
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            rate.Limit(5),
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits requests per client address
type RateLimiter struct {
	config RateLimiterConfig
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its background cleanup
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	rl := &RateLimiter{
		config:   config,
		logger:   logger,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the background cleanup
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.clientKey(r)
			if !rl.limiter(key).Allow() {
				retryAfter := max(int(math.Ceil(1.0/float64(rl.config.Rate))), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				apierr.WriteError(w, apierr.NewRateLimitedError())
				rl.logger.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("path", r.URL.Path),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount returns the number of tracked clients
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, ok := rl.limiters[key]; ok {
		cl.lastAccess = time.Now()
		return cl.limiter
	}
	cl := &clientLimiter{
		limiter:    rate.NewLimiter(rl.config.Rate, rl.config.Burst),
		lastAccess: time.Now(),
	}
	rl.limiters[key] = cl
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops clients idle for more than two cleanup intervals
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, key)
		}
	}
}

// clientKey identifies the caller by remote host, or by forwarded address when trusted
func (rl *RateLimiter) clientKey(r *http.Request) string {
	if rl.config.TrustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
