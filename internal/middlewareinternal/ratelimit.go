package middlewareinternal

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/wire"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per remote IP.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	logger   *zap.Logger
}

func NewRateLimiter(requestsPerSecond float64, burst int, logger *zap.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Allow reports whether a request from remoteAddr may proceed now.
func (rl *RateLimiter) Allow(remoteAddr string) bool {
	key := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		key = host
	}
	return rl.getLimiter(key).Allow()
}

func (rl *RateLimiter) Handler(next wire.Handler) wire.Handler {
	return wire.HandlerFunc(func(ctx context.Context, req *wire.Request) *wire.Response {
		if !rl.Allow(req.RemoteAddr) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("remote", req.RemoteAddr),
				zap.String("method", req.Method),
				zap.String("path", req.Path))
			return wire.Message(http.StatusTooManyRequests, "Too many requests")
		}
		return next.Serve(ctx, req)
	})
}

// Cleanup drops every limiter once the map grows past maxKeys.
func (rl *RateLimiter) Cleanup(maxKeys int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) > maxKeys {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(10000)
			}
		}
	}()
}
