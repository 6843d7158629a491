package middlewares

import (
	"net/http"
	"sync"

	gin "github.com/gin-gonic/gin"
	zap "go.uber.org/zap"
	rate "golang.org/x/time/rate"
)

// limiterPair holds the RPS and RPM limiters of one credential
type limiterPair struct {
	rpsLimiter *rate.Limiter
	rpmLimiter *rate.Limiter
}

// Throttle limits agent calls per credential using RPS and RPM token buckets.
// Calls without a resolved credential share the client IP as their key.
type Throttle struct {
	logger   *zap.Logger
	rps      int
	rpm      int
	mu       sync.Mutex
	limiters map[string]*limiterPair
}

// NewThrottle creates a throttle; a zero limit disables that bucket
func NewThrottle(logger *zap.Logger, rps, rpm int) *Throttle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Throttle{
		logger:   logger,
		rps:      rps,
		rpm:      rpm,
		limiters: make(map[string]*limiterPair),
	}
}

// Enabled reports whether any limit is configured
func (t *Throttle) Enabled() bool {
	return t.rps > 0 || t.rpm > 0
}

func (t *Throttle) getLimiters(key string) *limiterPair {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pair, ok := t.limiters[key]; ok {
		return pair
	}

	pair := &limiterPair{}
	if t.rpm > 0 {
		pair.rpmLimiter = rate.NewLimiter(rate.Limit(t.rpm)/60.0, t.rpm)
	}
	if t.rps > 0 {
		pair.rpsLimiter = rate.NewLimiter(rate.Limit(t.rps), t.rps)
	}
	t.limiters[key] = pair
	return pair
}

// Allow consumes one token for key and reports which limit, if any, was exceeded
func (t *Throttle) Allow(key string) (bool, string) {
	pair := t.getLimiters(key)

	if pair.rpmLimiter != nil && !pair.rpmLimiter.Allow() {
		return false, "RPM throttling limit exceeded"
	}
	if pair.rpsLimiter != nil && !pair.rpsLimiter.Allow() {
		return false, "RPS throttling limit exceeded"
	}
	return true, ""
}

// Middleware answers HTTP 429 once the caller's budget is spent
func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.Enabled() {
			c.Next()
			return
		}

		key := c.GetString(string(CredentialContextKey))
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		if ok, reason := t.Allow(key); !ok {
			t.logger.Warn("request throttled", zap.String("reason", reason), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": reason})
			return
		}

		c.Next()
	}
}
