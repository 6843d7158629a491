package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/inference-gateway/menu-agents/server/middlewares"
	"github.com/inference-gateway/menu-agents/types"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestThrottle_Allow(t *testing.T) {
	tests := []struct {
		name          string
		rps           int
		rpm           int
		calls         int
		expectAllowed int
		expectReason  string
	}{
		{name: "disabled", calls: 10, expectAllowed: 10},
		{name: "rps burst", rps: 2, calls: 5, expectAllowed: 2, expectReason: "RPS throttling limit exceeded"},
		{name: "rpm burst", rpm: 3, calls: 5, expectAllowed: 3, expectReason: "RPM throttling limit exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			throttle := middlewares.NewThrottle(zap.NewNop(), tt.rps, tt.rpm)

			allowed := 0
			lastReason := ""
			for i := 0; i < tt.calls; i++ {
				ok, reason := throttle.Allow("key")
				if ok {
					allowed++
				} else {
					lastReason = reason
				}
			}

			assert.Equal(t, tt.expectAllowed, allowed)
			assert.Equal(t, tt.expectReason, lastReason)
		})
	}
}

func TestThrottle_SeparateBucketsPerCredential(t *testing.T) {
	throttle := middlewares.NewThrottle(zap.NewNop(), 1, 0)

	ok, _ := throttle.Allow("a")
	assert.True(t, ok)
	ok, _ = throttle.Allow("a")
	assert.False(t, ok)
	ok, _ = throttle.Allow("b")
	assert.True(t, ok)
}

func TestThrottle_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	auth := middlewares.NewAuthenticator(zap.NewNop(), []string{"k1", "k2"}, nil)
	throttle := middlewares.NewThrottle(zap.NewNop(), 1, 0)

	router := gin.New()
	router.Use(auth.Middleware(), throttle.Middleware())
	router.POST("/:agentType/:agentId", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/menu/store-1", nil)
		req.Header.Set(types.APIKeyHeader, key)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("k1"))
	assert.Equal(t, http.StatusTooManyRequests, send("k1"))
	assert.Equal(t, http.StatusOK, send("k2"))
}
