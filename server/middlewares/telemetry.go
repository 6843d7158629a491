package middlewares

import (
	"time"

	gin "github.com/gin-gonic/gin"
	config "github.com/inference-gateway/menu-agents/server/config"
	otel "github.com/inference-gateway/menu-agents/server/otel"
	zap "go.uber.org/zap"
)

// AgentRoutePath is the gin route of the JSON-RPC entry point
const AgentRoutePath = "/:agentType/:agentId"

type Telemetry interface {
	Middleware() gin.HandlerFunc
}

type TelemetryImpl struct {
	cfg       config.Config
	telemetry otel.OpenTelemetry
	logger    *zap.Logger
}

func NewTelemetryMiddleware(cfg config.Config, telemetry otel.OpenTelemetry, logger *zap.Logger) (Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelemetryImpl{
		cfg:       cfg,
		telemetry: telemetry,
		logger:    logger,
	}, nil
}

// Middleware records request count, status and duration for agent calls only
func (t *TelemetryImpl) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.cfg.TelemetryConfig.Enable || t.telemetry == nil || c.FullPath() != AgentRoutePath {
			c.Next()
			return
		}

		startTime := time.Now()

		attrs := otel.TelemetryAttributes{
			AgentType: c.Param("agentType"),
			AgentID:   c.Param("agentId"),
		}

		t.telemetry.RecordRequestCount(c.Request.Context(), attrs, c.Request.Method)

		c.Next()

		durationMs := float64(time.Since(startTime).Nanoseconds()) / float64(time.Millisecond)
		statusCode := c.Writer.Status()

		t.telemetry.RecordResponseStatus(c.Request.Context(), attrs, c.Request.Method, c.Request.URL.Path, statusCode)
		t.telemetry.RecordRequestDuration(c.Request.Context(), attrs, c.Request.Method, c.Request.URL.Path, durationMs)

		t.logger.Debug("request telemetry recorded",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status_code", statusCode),
			zap.Float64("duration_ms", durationMs),
			zap.String("agent_type", attrs.AgentType),
			zap.String("agent_id", attrs.AgentID),
		)
	}
}
