package server

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sync"

	gin "github.com/gin-gonic/gin"
	config "github.com/inference-gateway/menu-agents/server/config"
	middlewares "github.com/inference-gateway/menu-agents/server/middlewares"
	otel "github.com/inference-gateway/menu-agents/server/otel"
	types "github.com/inference-gateway/menu-agents/types"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	zap "go.uber.org/zap"
)

// A2AServer serves every mounted agent at POST /{agentType}/{agentId}
type A2AServer interface {
	// Start starts the server on the configured port and blocks until it stops
	Start(ctx context.Context) error

	// Stop gracefully stops the server
	Stop(ctx context.Context) error

	// Router returns the router agents are mounted on
	Router() Router

	// Handler returns the HTTP handler, for embedding or tests
	Handler() http.Handler
}

// AgentListing is one entry of GET /agents
type AgentListing struct {
	Address types.AgentAddress        `json:"address"`
	Card    types.AgentCapabilityCard `json:"card"`
}

// requestOverheadBytes covers the envelope around a base64 encoded upload
const requestOverheadBytes = 1 << 20

type A2AServerImpl struct {
	cfg            *config.Config
	logger         *zap.Logger
	router         Router
	responseSender ResponseSender
	otel           otel.OpenTelemetry
	files          FileStore

	securitySchemes []types.SecurityScheme

	engineOnce sync.Once
	engine     *gin.Engine

	// Server state
	httpServer    *http.Server
	metricsServer *http.Server
}

var _ A2AServer = (*A2AServerImpl)(nil)

// NewA2AServer creates a server over router. telemetry and files may be nil.
func NewA2AServer(cfg *config.Config, logger *zap.Logger, telemetry otel.OpenTelemetry, router Router, files FileStore) *A2AServerImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	if router == nil {
		router = NewDefaultRouter(logger)
	}

	return &A2AServerImpl{
		cfg:            cfg,
		logger:         logger,
		router:         router,
		responseSender: NewDefaultResponseSender(logger),
		otel:           telemetry,
		files:          files,
	}
}

// Router returns the router agents are mounted on
func (s *A2AServerImpl) Router() Router {
	return s.router
}

// Handler returns the gin engine, building it on first use
func (s *A2AServerImpl) Handler() http.Handler {
	s.engineOnce.Do(func() {
		s.engine = s.setupRouter(s.cfg)
	})
	return s.engine
}

// setupRouter configures the HTTP router with the agent endpoints
func (s *A2AServerImpl) setupRouter(cfg *config.Config) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
		if cfg.Debug {
			gin.SetMode(gin.DebugMode)
		}
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.LoggingMiddleware(s.logger, cfg.ServerConfig.DisableHealthcheckLog))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": types.HealthStatusHealthy})
	})

	authenticator, authErr := middlewares.NewAuthenticatorMiddleware(s.logger, *cfg)
	if authErr == nil {
		s.securitySchemes = authenticator.SecuritySchemes()
	}

	r.GET("/agents", s.handleListAgents)

	if s.files != nil {
		r.GET(FilesRoutePrefix+"/:key/:filename", s.handleFileDownload)
	}

	handlers := make([]gin.HandlerFunc, 0, 4)

	if cfg.TelemetryConfig.Enable && s.otel != nil {
		telemetryMw, err := middlewares.NewTelemetryMiddleware(*cfg, s.otel, s.logger)
		if err != nil {
			s.logger.Error("failed to create telemetry middleware", zap.Error(err))
		} else {
			handlers = append(handlers, telemetryMw.Middleware())
		}
	}

	if authErr != nil {
		s.logger.Error("failed to create authenticator, rejecting all agent calls", zap.Error(authErr))
		handlers = append(handlers, func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication unavailable"})
		})
	} else {
		if _, noop := authenticator.(*middlewares.AuthenticatorNoop); noop {
			s.logger.Warn("authentication is disabled, agent calls are accepted without a credential")
		}
		handlers = append(handlers, authenticator.Middleware())
	}

	throttle := middlewares.NewThrottle(s.logger, cfg.ThrottleConfig.RPS, cfg.ThrottleConfig.RPM)
	if throttle.Enabled() {
		handlers = append(handlers, throttle.Middleware())
	}

	handlers = append(handlers, s.handleRPC)
	r.POST(middlewares.AgentRoutePath, handlers...)

	return r
}

// handleRPC decodes the envelope, routes it and writes the response
func (s *A2AServerImpl) handleRPC(c *gin.Context) {
	agentType := c.Param("agentType")
	agentID := c.Param("agentId")

	if s.cfg.FilesConfig.MaxSize > 0 {
		limit := s.cfg.FilesConfig.MaxSize*4/3 + requestOverheadBytes
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	var req types.JSONRPCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Warn("request body too large", zap.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})
			return
		}
		s.logger.Error("failed to parse json request", zap.Error(err))
		s.responseSender.SendError(c, nil, int(types.ErrParseError), "parse error")
		return
	}

	if err := req.Validate(); err != nil {
		s.logger.Error("invalid request", zap.Error(err), zap.String("id", req.ID))
		s.responseSender.SendError(c, req.ID, int(types.ErrInvalidRequest), fmt.Sprintf("invalid request: %v", err))
		return
	}

	resp := s.router.Route(c.Request.Context(), agentType, agentID, &req)

	if s.cfg.TelemetryConfig.Enable && s.otel != nil {
		errorCode := 0
		if resp.Error != nil {
			errorCode = resp.Error.Code
		}
		s.otel.RecordMethodCall(c.Request.Context(), otel.TelemetryAttributes{AgentType: agentType, AgentID: agentID}, req.Method, errorCode)
	}

	s.responseSender.SendResponse(c, resp)
}

// handleListAgents returns every mounted agent with its card
func (s *A2AServerImpl) handleListAgents(c *gin.Context) {
	agents := s.router.Agents()
	listing := make([]AgentListing, 0, len(agents))
	for _, agent := range agents {
		listing = append(listing, AgentListing{
			Address: agent.Address(),
			Card:    agent.Card(),
		})
	}
	body := gin.H{"agents": listing}
	if len(s.securitySchemes) > 0 {
		body["securitySchemes"] = s.securitySchemes
	}
	c.JSON(http.StatusOK, body)
}

// handleFileDownload streams a stored upload
func (s *A2AServerImpl) handleFileDownload(c *gin.Context) {
	key := c.Param("key")
	filename := c.Param("filename")

	reader, err := s.files.Retrieve(c.Request.Context(), key, filename)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "file not found"})
			return
		}
		s.logger.Error("failed to retrieve file", zap.String("key", key), zap.String("filename", filename), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	defer func() {
		_ = reader.Close()
	}()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}

// Start starts the server
func (s *A2AServerImpl) Start(ctx context.Context) error {
	agents := s.router.Agents()
	if len(agents) == 0 {
		return fmt.Errorf("at least one agent must be mounted before starting the server")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.ServerConfig.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ServerConfig.ReadTimeout,
		WriteTimeout: s.cfg.ServerConfig.WriteTimeout,
		IdleTimeout:  s.cfg.ServerConfig.IdleTimeout,
	}

	addresses := make([]string, len(agents))
	for i, agent := range agents {
		addresses[i] = agent.Address().String()
	}

	s.logger.Info("starting gateway",
		zap.String("port", s.cfg.ServerConfig.Port),
		zap.String("gateway_name", s.cfg.GatewayName),
		zap.String("version", s.cfg.GatewayVersion),
		zap.Strings("agents", addresses))

	if s.cfg.TelemetryConfig.Enable && s.otel != nil {
		metricsRouter := gin.New()
		metricsRouter.Use(gin.Recovery())
		metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

		metricsAddr := s.cfg.TelemetryConfig.MetricsConfig.Host + ":" + s.cfg.TelemetryConfig.MetricsConfig.Port
		s.metricsServer = &http.Server{
			Addr:         metricsAddr,
			Handler:      metricsRouter,
			ReadTimeout:  s.cfg.TelemetryConfig.MetricsConfig.ReadTimeout,
			WriteTimeout: s.cfg.TelemetryConfig.MetricsConfig.WriteTimeout,
			IdleTimeout:  s.cfg.TelemetryConfig.MetricsConfig.IdleTimeout,
		}

		go func(metricsServer *http.Server) {
			s.logger.Info("starting metrics server", zap.String("port", s.cfg.TelemetryConfig.MetricsConfig.Port))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics server failed", zap.Error(err))
			}
		}(s.metricsServer)
	}

	if s.cfg.ServerConfig.TLSConfig.Enable {
		return s.httpServer.ListenAndServeTLS(s.cfg.ServerConfig.TLSConfig.CertPath, s.cfg.ServerConfig.TLSConfig.KeyPath)
	}

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *A2AServerImpl) Stop(ctx context.Context) error {
	s.logger.Info("stopping gateway")

	var err error

	if s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("error stopping HTTP server", zap.Error(shutdownErr))
			err = shutdownErr
		}
	}

	if s.metricsServer != nil {
		if shutdownErr := s.metricsServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("error stopping metrics server", zap.Error(shutdownErr))
			if err == nil {
				err = shutdownErr
			}
		}
	}

	if s.otel != nil {
		if shutdownErr := s.otel.ShutDown(ctx); shutdownErr != nil {
			s.logger.Error("error shutting down telemetry", zap.Error(shutdownErr))
			if err == nil {
				err = shutdownErr
			}
		}
	}

	if s.files != nil {
		if closeErr := s.files.Close(); closeErr != nil {
			s.logger.Error("error closing file store", zap.Error(closeErr))
			if err == nil {
				err = closeErr
			}
		}
	}

	return err
}
