package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	envconfig "github.com/sethvargo/go-envconfig"
	zap "go.uber.org/zap"

	menu "github.com/inference-gateway/menu-agents/agents/menu"
	promotions "github.com/inference-gateway/menu-agents/agents/promotions"
	whatsapp "github.com/inference-gateway/menu-agents/agents/whatsapp"
	server "github.com/inference-gateway/menu-agents/server"
	config "github.com/inference-gateway/menu-agents/server/config"
	otel "github.com/inference-gateway/menu-agents/server/otel"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

// deployment lists the stores served by this process
type deployment struct {
	StoreIDs []string `env:"STORE_IDS,default=store-1"`
}

// Menu agents gateway
//
// Serves the menu, promotions and whatsapp agents of every store listed in
// STORE_IDS at POST /{agentType}/{storeId}. See server/config for the
// remaining environment variables.
func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx, &config.Config{GatewayVersion: version})
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var deploy deployment
	if err := envconfig.Process(ctx, &deploy); err != nil {
		log.Fatalf("failed to load deployment configuration: %v", err)
	}

	var logger *zap.Logger
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("gateway starting",
		zap.String("gateway_name", cfg.GatewayName),
		zap.String("version", cfg.GatewayVersion),
		zap.String("port", cfg.ServerConfig.Port),
		zap.String("storage_provider", cfg.StorageConfig.Provider),
		zap.String("files_provider", cfg.FilesConfig.Provider),
		zap.Strings("store_ids", deploy.StoreIDs),
		zap.Bool("debug", cfg.Debug))

	repo, err := server.CreateRepository(ctx, cfg.StorageConfig, logger)
	if err != nil {
		logger.Fatal("failed to create repository", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close repository", zap.Error(err))
		}
	}()

	files, err := server.CreateFileStore(ctx, cfg.FilesConfig, logger)
	if err != nil {
		logger.Fatal("failed to create file store", zap.Error(err))
	}

	notifier := server.NewWebhookNotifier(logger, cfg.NotifyConfig.WebhookURL, cfg.NotifyConfig.Timeout)

	builder := server.NewA2AServerBuilder(*cfg, logger).WithFileStore(files)

	if cfg.TelemetryConfig.Enable {
		telemetry, err := otel.NewOpenTelemetry(cfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize telemetry", zap.Error(err))
		}
		builder.WithTelemetry(telemetry)
	}

	menuAgent := menu.New(logger, repo, files, cfg.FilesConfig.MaxSize)
	promotionsAgent := promotions.New(logger, repo, notifier)
	whatsappAgent := whatsapp.New(logger, repo)

	for _, storeID := range deploy.StoreIDs {
		for _, build := range []func(string) (*server.AgentImpl, error){
			menuAgent.Build,
			promotionsAgent.Build,
			whatsappAgent.Build,
		} {
			agent, err := build(storeID)
			if err != nil {
				logger.Fatal("failed to build agent", zap.String("store_id", storeID), zap.Error(err))
			}
			builder.WithAgent(agent)
		}
	}

	gateway, err := builder.Build()
	if err != nil {
		logger.Fatal("failed to create gateway", zap.Error(err))
	}

	go func() {
		if err := gateway.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("gateway failed to start", zap.Error(err))
		}
	}()

	logger.Info("gateway running", zap.String("port", cfg.ServerConfig.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := gateway.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	} else {
		logger.Info("gateway stopped")
	}
}
