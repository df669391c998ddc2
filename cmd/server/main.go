package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/erp-workflow/internal/config"
	"github.com/garyjia/erp-workflow/internal/container"
	httpapi "github.com/garyjia/erp-workflow/internal/interfaces/http"
	"github.com/garyjia/erp-workflow/internal/interfaces/websocket"
	"github.com/garyjia/erp-workflow/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ERP approval workflow service",
		zap.String("version", "1.0.0"),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Int("port", cfg.Server.Port))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	services := c.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Debug:          cfg.Server.Debug,
	}, httpapi.Services{
		Routes:   services.Routes,
		Catalog:  services.Catalog,
		Decision: services.Decision,
		Query:    services.Query,
		Exporter: c.Exporter(),
		Health:   c.HealthCheck,
	}, utils.NewKVLogger(logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	if cfg.Lark.ChatCommands {
		adapter := websocket.NewLarkAdapter(websocket.LarkAdapterConfig{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
		}, services.Decision, c.Repositories().User, c.Messenger(), logger)
		defer adapter.Stop()
		// Kept out of the group: the SDK client does not always return on cancel.
		go func() {
			if err := adapter.Start(gctx); err != nil {
				logger.Error("Lark chat command listener stopped", zap.Error(err))
			}
		}()
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		return nil
	})

	return g.Wait()
}
