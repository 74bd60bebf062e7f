package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-sop/internal/api"
	"github.com/miradorstack/mirador-sop/internal/metrics"
	"github.com/miradorstack/mirador-sop/internal/patterns"
	"github.com/miradorstack/mirador-sop/internal/repo"
	"github.com/miradorstack/mirador-sop/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC categorizer and the HTTP health/metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		logger.Info("starting mirador-sop", slog.String("address", cfg.Server.Address), slog.String("version", version))

		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return err
		}

		categorizer, err := buildCategorizer(cfg, logger)
		if err != nil {
			return err
		}
		var publisher patterns.Publisher
		if cfg.Weaviate.Endpoint != "" {
			publisher = repo.NewWeaviateRepo(cfg.Weaviate, logger)
		}
		service := services.NewCategorizerService(logger, categorizer, newValidator(cfg, logger), publisher, cfg.Server.MaxConcurrentRuns)

		server, err := api.NewServer(cfg.Server, api.NewGRPCHandler(service, logger), logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var httpServer *http.Server
		if cfg.Server.HTTPAddress != "" {
			httpServer = &http.Server{
				Addr:         cfg.Server.HTTPAddress,
				Handler:      api.NewHTTPHandler(service, prometheus.DefaultGatherer, logger),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: cfg.Run.Timeout + 30*time.Second,
			}
			go func() {
				logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server exited", slog.Any("error", err))
					stop()
				}
			}()
		}

		grpcErr := server.Run(ctx)
		if grpcErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", grpcErr))
		}
		logger.Info("shutting down")

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("http server shutdown", slog.Any("error", err))
			}
		}

		logger.Info("mirador-sop stopped")
		return grpcErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
