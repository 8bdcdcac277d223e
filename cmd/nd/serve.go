package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/config"
	"github.com/alfredjeanlab/notifyd/internal/delivery"
	"github.com/alfredjeanlab/notifyd/internal/dispatch"
	"github.com/alfredjeanlab/notifyd/internal/events"
	"github.com/alfredjeanlab/notifyd/internal/metrics"
	"github.com/alfredjeanlab/notifyd/internal/presence"
	"github.com/alfredjeanlab/notifyd/internal/retention"
	"github.com/alfredjeanlab/notifyd/internal/retry"
	"github.com/alfredjeanlab/notifyd/internal/server"
	"github.com/alfredjeanlab/notifyd/internal/store"
	"github.com/alfredjeanlab/notifyd/internal/store/memory"
	"github.com/alfredjeanlab/notifyd/internal/store/postgres"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the notifyd server",
	GroupID: "system",
	// No HTTP client is needed to run the server itself.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		level, err := cfg.SlogLevel()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return runServer(cfg, logger)
	},
}

func runServer(cfg *config.Config, logger *slog.Logger) error {
	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
	}()

	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	registry := presence.New()
	dispatcher := dispatch.New(registry, dispatch.Options{
		SendTimeout: cfg.SendTimeout,
		Concurrency: cfg.FanoutConcurrency,
		Logger:      logger,
	})

	maxRetries := cfg.MaxRetries
	orch := delivery.New(st, dispatcher, delivery.Options{
		Events:     publisher,
		Metrics:    m,
		Collars:    collarDirectory(cfg.Collars),
		Logger:     logger,
		MaxRetries: &maxRetries,
	})

	var archive retention.Archive
	if cfg.ArchiveS3Bucket != "" {
		a, err := retention.NewS3Archive(context.Background(),
			cfg.ArchiveS3Bucket, cfg.ArchiveS3KeyPrefix, cfg.ArchiveS3Region, cfg.ArchiveS3Endpoint)
		if err != nil {
			return fmt.Errorf("creating S3 archive: %w", err)
		}
		archive = a
		logger.Info("retention archive enabled", "bucket", cfg.ArchiveS3Bucket, "prefix", cfg.ArchiveS3KeyPrefix)
	}

	job := retention.New(st, retention.Options{
		Schedule: cfg.CleanupSchedule,
		Days:     cfg.RetentionDays,
		Archive:  archive,
		Events:   publisher,
		Metrics:  m,
		Logger:   logger,
	})
	if err := job.Start(); err != nil {
		return fmt.Errorf("starting retention job: %w", err)
	}
	defer job.Stop()

	sweeper := retry.New(st, orch, retry.Options{
		Schedule:       cfg.RetrySchedule,
		PendingTimeout: cfg.PendingTimeout,
		Logger:         logger,
	})
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("starting retry sweeper: %w", err)
	}
	defer sweeper.Stop()

	notifyServer := server.NewNotifyServer(orch, registry, server.Options{
		Retention:   job,
		Metrics:     m,
		Gatherer:    reg,
		Logger:      logger,
		ConnBuffer:  cfg.ConnBuffer,
		CORSOrigins: cfg.CORSOrigins,
	})

	// SSE handlers block until their request context ends; canceling
	// baseCtx lets Shutdown finish instead of waiting on open streams.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           notifyServer.NewHTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.HTTPAddr, err)
	}
	go func() {
		logger.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "err", err)
		}
	}()

	grpcServer, healthServer := server.NewGRPCServer(logger)
	if cfg.GRPCAddr != "" {
		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			cancelBase()
			_ = httpServer.Close()
			return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr, err)
		}
		go func() {
			logger.Info("gRPC health server listening", "addr", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()
	}

	intakeCtx, cancelIntake := context.WithCancel(context.Background())
	intakeDone := make(chan struct{})
	if cfg.NATSURL != "" {
		sub, err := events.NewNATSSubscriber(cfg.NATSURL, nats.Name("notifyd-intake"))
		if err != nil {
			logger.Error("failed to create alert subscriber", "err", err)
			close(intakeDone)
		} else {
			intake := server.NewAlertIntake(sub, cfg.AlertSubject, orch, logger)
			go func() {
				defer close(intakeDone)
				if err := intake.Run(intakeCtx); err != nil {
					logger.Error("alert intake error", "err", err)
				}
				if n := sub.Dropped(); n > 0 {
					logger.Warn("alert intake dropped alerts on a full buffer", "dropped", n)
				}
				sub.Close()
			}()
			logger.Info("alert intake started", "subject", cfg.AlertSubject)
		}
	} else {
		close(intakeDone)
	}

	logger.Info("notifyd started",
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
		"collars", len(cfg.Collars),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	healthServer.Shutdown()

	cancelIntake()
	<-intakeDone
	logger.Info("alert intake stopped")

	sweeper.Stop()
	job.Stop()

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	logger.Info("HTTP server stopped")

	logger.Info("shutdown complete")
	return nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("NOTIFY_DATABASE_URL not set, notifications are kept in memory")
		return memory.New(), nil
	}
	st, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres store: %w", err)
	}
	return st, nil
}

func openPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		logger.Info("events disabled (NOTIFY_NATS_URL not set)")
		return &events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL, nats.Name("notifyd"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	logger.Info("events enabled", "nats_url", cfg.NATSURL)
	return pub, nil
}

// collarDirectory maps configured collars to the pets they are worn by.
func collarDirectory(collars []config.Collar) *delivery.StaticDirectory {
	pets := make(map[string]delivery.Pet, len(collars))
	for _, c := range collars {
		pets[c.ID] = delivery.Pet{PetID: c.PetID, PetName: c.PetName, OwnerID: c.OwnerID}
	}
	return delivery.NewStaticDirectory(pets)
}
