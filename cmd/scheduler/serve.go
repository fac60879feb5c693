package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/vetclinic-scheduler/internal/adapters"
	"github.com/example/vetclinic-scheduler/internal/application"
	"github.com/example/vetclinic-scheduler/internal/config"
	"github.com/example/vetclinic-scheduler/internal/events"
	httptransport "github.com/example/vetclinic-scheduler/internal/http"
	"github.com/example/vetclinic-scheduler/internal/scheduler"
	"github.com/example/vetclinic-scheduler/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply pending migrations and start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withStore(ctx, cfg, logger, func(st store) error {
				return serve(ctx, cfg, logger, st)
			})
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, st store) error {
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    "vetclinic-scheduler",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}

	wired, err := newApp(cfg, logger, st)
	if err != nil {
		return err
	}
	defer wired.close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           wired.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	logger.Info("scheduler API listening",
		"addr", server.Addr,
		"storage", cfg.StorageDriver,
		"timezone", cfg.Location.String(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	logger.Info("scheduler API stopped")
	return nil
}

// app is the wired HTTP surface together with the clients it owns.
type app struct {
	handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
}

func newApp(cfg config.Config, logger *slog.Logger, st store) (*app, error) {
	a := &app{logger: logger}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	appointmentRepo := adapters.NewAppointmentRepository(st)
	directory := adapters.NewDirectory(st)

	availability := application.NewAvailabilityServiceWithOptions(appointmentRepo, directory, time.Now, application.AvailabilityServiceOptions{
		Location: location,
		MaxDays:  cfg.MaxAvailabilityDays,
		CacheTTL: cfg.AvailabilityCacheTTL,
		Logger:   logger,
	})

	checks := map[string]httptransport.ReadyCheck{
		"database": st.Ping,
	}

	var publisher application.EventPublisher = events.NopPublisher{}
	if brokers := events.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.Config{Brokers: brokers}, logger)
		publisher = kafkaPublisher
		a.closers = append(a.closers, kafkaPublisher.Close)
		checks["kafka"] = events.ReadyCheck(brokers)
	}

	appointments := application.NewAppointmentServiceWithOptions(appointmentRepo, directory, uuid.NewString, time.Now, application.AppointmentServiceOptions{
		Policy:      scheduler.ConflictPolicy{Lookback: cfg.ConflictLookback},
		MaxAttempts: cfg.NextAvailableAttempts,
		Publisher:   publisher,
		Invalidator: availability,
		Logger:      logger,
	})

	verifier, err := httptransport.NewJWTVerifier(httptransport.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	var counter httptransport.WindowCounter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		counter = httptransport.NewRedisWindowCounter(client, "")
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	} else {
		logger.Warn("rate limiting disabled: no redis url configured")
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Appointments: httptransport.NewAppointmentHandler(appointments, availability, location, logger),
		Health:       httptransport.NewHealthHandler(checks, 2*time.Second, logger),
		Auth:         httptransport.RequireBearer(verifier, logger),
		API: []func(http.Handler) http.Handler{
			httptransport.RateLimit(counter, httptransport.RateLimitConfig{
				Limit:    cfg.RateLimit,
				Window:   cfg.RateLimitWindow,
				FailOpen: cfg.RateLimitFailOpen,
				Logger:   logger,
			}),
		},
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recover(logger),
		},
	})

	a.handler = otelhttp.NewHandler(router, "scheduler",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return a, nil
}
