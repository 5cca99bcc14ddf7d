package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicops/clinic-scheduling/internal/api"
	"github.com/clinicops/clinic-scheduling/internal/booking"
	"github.com/clinicops/clinic-scheduling/internal/config"
	"github.com/clinicops/clinic-scheduling/internal/db"
	"github.com/clinicops/clinic-scheduling/internal/notify"
	"github.com/clinicops/clinic-scheduling/internal/observability/metrics"
	redisclient "github.com/clinicops/clinic-scheduling/internal/redis"
	"github.com/clinicops/clinic-scheduling/internal/schedule"
)

const version = "1.2.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	schedRepo := schedule.NewPgRepository(pgPool)
	compiler := schedule.NewCompiler(schedRepo, cfg.DefaultSlotMinutes)
	bookingRepo := booking.NewPgRepository(pgPool, cfg.BookingTxTimeout)
	dispatcher := notify.NewRedisDispatcher(rdb, logger)
	bookingMetrics := metrics.NewBookingMetrics(nil)

	svc := booking.NewService(bookingRepo, compiler, dispatcher, bookingMetrics, logger, cfg.NotifyTimeout)

	router := api.NewRouter(api.RouterConfig{
		Booking:   svc,
		Schedules: schedRepo,
		PgPool:    pgPool,
		Redis:     rdb,
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
