// Package main is the entry point for the sportsbook back-office server. It
// exposes operator endpoints protected by role checks and an IP allowlist.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/evetabi/sportsbook/internal/backoffice"
	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/events"
	"github.com/evetabi/sportsbook/internal/logger"
	"github.com/evetabi/sportsbook/internal/metrics"
	"github.com/evetabi/sportsbook/internal/repository"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// ── Config + logger ───────────────────────────────────────────────────────
	cfg := config.MustLoad()

	log, err := logger.New("sportsbook-backoffice", cfg.Server.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("starting sportsbook backoffice server", zap.String("port", cfg.Server.BackofficePort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────────────
	db, err := repository.Open(ctx, repository.Options{
		Driver:          cfg.DB.Driver,
		DSN:             cfg.DB.DSN,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()

	// ── Repositories ──────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	stores := service.Stores{
		DB:       db,
		Accounts: accountRepo,
		Holding:  repository.NewHoldingRepository(db),
		Bets:     repository.NewBetRepository(db),
	}

	// ── Metrics + events ──────────────────────────────────────────────────────
	m := metrics.New(prometheus.DefaultRegisterer)
	metricsSrv := metrics.StartMetricsServer(cfg.Metrics.BackofficePort, prometheus.DefaultGatherer, db.PingContext, log)

	// Settlements reach WebSocket clients through the API process, which
	// consumes this topic.
	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.TopicBetPlaced, cfg.Kafka.TopicBetSettled)
	defer publisher.Close()

	// ── Services ──────────────────────────────────────────────────────────────
	settleSvc := service.NewSettlementService(stores, service.NewKeyedMutex(), log)
	settleSvc.SetPublisher(publisher)
	settleSvc.SetMetrics(m)

	authSvc := service.NewAuthService(db, userRepo, accountRepo, cfg, log)

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:   authSvc,
		SettleSvc: settleSvc,
		UserRepo:  userRepo,
		Hub:       nil, // the back-office does not serve WS
		Cfg:       cfg,
		Log:       log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		log.Info("backoffice http server listening", zap.String("addr", srv.Addr))
		if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Error("backoffice server error", zap.Error(serr))
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.Error("backoffice shutdown error", zap.Error(err))
	}
	if err = metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown error", zap.Error(err))
	}

	log.Info("backoffice server stopped cleanly")
}
