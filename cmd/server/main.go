// Package main is the entry point for the sportsbook API server. It wires the
// ledger, odds provider, WebSocket hub and scheduler, then serves HTTP until
// SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/evetabi/sportsbook/internal/api"
	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/events"
	"github.com/evetabi/sportsbook/internal/logger"
	"github.com/evetabi/sportsbook/internal/metrics"
	"github.com/evetabi/sportsbook/internal/odds"
	"github.com/evetabi/sportsbook/internal/repository"
	"github.com/evetabi/sportsbook/internal/scheduler"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/evetabi/sportsbook/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	log, err := logger.New("sportsbook-api", cfg.Server.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("starting sportsbook api server",
		zap.String("port", cfg.Server.Port),
		zap.String("db_driver", cfg.DB.Driver),
	)

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Database (schema applied on open) ──────────────────────────────────
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
	log.Info("database ready")

	// ── 4. Repositories ───────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	stores := service.Stores{
		DB:       db,
		Accounts: accountRepo,
		Holding:  repository.NewHoldingRepository(db),
		Bets:     repository.NewBetRepository(db),
	}

	// ── 5. Metrics ────────────────────────────────────────────────────────────
	m := metrics.New(prometheus.DefaultRegisterer)
	metricsSrv := metrics.StartMetricsServer(cfg.Metrics.Port, prometheus.DefaultGatherer, db.PingContext, log)

	// ── 6. Odds provider (Redis when configured, in-process otherwise) ────────
	var cache odds.Cache = odds.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		rdb, rerr := odds.ConnectRedis(ctx, &cfg.Redis)
		if rerr != nil {
			log.Warn("redis unavailable, using in-process odds cache", zap.Error(rerr))
		} else {
			defer rdb.Close()
			cache = odds.NewRedisCache(rdb)
		}
	}
	provider := odds.NewProvider(odds.NewClient(&cfg.Odds), cache, &cfg.Odds, log)

	// ── 7. Events ─────────────────────────────────────────────────────────────
	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.TopicBetPlaced, cfg.Kafka.TopicBetSettled)
	defer publisher.Close()

	// ── 8. WebSocket hub ──────────────────────────────────────────────────────
	hub := ws.NewHub([]byte(cfg.JWT.AccessSecret), cfg.Server.AllowedOrigins, log)
	hub.SetMetrics(m)
	go hub.Run(ctx)

	// ── 9. Services ───────────────────────────────────────────────────────────
	locks := service.NewKeyedMutex()

	ledgerSvc := service.NewLedgerService(stores, locks, &cfg.Ledger, log)
	ledgerSvc.SetMatchupResolver(provider)
	ledgerSvc.SetPublisher(publisher)
	ledgerSvc.SetNotifier(hub)
	ledgerSvc.SetMetrics(m)

	settleSvc := service.NewSettlementService(stores, locks, log)
	if err = settleSvc.SeedHouse(ctx, cfg.Ledger.HouseSeed); err != nil {
		log.Fatal("house seed failed", zap.Error(err))
	}

	authSvc := service.NewAuthService(db, userRepo, accountRepo, cfg, log)

	// ── 10. Settlement relay from the back-office process ─────────────────────
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := events.NewSettledConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicBetSettled,
			cfg.Kafka.ConsumerGroup, hub.RelayBetSettled, log)
		defer consumer.Close()
		go func() {
			if cerr := consumer.Run(ctx); cerr != nil {
				log.Error("settlement relay stopped", zap.Error(cerr))
			}
		}()
	}

	// ── 11. Scheduler ─────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(ctx, provider, hub, &cfg.Odds, log)
	if err = sched.RegisterAll(); err != nil {
		log.Fatal("scheduler registration failed", zap.Error(err))
	}
	sched.Start()
	go sched.RunNow()

	// ── 12. HTTP router ───────────────────────────────────────────────────────
	router := api.SetupRouter(ctx, api.RouterDeps{
		AuthSvc:   authSvc,
		LedgerSvc: ledgerSvc,
		Games:     provider,
		Hub:       hub,
		Cfg:       cfg,
		Log:       log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(serr))
			stop() // trigger graceful shutdown
		}
	}()

	// ── 13. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
	if err = metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown error", zap.Error(err))
	}
	sched.Stop()

	log.Info("server stopped cleanly")
}
