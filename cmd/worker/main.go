package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-marketplace-core/internal/config"
	"github.com/ariefcatur/go-marketplace-core/internal/events"
	"github.com/ariefcatur/go-marketplace-core/internal/inventory"
	"github.com/ariefcatur/go-marketplace-core/internal/jobs"
	kafkax "github.com/ariefcatur/go-marketplace-core/internal/kafka"
	"github.com/ariefcatur/go-marketplace-core/internal/logger"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"github.com/ariefcatur/go-marketplace-core/internal/notify"
	"github.com/ariefcatur/go-marketplace-core/internal/postgres"
	"github.com/ariefcatur/go-marketplace-core/internal/redisx"
	"github.com/ariefcatur/go-marketplace-core/internal/sellermode"
	"github.com/ariefcatur/go-marketplace-core/internal/settlement"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.Log, cfg.ServiceName+"-worker")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		lg.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tracer := otel.Tracer(cfg.ServiceName)

	// Producers: low stock & mode change (dua topic berbeda)
	lowStock := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicProductLowStock, 1024, lg)
	lowStock.Start()
	modeChanged := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicSellerModeChanged, 256, lg)
	modeChanged.Start()
	notifier := &notify.Kafka{
		LowStockProducer:   lowStock,
		ModeChangeProducer: modeChanged,
		Producer:           cfg.ServiceName + "-worker",
		Log:                lg,
	}

	// Services
	inv := &inventory.Service{
		Store:    &inventory.PGStore{DB: db},
		Notifier: notifier,
		Metrics:  m,
		Log:      lg,
	}
	engine := &settlement.Engine{
		Store:     &settlement.PGStore{DB: db},
		Metrics:   m,
		Log:       lg,
		Tracer:    tracer,
		Hold:      cfg.Settlement.Hold,
		BatchSize: cfg.Settlement.BatchSize,
	}
	evaluator, err := sellermode.NewRuleEvaluator(sellermode.MergeRules(map[sellermode.Mode]string{
		sellermode.Isolated:         cfg.Mode.RuleIsolated,
		sellermode.FinancialRisk:    cfg.Mode.RuleFinancialRisk,
		sellermode.StabilityLimited: cfg.Mode.RuleStabilityLimited,
		sellermode.QualityIssue:     cfg.Mode.RuleQualityIssue,
		sellermode.Watch:            cfg.Mode.RuleWatch,
	}))
	if err != nil {
		lg.Fatal("mode rules", zap.Error(err))
	}
	modeStore := &sellermode.PGStore{DB: db}
	recomputer := &sellermode.Recomputer{
		Source:      modeStore,
		Modes:       modeStore,
		Evaluator:   evaluator,
		Deactivator: inv,
		Cache:       &sellermode.CachedReader{Next: modeStore, Redis: rdb, TTL: cfg.Mode.CacheTTL, Metrics: m, Log: lg},
		Publisher:   notifier,
		Metrics:     m,
		Log:         lg,
		Window:      cfg.Jobs.SignalWindow,
	}

	sched := &jobs.Scheduler{
		Jobs: []jobs.Job{
			jobs.ReleaseExpired(inv, cfg.Jobs.ReleaseInterval),
			jobs.Settlement(engine, cfg.Jobs.SettlementInterval, lg),
			jobs.RecomputeModes(recomputer, cfg.Jobs.SignalInterval, lg),
		},
		Locker:  &redisx.Locker{Redis: rdb},
		Metrics: m,
		Log:     lg,
		Tracer:  tracer,
	}

	// Consumer
	carrier := &jobs.CarrierConsumer{Engine: engine, Redis: rdb, Log: lg}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Jobs.CarrierGroup, events.TopicShipmentStatus, cfg.Jobs.CarrierWorkers, lg)

	// metrics endpoint
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		lg.Info("carrier consumer started",
			zap.String("group", cfg.Jobs.CarrierGroup),
			zap.String("topic", events.TopicShipmentStatus),
			zap.Int("workers", cfg.Jobs.CarrierWorkers))
		return cons.Start(gctx, carrier.Handle)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx2)
	})

	if err := g.Wait(); err != nil {
		lg.Error("worker exit", zap.Error(err))
	}
	lg.Info("shutting down producers...")
	lowStock.Close()
	modeChanged.Close()
	lowStock.WaitClosed()
	modeChanged.WaitClosed()
}
