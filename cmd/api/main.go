package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-marketplace-core/internal/config"
	"github.com/ariefcatur/go-marketplace-core/internal/events"
	"github.com/ariefcatur/go-marketplace-core/internal/httpx"
	"github.com/ariefcatur/go-marketplace-core/internal/inventory"
	kafkax "github.com/ariefcatur/go-marketplace-core/internal/kafka"
	"github.com/ariefcatur/go-marketplace-core/internal/ledger"
	"github.com/ariefcatur/go-marketplace-core/internal/logger"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"github.com/ariefcatur/go-marketplace-core/internal/notify"
	"github.com/ariefcatur/go-marketplace-core/internal/payout"
	"github.com/ariefcatur/go-marketplace-core/internal/postgres"
	"github.com/ariefcatur/go-marketplace-core/internal/redisx"
	"github.com/ariefcatur/go-marketplace-core/internal/sellermode"
	"github.com/ariefcatur/go-marketplace-core/internal/settlement"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
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
	lg, err := logger.New(cfg.Log, cfg.ServiceName+"-api")
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
	if err := postgres.Migrate(ctx, db); err != nil {
		lg.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Kafka producer: notifikasi low stock
	lowStock := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicProductLowStock, 1024, lg)
	lowStock.Start()

	// Services
	modeStore := &sellermode.PGStore{DB: db}
	maxOrderValue, err := decimal.NewFromString(cfg.Mode.FinancialRiskMaxValue)
	if err != nil {
		lg.Fatal("FINANCIAL_RISK_MAX_ORDER_VALUE", zap.Error(err))
	}
	gate := &sellermode.Gate{
		Modes:         &sellermode.CachedReader{Next: modeStore, Redis: rdb, TTL: cfg.Mode.CacheTTL, Metrics: m, Log: lg},
		Orders:        modeStore,
		DailyOrderCap: cfg.Mode.StabilityDailyCap,
		MaxOrderValue: maxOrderValue,
		Metrics:       m,
	}
	inv := &inventory.Service{
		Store:     &inventory.PGStore{DB: db},
		Admission: gate,
		Notifier: &notify.Kafka{
			LowStockProducer: lowStock,
			Producer:         cfg.ServiceName + "-api",
			Log:              lg,
		},
		Metrics:           m,
		Log:               lg,
		ReservationTTL:    cfg.Reservation.TTL,
		CartTTL:           cfg.Reservation.CartTTL,
		LowStockThreshold: cfg.Reservation.LowStockThreshold,
	}
	engine := &settlement.Engine{
		Store:     &settlement.PGStore{DB: db},
		Metrics:   m,
		Log:       lg,
		Tracer:    otel.Tracer(cfg.ServiceName),
		Hold:      cfg.Settlement.Hold,
		BatchSize: cfg.Settlement.BatchSize,
	}
	payouts := &payout.Service{Store: &payout.PGStore{DB: db}, Metrics: m, Log: lg}

	// Router & handlers
	router := httpx.NewRouter(lg, reg)
	(&httpx.ReservationsHandler{Service: inv, Log: lg}).Register(router)
	(&httpx.PayoutsHandler{Service: payouts, Log: lg}).Register(router)
	(&httpx.SettlementHandler{Carrier: engine, Ledger: &ledger.Repo{DB: db}, Hold: engine, Log: lg}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		lg.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("listen", zap.Error(err))
			stop()
		}
	}()

	// wait signal
	<-ctx.Done()
	lg.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	lowStock.Close()      // tutup inbox -> flush & close writer
	lowStock.WaitClosed() // drain
}
