package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"moneymarket/config"
	"moneymarket/core/events"
	"moneymarket/core/genesis"
	"moneymarket/core/pricing"
	"moneymarket/core/state"
	"moneymarket/crypto"
	"moneymarket/native/lending"
	"moneymarket/observability/logging"
	"moneymarket/observability/metrics"
	telemetry "moneymarket/observability/otel"
	"moneymarket/services/lending/eventstore"
	lendingserver "moneymarket/services/lending/server"
	"moneymarket/storage"
)

const serviceName = "lendingd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "lendingd.toml", "path to lendingd config (toml or yaml)")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		slog.Error("lendingd exited", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(serviceName, cfg.Environment, os.Getenv("LENDINGD_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, serviceName, cfg.Environment, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()
	st := state.NewManager(db)

	feed := pricing.NewFeed(pricing.Guard{
		MaxAgeSeconds:   cfg.Oracle.MaxAgeSeconds,
		MaxDeviationBps: cfg.Oracle.MaxDeviationBps,
	})

	engine := lending.NewEngine(crypto.Address{})
	engine.SetState(st)
	engine.SetOracle(feed)
	engine.SetPauses(cfg.Global.Pauses)
	engine.SetLogger(logger)
	engine.SetClock(func() uint64 { return uint64(time.Now().Unix()) })

	emitters := events.Fanout{metrics.NewEmitter()}
	var eventLog *eventstore.Store
	if cfg.EventStore.Driver != "" {
		eventLog, err = eventstore.Open(cfg.EventStore.Driver, cfg.EventStorePath())
		if err != nil {
			return err
		}
		defer eventLog.Close()
		eventLog.SetLogger(logger)
		logger.Info("event archive opened", "driver", cfg.EventStore.Driver, logging.MaskField("dsn", cfg.EventStorePath()))
		emitters = append(events.Fanout{eventLog}, emitters...)
	}
	engine.SetEmitter(emitters)

	if err := loadGenesis(cfg.GenesisFile, st, engine, feed, logger); err != nil {
		return err
	}

	opts := []lendingserver.Option{lendingserver.WithPriceFeed(feed)}
	if eventLog != nil {
		opts = append(opts, lendingserver.WithEventLog(eventLog))
	}
	api := lendingserver.New(engine, lendingserver.Config{
		APITokens:          cfg.Auth.APITokens,
		RequestsPerMinute:  cfg.RateLimit.RequestsPerMinute,
		Burst:              cfg.RateLimit.Burst,
		AccountQuotaPerMin: cfg.Global.Quotas.Lending.MaxRequestsPerMin,
		Logger:             logger,
	}, opts...)

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	if !cfg.TLS.Enabled() && !strings.EqualFold(cfg.Environment, "dev") && !isLoopback(listener.Addr()) {
		listener.Close()
		return errors.New("plaintext listeners are restricted to loopback outside the dev environment")
	}

	srv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening", "address", listener.Addr().String(), "tls", cfg.TLS.Enabled())
		if cfg.TLS.Enabled() {
			serveErr <- srv.ServeTLS(listener, cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serveErr <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", "error", err)
			return srv.Close()
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// loadGenesis seeds oracle prices from the genesis file on every start and
// applies its market only to an empty state.
func loadGenesis(path string, st *state.Manager, engine *lending.Engine, feed *pricing.Feed, logger *slog.Logger) error {
	if path == "" {
		logger.Warn("no genesis file configured; starting with the stored market")
		return nil
	}
	spec, err := genesis.LoadSpec(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	genesis.SeedPrices(spec, feed)
	err = genesis.Apply(spec, st, engine)
	switch {
	case errors.Is(err, genesis.ErrAlreadyApplied):
		engine.SetTreasury(spec.TreasuryAddress())
		logger.Info("genesis already applied", "reserves", len(spec.Reserves))
	case err != nil:
		return fmt.Errorf("apply genesis: %w", err)
	default:
		logger.Info("genesis applied", "reserves", len(spec.Reserves), "emode_categories", len(spec.EModeCategories))
	}
	return nil
}

func isLoopback(addr net.Addr) bool {
	tcpAddr, ok := addr.(*net.TCPAddr)
	return ok && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
}
