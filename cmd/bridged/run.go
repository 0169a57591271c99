package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ClipFinance/bridge-coordinator/api"
	"github.com/ClipFinance/bridge-coordinator/chainmanager"
	"github.com/ClipFinance/bridge-coordinator/chains"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/config"
	"github.com/ClipFinance/bridge-coordinator/coordinator"
	"github.com/ClipFinance/bridge-coordinator/dbconfig"
	"github.com/ClipFinance/bridge-coordinator/fee"
	"github.com/ClipFinance/bridge-coordinator/metrics"
	"github.com/ClipFinance/bridge-coordinator/tokens"
	"github.com/ClipFinance/bridge-coordinator/tracker"
	"github.com/ClipFinance/bridge-coordinator/tracker/redisstore"
)

const (
	statusEventBuffer   = 64
	submitTimeoutMargin = 30 * time.Second
)

func newLogger(cfg *config.Configuration) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}
	logger.SetLevel(level)
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

func checkConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if _, err := cfg.TokenList(); err != nil {
		return err
	}
	chainConfigs, _ := cfg.ChainConfigs()
	logrus.WithFields(logrus.Fields{
		"chains": len(chainConfigs),
		"tokens": len(cfg.Tokens),
		"store":  cfg.Tracker.Store,
	}).Info("Configuration is valid")
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *dbconfig.DBConfig
	if cfg.Server.DatabaseURL != "" {
		if err := dbconfig.RunMigrations(cfg.Server.DatabaseURL); err != nil {
			return err
		}
		db, err = dbconfig.NewDBConfig(cfg.Server.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := cfg.Overlay(ctx, db); err != nil {
			return err
		}
		logger.WithField("chains", len(cfg.Chains)).Info("Loaded chains and tokens from the database")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	chainConfigs, err := cfg.ChainConfigs()
	if err != nil {
		return err
	}
	registry := chainmanager.NewChainRegistry(chains.NewChainFactory(), logger)
	defer registry.Close()
	for i := range chainConfigs {
		if err := registry.Add(ctx, &chainConfigs[i]); err != nil {
			return errors.Wrapf(err, "failed to add chain %d", chainConfigs[i].ChainID)
		}
	}
	gateway := chainmanager.NewGateway(registry, logger, m)

	tokenList, err := cfg.TokenList()
	if err != nil {
		return err
	}
	tokenRegistry, err := tokens.NewRegistry(tokenList...)
	if err != nil {
		return err
	}

	feeConfig, err := cfg.FeeConfig()
	if err != nil {
		return err
	}
	policy := fee.NewPolicy(gateway, feeConfig, logger, m)

	opts := []tracker.Option{
		tracker.WithTokens(tokenRegistry),
		tracker.WithConcurrency(cfg.Tracker.Concurrency),
		tracker.WithMetrics(m),
	}
	switch cfg.Tracker.Store {
	case config.StoreRedis:
		store := redisstore.New(cfg.Server.RedisAddr, "", logger)
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			return err
		}
		opts = append(opts, tracker.WithStore(store))
	case config.StorePostgres:
		opts = append(opts, tracker.WithStore(db.TransactionStore()))
	}
	tr := tracker.New(gateway, logger, opts...)
	if cfg.Tracker.Store != config.StoreNone {
		n, err := tr.Warm(ctx)
		if err != nil {
			return err
		}
		logger.WithField("transactions", n).Info("Tracker warmed from store")
	}

	coord := coordinator.New(gateway, policy, tr, logger, m)

	if cfg.Tracker.WatchStatus {
		events := make(chan types.StatusEvent, statusEventBuffer)
		if err := gateway.StartStatusPolling(ctx, events); err != nil {
			return err
		}
		defer gateway.StopStatusPolling()
		go coord.WatchStatus(ctx, events)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(coord, gateway, tokenRegistry, reg, logger, api.WithSubmitTimeout(submitTimeout(chainConfigs))).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	logger.WithField("addr", cfg.Server.Addr).Info("HTTP service started")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return errors.Wrap(err, "HTTP service failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP service shutdown")
	}
	logger.Info("HTTP service stopped")
	return nil
}

// submitTimeout bounds POST /transfers by the slowest chain's confirmation timeout plus room
// for the fee checks before the submission.
func submitTimeout(configs []types.ChainConfig) time.Duration {
	var longest time.Duration
	for i := range configs {
		if configs[i].ConfirmationTimeout > longest {
			longest = configs[i].ConfirmationTimeout
		}
	}
	if longest == 0 {
		return 0
	}
	return longest + submitTimeoutMargin
}
