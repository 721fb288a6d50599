// Command leadflow runs the cross-handler handoff service: it scores
// nothing itself, it only decides whether a conversation moves between
// handlers, records the decision, and learns from outcome feedback.
//
// Usage:
//
//	leadflow -config config.yaml
//	leadflow -version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/leadflow/config"
	"github.com/BaSui01/leadflow/engine"
	"github.com/BaSui01/leadflow/engine/history"
	"github.com/BaSui01/leadflow/engine/learner"
	"github.com/BaSui01/leadflow/engine/lock"
	"github.com/BaSui01/leadflow/engine/ratelimit"
	"github.com/BaSui01/leadflow/internal/cache"
	"github.com/BaSui01/leadflow/internal/metrics"
	"github.com/BaSui01/leadflow/internal/server"
)

var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "path to config.yaml")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("leadflow", version)
		return
	}

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger error:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	collector := metrics.NewCollector("leadflow")

	cacheManager, err := cache.NewManager(cache.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { _ = cacheManager.Close() }()

	store, err := history.NewGormStore(history.GormStoreOptions{
		Driver:        cfg.Database.Driver,
		DSN:           cfg.Database.DSN,
		OutcomeWindow: cfg.Handoff.OutcomeWindow,
	}, logger)
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer func() { _ = store.Close() }()

	client := cacheManager.Client()
	biases := learner.NewRedisBiasStore(client, cfg.Redis.KeyPrefix)

	patternLearner := learner.New(biases, store, learner.Options{
		Alpha:     cfg.Learner.Alpha,
		Step:      cfg.Learner.BiasStep,
		Min:       cfg.Learner.BiasMin,
		Max:       cfg.Learner.BiasMax,
		QueueSize: cfg.Learner.QueueSize,
	}, logger)
	patternLearner.OnDrop(collector.RecordLearnerDrop)

	emitter := engine.NewChannelEmitter(1024)

	eng := engine.New(cfg.Handoff, engine.Options{
		Locks:    lock.NewRedisManager(client, cfg.Redis.KeyPrefix, logger),
		Counters: ratelimit.NewRedisCounter(client, cfg.Redis.KeyPrefix, logger),
		History:  store,
		Bias:     biases,
		Emitter:  emitter,
		Metrics:  collector,
		Logger:   logger,
	})

	api := NewAPI(eng, store, patternLearner, collector, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := Chain(api.Routes(),
		Recovery(logger),
		TraceID(),
		RequestLogger(logger, collector),
		RateLimiter(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	)

	httpServer := server.NewManager(handler, server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		TLSCertFile:     cfg.Server.TLSCertFile,
		TLSKeyFile:      cfg.Server.TLSKeyFile,
	}, logger)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := patternLearner.Run(groupCtx); err != nil && !isCanceled(err) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		runRetentionSweep(groupCtx, store, cfg.Handoff, collector, logger)
		return nil
	})

	group.Go(func() error {
		drainTags(groupCtx, emitter, logger)
		return nil
	})

	if err := httpServer.Start(); err != nil {
		return err
	}
	logger.Info("leadflow started", zap.String("addr", httpServer.Addr()), zap.String("version", version))

	httpServer.WaitForShutdown()
	cancel()
	return group.Wait()
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// runRetentionSweep purges audit records past the retention horizon.
func runRetentionSweep(ctx context.Context, store history.Store, cfg config.HandoffConfig, collector *metrics.Collector, logger *zap.Logger) {
	interval := cfg.RetentionSweepInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-cfg.HistoryRetention)
			purged, err := store.PurgeOlderThan(ctx, cutoff)
			if err != nil {
				logger.Error("retention sweep failed", zap.Error(err))
				continue
			}
			collector.RecordHistoryPurge(purged)
		}
	}
}

// drainTags forwards tag intents to the CRM sync collaborator. The
// engine only emits the intent; delivery is this consumer's concern.
// For now intents are logged for the downstream sync to pick up.
func drainTags(ctx context.Context, emitter *engine.ChannelEmitter, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case tag := <-emitter.Tags():
			logger.Info("tag intent",
				zap.String("contact_id", tag.ContactID),
				zap.String("key", tag.Key),
				zap.String("value", tag.Value),
			)
		}
	}
}
