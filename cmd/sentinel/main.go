package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrendSentinel/internal/analyzer"
	"TrendSentinel/internal/barstore"
	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/config"
	"TrendSentinel/internal/logger"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/notifier"
	"TrendSentinel/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfgPath := config.DefaultPath
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	flag.StringVar(&cfgPath, "config", cfgPath, "path to the YAML config file")
	asJSON := flag.Bool("json", false, "print the batch as JSON instead of text")
	watch := flag.Bool("watch", false, "run the scheduler, Telegram bot and metrics server until interrupted")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] [-json] [-watch] [TICKER ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(cfgPath, *asJSON, *watch, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, asJSON, watch bool, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	log, err := logger.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	zap.S().Infow("TrendSentinel starting", "config", cfgPath, "provider", cfg.DataSource.Provider)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	provider, err := collector.NewFetcher(cfg.DataSource, cfg.Proxy)
	if err != nil {
		return fmt.Errorf("init data provider: %w", err)
	}
	store, err := barstore.Open(cfg.Cache)
	if err != nil {
		zap.S().Warnw("init bar cache failed, caching disabled", "backend", cfg.Cache.Backend, "error", err)
		store = barstore.NewNoopStore()
	}
	defer store.Close()
	fetcher := collector.WithCache(provider, store, m)
	zap.S().Infow("data source ready", "provider", fetcher.Name(), "cache", cfg.Cache.Backend)

	orch := analyzer.New(fetcher, analyzer.Settings{
		Timeframes: cfg.Timeframes,
		Params:     cfg.Indicators,
		Rules:      cfg.Rules,
		Options:    cfg.Analyzer,
	}, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watch {
		return serve(ctx, cfgPath, cfg, orch, store, reg)
	}

	tickers := config.NormalizeTickers(args)
	if len(tickers) == 0 {
		tickers = cfg.Tickers
	}
	if len(tickers) == 0 {
		return fmt.Errorf("no tickers given and none configured")
	}
	batch := orch.Run(ctx, tickers)
	if asJSON {
		return notifier.WriteJSON(os.Stdout, batch)
	}
	fmt.Print(notifier.PlainText(notifier.FormatBatchReport(batch, time.Now())))
	return nil
}

func serve(ctx context.Context, cfgPath string, cfg *config.Config, orch *analyzer.Orchestrator, store barstore.Store, reg *prometheus.Registry) error {
	health := metrics.NewHealthStatus(cfg.DataSource.Provider)

	// a nil *TelegramNotifier must not reach the scheduler as a non-nil interface
	var sender scheduler.Sender
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.Enabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	} else {
		zap.S().Warn("telegram not configured; reports are only logged")
	}

	sched := scheduler.NewScheduler(ctx, orch, sender, health, cfg.Tickers, cfg.Telegram.NotifyEmpty)
	if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
		return err
	}
	if sq, ok := store.(*barstore.SQLiteStore); ok {
		if _, err := sched.Cron.AddFunc("0 0 * * * *", func() {
			if n, err := sq.PruneExpired(ctx); err != nil {
				zap.S().Warnw("prune bar cache", "error", err)
			} else if n > 0 {
				zap.S().Infow("pruned bar cache", "rows", n)
			}
		}); err != nil {
			return fmt.Errorf("register cache prune: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		zap.S().Info("telegram polling started")
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg, health); err != nil {
				zap.S().Errorw("metrics server", "error", err)
			}
		}()
	}

	go func() {
		err := config.Watch(ctx, cfgPath, func(next *config.Config) {
			if err := sched.UpdateConfig(next); err != nil {
				zap.S().Warnw("apply reloaded config", "error", err)
			}
		})
		if err != nil {
			zap.S().Warnw("config watch disabled", "error", err)
		}
	}()

	if cfg.Schedule.RunOnStart || os.Getenv("RUN_ON_START") == "true" {
		zap.S().Info("run_on_start enabled, executing scan now")
		go sched.RunScanNow()
	}

	zap.S().Info("TrendSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	zap.S().Info("shutdown signal received, stopping...")
	return nil
}
