package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"TrendSentinel/internal/analyzer"
	"TrendSentinel/internal/config"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/notifier"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// MaxCommandTickers caps how many symbols one /analyze command may request.
const MaxCommandTickers = 10

// Sender delivers a report. *notifier.TelegramNotifier satisfies it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs periodic scans and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Analyzer *analyzer.Orchestrator
	Notifier Sender // nil disables delivery
	Health   *metrics.HealthStatus
	Ctx      context.Context

	mu          sync.RWMutex
	tickers     []string
	notifyEmpty bool
	scanCron    string
	scanEntry   cron.EntryID
	now         func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, orch *analyzer.Orchestrator, sender Sender, health *metrics.HealthStatus, tickers []string, notifyEmpty bool) *Scheduler {
	return &Scheduler{
		Cron:        cron.New(cron.WithParser(config.CronParser)),
		Analyzer:    orch,
		Notifier:    sender,
		Health:      health,
		Ctx:         ctx,
		tickers:     config.NormalizeTickers(tickers),
		notifyEmpty: notifyEmpty,
		now:         time.Now,
	}
}

// Register schedules the periodic scan.
func (s *Scheduler) Register(scanCron string) error {
	id, err := s.Cron.AddFunc(scanCron, s.scanTask)
	if err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	s.mu.Lock()
	s.scanCron, s.scanEntry = scanCron, id
	s.mu.Unlock()
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	zap.S().Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	zap.S().Info("scheduler stopped")
}

// Tickers returns the configured watch list.
func (s *Scheduler) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.tickers...)
}

// UpdateConfig applies a reloaded config. Running scans are unaffected.
func (s *Scheduler) UpdateConfig(cfg *config.Config) error {
	s.Analyzer.Update(analyzer.Settings{
		Timeframes: cfg.Timeframes,
		Params:     cfg.Indicators,
		Rules:      cfg.Rules,
		Options:    cfg.Analyzer,
	})

	s.mu.Lock()
	s.tickers = config.NormalizeTickers(cfg.Tickers)
	s.notifyEmpty = cfg.Telegram.NotifyEmpty
	oldCron, oldEntry := s.scanCron, s.scanEntry
	s.mu.Unlock()

	if oldCron == "" || oldCron == cfg.Schedule.ScanCron {
		return nil
	}
	s.Cron.Remove(oldEntry)
	if err := s.Register(cfg.Schedule.ScanCron); err != nil {
		// keep the previous schedule
		if rerr := s.Register(oldCron); rerr != nil {
			zap.S().Errorw("restore scan schedule", "error", rerr)
		}
		return err
	}
	zap.S().Infow("scan schedule updated", "cron", cfg.Schedule.ScanCron)
	return nil
}

// RunScanNow executes the scan immediately (for RUN_ON_START / manual trigger).
func (s *Scheduler) RunScanNow() {
	s.scanTask()
}

func (s *Scheduler) scanTask() {
	tickers := s.Tickers()
	if len(tickers) == 0 {
		zap.S().Warn("scan skipped: no tickers configured")
		return
	}
	zap.S().Infow("running scan", "tickers", len(tickers))
	batch := s.scan(s.Ctx, tickers)

	s.mu.RLock()
	notifyEmpty := s.notifyEmpty
	s.mu.RUnlock()
	if signalCount(batch) == 0 && !notifyEmpty {
		zap.S().Info("scan produced no signals; nothing sent")
		return
	}
	s.trySend(notifier.FormatBatchReport(batch, s.now()))
}

func (s *Scheduler) scan(ctx context.Context, tickers []string) *model.BatchResult {
	batch := s.Analyzer.Run(ctx, tickers)
	total, failed := batch.Pairs()
	s.Health.RecordBatch(total, failed)
	return batch
}

// HandleCommand processes a user command and returns a reply.
// A message that is not a command is treated as a list of tickers to analyse.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	name := fields[0]
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i] // "/scan@SentinelBot"
	}
	if !strings.HasPrefix(name, "/") {
		return s.analyzeCommand(ctx, fields)
	}

	switch strings.ToLower(name) {
	case "/analyze", "/a":
		return s.analyzeCommand(ctx, fields[1:])
	case "/scan":
		tickers := s.Tickers()
		if len(tickers) == 0 {
			return "No tickers configured. Use /analyze TICKER."
		}
		return notifier.FormatBatchReport(s.scan(ctx, tickers), s.now())
	case "/timeframes":
		return notifier.FormatTimeframes(s.Analyzer.Settings().Timeframes)
	case "/tickers":
		tickers := s.Tickers()
		if len(tickers) == 0 {
			return "No tickers configured."
		}
		return "Watch list: " + strings.Join(tickers, ", ")
	default:
		return helpText
	}
}

func (s *Scheduler) analyzeCommand(ctx context.Context, args []string) string {
	tickers := config.NormalizeTickers(args)
	if len(tickers) == 0 {
		return "Usage: /analyze TICKER [TICKER ...]"
	}
	if len(tickers) > MaxCommandTickers {
		return fmt.Sprintf("Too many tickers: at most %d per request.", MaxCommandTickers)
	}
	return notifier.FormatBatchReport(s.scan(ctx, tickers), s.now())
}

const helpText = "Available commands:\n" +
	"• /analyze TSLA NVDA - analyse tickers on every timeframe\n" +
	"• /scan - analyse the configured watch list\n" +
	"• /tickers - show the watch list\n" +
	"• /timeframes - show configured timeframes\n" +
	"Sending bare ticker symbols works like /analyze."

func signalCount(b *model.BatchResult) int {
	n := 0
	for i := range b.Tickers {
		n += b.Tickers[i].SignalCount()
	}
	return n
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		zap.S().Infow("notifier disabled; report not sent", "bytes", len(text))
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		zap.S().Errorw("send notification", "error", err)
	}
}
