package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the Prometheus collectors for the scanner.
// All methods are safe on a nil receiver so callers can run without metrics.
type Metrics struct {
	PairsTotal    *prometheus.CounterVec
	SignalsTotal  *prometheus.CounterVec
	FetchDur      *prometheus.HistogramVec
	BatchDur      prometheus.Histogram
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	LastBatchUnix prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PairsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_pairs_total",
			Help: "Analysed (ticker, timeframe) pairs by outcome",
		}, []string{"status"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_signals_total",
			Help: "Signals emitted by kind",
		}, []string{"kind"}),
		FetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_fetch_duration_seconds",
			Help:    "Data provider fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		BatchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_batch_duration_seconds",
			Help:    "Wall time of a full multi-timeframe batch",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_cache_hits_total",
			Help: "Bar cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_cache_misses_total",
			Help: "Bar cache misses",
		}),
		LastBatchUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_last_batch_timestamp_seconds",
			Help: "Unix time the last batch completed",
		}),
	}

	reg.MustRegister(
		m.PairsTotal,
		m.SignalsTotal,
		m.FetchDur,
		m.BatchDur,
		m.CacheHits,
		m.CacheMisses,
		m.LastBatchUnix,
	)
	return m
}

func (m *Metrics) ObservePair(status string) {
	if m == nil {
		return
	}
	m.PairsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSignal(kind string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveFetch(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDur.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDur.Observe(d.Seconds())
	m.LastBatchUnix.SetToCurrentTime()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// HealthStatus summarises the last batch for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	Provider        string
	LastBatchAt     time.Time
	LastPairs       int
	LastUnavailable int
	StartedAt       time.Time
}

// NewHealthStatus returns a status stamped with the start time.
func NewHealthStatus(provider string) *HealthStatus {
	return &HealthStatus{Provider: provider, StartedAt: time.Now()}
}

// RecordBatch stores the outcome of a finished batch. Safe on a nil receiver.
func (h *HealthStatus) RecordBatch(total, unavailable int) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.LastBatchAt = time.Now()
	h.LastPairs = total
	h.LastUnavailable = unavailable
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint. A batch where every pair failed reports degraded.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if h.LastPairs > 0 && h.LastUnavailable == h.LastPairs {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	lastBatch := ""
	if !h.LastBatchAt.IsZero() {
		lastBatch = h.LastBatchAt.Format(time.RFC3339)
	}

	body := struct {
		Status          string `json:"status"`
		Uptime          string `json:"uptime"`
		Provider        string `json:"provider"`
		LastBatchAt     string `json:"last_batch_at"`
		LastPairs       int    `json:"last_pairs"`
		LastUnavailable int    `json:"last_unavailable"`
	}{
		Status:          status,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		Provider:        h.Provider,
		LastBatchAt:     lastBatch,
		LastPairs:       h.LastPairs,
		LastUnavailable: h.LastUnavailable,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// Serve exposes /metrics and /healthz on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, health *HealthStatus) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.S().Infof("metrics server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
