package observability

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sportscouncil/backoffice/internal/config"
)

const (
	defaultAnomalyWindow = 5 * time.Minute
	// minAnomalySamples is the smallest window that can raise an alert.
	minAnomalySamples = 5
)

// AnomalyDetector watches the error rate of each integration operation over
// a sliding window. It logs once when the rate crosses the threshold and once
// when it recovers. Keys are "integration.operation", e.g. "gmail.send".
type AnomalyDetector struct {
	threshold float64
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	series   map[string][]outcomeEvent
	alerting map[string]bool
}

type outcomeEvent struct {
	at     time.Time
	failed bool
}

// NewAnomalyDetector creates a detector from cfg.
func NewAnomalyDetector(cfg *config.AnomalyConfig, logger *slog.Logger) *AnomalyDetector {
	a := &AnomalyDetector{
		window:   defaultAnomalyWindow,
		logger:   logger,
		now:      time.Now,
		series:   make(map[string][]outcomeEvent),
		alerting: make(map[string]bool),
	}
	if cfg != nil {
		a.threshold = cfg.ErrorRateThreshold
		if cfg.WindowSeconds > 0 {
			a.window = time.Duration(cfg.WindowSeconds) * time.Second
		}
	}
	return a
}

// RecordError records a failed operation.
func (a *AnomalyDetector) RecordError(key string) { a.record(key, true) }

// RecordSuccess records a successful operation.
func (a *AnomalyDetector) RecordSuccess(key string) { a.record(key, false) }

// ErrorRate returns the failure ratio and sample count for key within the window.
func (a *AnomalyDetector) ErrorRate(key string) (rate, total float64) {
	if a == nil {
		return 0, 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rateLocked(key, a.now())
}

func (a *AnomalyDetector) record(key string, failed bool) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.series[key] = append(a.series[key], outcomeEvent{at: now, failed: failed})
	a.evaluateLocked(key, now)
}

// rateLocked drops events older than the window before counting.
func (a *AnomalyDetector) rateLocked(key string, now time.Time) (rate, total float64) {
	events := a.series[key]
	cutoff := now.Add(-a.window)
	i := 0
	for i < len(events) && events[i].at.Before(cutoff) {
		i++
	}
	events = events[i:]
	if len(events) == 0 {
		delete(a.series, key)
		return 0, 0
	}
	a.series[key] = events

	var failed int
	for _, e := range events {
		if e.failed {
			failed++
		}
	}
	return float64(failed) / float64(len(events)), float64(len(events))
}

func (a *AnomalyDetector) evaluateLocked(key string, now time.Time) {
	if a.threshold <= 0 {
		return
	}
	rate, total := a.rateLocked(key, now)
	if total < minAnomalySamples {
		return
	}

	above := rate > a.threshold
	if above == a.alerting[key] {
		return
	}
	a.alerting[key] = above
	if a.logger == nil {
		return
	}
	attrs := []any{
		slog.String("operation", key),
		slog.Float64("error_rate", rate),
		slog.Float64("threshold", a.threshold),
		slog.Int("samples", int(total)),
	}
	if above {
		a.logger.Warn("integration error rate above threshold", attrs...)
	} else {
		a.logger.Info("integration error rate recovered", attrs...)
	}
}
