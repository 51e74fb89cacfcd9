// Package probe periodically checks that each external integration can be
// reached with its current credentials, on a cron schedule.
//
// A probe never changes credentials; it resolves them through the same
// client managers as regular operations, so a probe after an invalidation
// rebuilds the client.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sportscouncil/backoffice/internal/credentials"
)

// CheckFunc verifies one integration.
type CheckFunc func(ctx context.Context) credentials.Outcome

// Recorder receives the result of each check.
type Recorder interface {
	SetIntegrationUp(integration string, up bool)
}

// Status is the latest check result for one integration.
type Status struct {
	Integration string    `json:"integration"`
	Up          bool      `json:"up"`
	Error       string    `json:"error,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Prober runs integration checks on a schedule and keeps the latest results.
type Prober struct {
	checks   map[string]CheckFunc
	schedule cron.Schedule
	recorder Recorder
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	statuses map[string]Status
}

// New creates a Prober. schedule is a standard five-field cron expression.
// recorder and metrics may be nil.
func New(schedule string, checks map[string]CheckFunc, recorder Recorder, metrics *Metrics, logger *slog.Logger) (*Prober, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("parsing probe schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		checks:   checks,
		schedule: sched,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		statuses: make(map[string]Status, len(checks)),
	}, nil
}

// Start runs a first probe immediately, then on every schedule tick.
// Returns a cancel function that stops the loop.
func (p *Prober) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		p.logger.InfoContext(ctx, "integration prober started",
			slog.Int("integrations", len(p.checks)),
			slog.Time("next_run", p.schedule.Next(p.now())),
		)
		p.RunOnce(ctx)

		for {
			wait := time.Until(p.schedule.Next(p.now()))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				p.logger.Info("integration prober stopped")
				return
			case <-timer.C:
				p.RunOnce(ctx)
			}
		}
	}()

	return cancel
}

// RunOnce checks every integration concurrently and returns the new statuses.
func (p *Prober) RunOnce(ctx context.Context) []Status {
	start := time.Now()

	var wg sync.WaitGroup
	results := make(chan Status, len(p.checks))
	for name, check := range p.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- p.runCheck(ctx, name, check)
		}()
	}
	wg.Wait()
	close(results)

	p.mu.Lock()
	for st := range results {
		p.statuses[st.Integration] = st
	}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.Runs.Inc()
		p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}
	return p.Statuses()
}

func (p *Prober) runCheck(ctx context.Context, name string, check CheckFunc) Status {
	out := check(ctx)
	st := Status{
		Integration: name,
		Up:          out.Success,
		Error:       out.Error,
		CheckedAt:   p.now().UTC(),
	}

	if p.recorder != nil {
		p.recorder.SetIntegrationUp(name, st.Up)
	}
	if !st.Up {
		if p.metrics != nil {
			p.metrics.Failures.WithLabelValues(name).Inc()
		}
		p.logger.WarnContext(ctx, "integration check failed",
			slog.String("integration", name),
			slog.String("error", st.Error),
		)
	}
	return st
}

// Statuses returns the latest results sorted by integration name.
// Integrations not yet checked are omitted.
func (p *Prober) Statuses() []Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Status, 0, len(p.statuses))
	for _, st := range p.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Integration < out[j].Integration })
	return out
}
