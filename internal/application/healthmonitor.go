package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
	"github.com/ericfisherdev/sharedlogin/internal/domain/port/driven"
)

// HealthMonitor periodically classifies every credential and reports the
// result. It logs when a credential enters the warning or expired state so
// operators know to rotate it.
type HealthMonitor struct {
	credSvc   *CredentialService
	observer  driven.HealthObserver
	interval  time.Duration
	logger    *slog.Logger
	refreshCh chan chan error

	// last is only touched by the Start goroutine.
	last map[string]model.HealthStatus
}

// NewHealthMonitor creates a HealthMonitor. observer may be nil.
func NewHealthMonitor(
	credSvc *CredentialService,
	observer driven.HealthObserver,
	interval time.Duration,
	logger *slog.Logger,
) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		credSvc:   credSvc,
		observer:  observer,
		interval:  interval,
		logger:    logger,
		refreshCh: make(chan chan error),
		last:      make(map[string]model.HealthStatus),
	}
}

// Start runs an immediate sweep, then sweeps on the configured interval and
// on every Refresh call. Start blocks until the context is canceled.
func (m *HealthMonitor) Start(ctx context.Context) {
	if err := m.sweep(ctx); err != nil {
		m.logger.Error("initial health sweep failed", "error", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		case <-ticker.C:
			if err := m.sweep(ctx); err != nil {
				m.logger.Error("health sweep failed", "error", err)
			}
		case done := <-m.refreshCh:
			done <- m.sweep(ctx)
		}
	}
}

// Refresh triggers a sweep outside the interval and waits for it. It blocks
// until the sweep completes or the context is canceled.
func (m *HealthMonitor) Refresh(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case m.refreshCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *HealthMonitor) sweep(ctx context.Context) error {
	start := time.Now()

	loads, err := m.credSvc.CredentialLoads(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]model.HealthStatus, len(loads))
	var attention int
	for _, l := range loads {
		id := l.Credential.ID
		status := l.Health.Status
		seen[id] = status

		if !l.Credential.Visible || !needsRenewal(status) {
			continue
		}
		attention++
		if prev, ok := m.last[id]; ok && prev == status {
			continue
		}
		m.logger.Warn("credential needs renewal",
			"credential_id", id,
			"service", l.Credential.Service,
			"status", status,
			"label", l.Health.Label,
			"subscribers", l.Subscribers,
		)
	}
	m.last = seen

	if m.observer != nil {
		m.observer.ObserveCredentialHealth(loads)
	}

	m.logger.Info("health sweep complete",
		"credentials", len(loads),
		"needs_renewal", attention,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func needsRenewal(s model.HealthStatus) bool {
	return s == model.HealthWarning || s == model.HealthExpired
}
