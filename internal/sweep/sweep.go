// Package sweep runs the scheduled maintenance jobs: expiring overdue
// clients, resetting monthly payment markers, lapsing reseller manager
// plans and pruning stale sessions. Each job is an exported method so
// tests and the CLI can invoke them without the scheduler.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gestororion/orion/internal/audit"
	"github.com/gestororion/orion/internal/client"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/logging"
	"github.com/gestororion/orion/internal/metrics"
	"github.com/gestororion/orion/internal/reseller"
)

// SessionSweeper prunes expired sessions. Implemented by auth.Manager.
type SessionSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper owns the cron schedule and the job implementations.
type Sweeper struct {
	clients   client.Store
	resellers reseller.Store
	sessions  SessionSweeper
	audits    *audit.Recorder
	cron      *cron.Cron
	now       func() time.Time
}

// New creates a sweeper. Call Start to arm the schedule.
func New(clients client.Store, resellers reseller.Store, sessions SessionSweeper, audits *audit.Recorder) *Sweeper {
	return &Sweeper{
		clients:   clients,
		resellers: resellers,
		sessions:  sessions,
		audits:    audits,
		now:       time.Now,
	}
}

// WithNow overrides the clock (for testing).
func (s *Sweeper) WithNow(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Start arms the schedule and returns immediately. Jobs run on the
// cron goroutine; errors are logged and counted, never fatal.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()

	jobs := []struct {
		spec string
		name string
		run  func(context.Context) (int, error)
	}{
		{"0 1 * * *", "expire_clients", s.ExpireOverdueClients},
		{"30 1 * * *", "settle_alerts", s.SettlementAlerts},
		{"0 2 * * *", "expire_plans", s.ExpireResellerPlans},
		{"0 * * * *", "payment_reset", s.ResetLapsedPayments},
		{"15 * * * *", "sessions", s.PruneSessions},
	}
	for _, j := range jobs {
		j := j
		if _, err := c.AddFunc(j.spec, func() { s.runJob(ctx, j.name, j.run) }); err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}

	c.Start()
	s.cron = c
	logging.FromContext(ctx).Info("sweep scheduler started", "jobs", len(jobs))
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Sweeper) runJob(ctx context.Context, name string, run func(context.Context) (int, error)) {
	log := logging.FromContext(ctx)

	n, err := run(ctx)
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues(name, "error").Inc()
		log.Error("sweep job failed", "job", name, "error", err)
		return
	}
	metrics.SweepRunsTotal.WithLabelValues(name, "ok").Inc()
	if n > 0 {
		log.Info("sweep job done", "job", name, "affected", n)
	}
}

// masterScope sees every row, legacy ones included. Sweeps are the only
// writer that runs outside a caller identity.
func masterScope() identity.Scope {
	return identity.Scope{IncludeLegacy: true}
}

// ExpireOverdueClients flips ATIVO clients past their due date to INATIVO.
// The due day itself still counts; only the day after lapses the row.
func (s *Sweeper) ExpireOverdueClients(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.clients.ListOverdueActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	n := 0
	for _, c := range overdue {
		c.Status = client.StatusInactive
		c.UpdatedAt = now
		if err := s.clients.Update(ctx, masterScope(), c); err != nil {
			logging.FromContext(ctx).Warn("expire client failed", "client_id", c.ID, "error", err)
			continue
		}
		n++
	}
	metrics.SweepExpiredTotal.WithLabelValues("clients").Add(float64(n))
	if n > 0 {
		s.audits.RecordSystem(ctx, audit.ActionSweep, fmt.Sprintf("expired %d overdue clients", n))
	}
	return n, nil
}

// SettlementAlerts records which resellers have a server settlement due
// today. Purely informational; the panel surfaces it from the audit log.
func (s *Sweeper) SettlementAlerts(ctx context.Context) (int, error) {
	due, err := s.resellers.ListSettlingOn(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list settling: %w", err)
	}
	for _, r := range due {
		s.audits.RecordSystem(ctx, audit.ActionSweep,
			fmt.Sprintf("settlement due today for reseller %s (%s)", r.ID, r.Name))
	}
	return len(due), nil
}

// ResetLapsedPayments flips PAGO resellers back to PENDENTE once their
// latest settle date has passed, opening the next collection cycle.
func (s *Sweeper) ResetLapsedPayments(ctx context.Context) (int, error) {
	now := s.now()
	lapsed, err := s.resellers.ListPaymentResetDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list payment reset: %w", err)
	}

	n := 0
	for _, r := range lapsed {
		r.PaymentStatus = reseller.PaymentPending
		r.UpdatedAt = now
		if err := s.resellers.Update(ctx, masterScope(), r); err != nil {
			logging.FromContext(ctx).Warn("payment reset failed", "reseller_id", r.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// ExpireResellerPlans deactivates manager plans whose expiry day has
// fully passed.
func (s *Sweeper) ExpireResellerPlans(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.resellers.ListExpiredPlans(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired plans: %w", err)
	}

	n := 0
	for _, r := range expired {
		r.PlanActive = false
		r.UpdatedAt = now
		if err := s.resellers.Update(ctx, masterScope(), r); err != nil {
			logging.FromContext(ctx).Warn("plan expire failed", "reseller_id", r.ID, "error", err)
			continue
		}
		n++
	}
	metrics.SweepExpiredTotal.WithLabelValues("reseller_plans").Add(float64(n))
	if n > 0 {
		s.audits.RecordSystem(ctx, audit.ActionSweep, fmt.Sprintf("expired %d reseller plans", n))
	}
	return n, nil
}

// PruneSessions drops expired login sessions.
func (s *Sweeper) PruneSessions(ctx context.Context) (int, error) {
	return s.sessions.Sweep(ctx)
}
