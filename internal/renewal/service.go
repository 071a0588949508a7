package renewal

import (
	"context"
	"time"

	"github.com/gestororion/orion/internal/client"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/idgen"
	"github.com/gestororion/orion/internal/metrics"
	"github.com/gestororion/orion/internal/user"
	"github.com/gestororion/orion/internal/validation"
)

// BillingConfig keeps the metered-model knobs. The implemented billing
// model is the flat price table; these only feed the informational metered
// preview and the one-time onboarding flag.
type BillingConfig struct {
	OnboardingFee  float64
	PricePerClient float64
}

// Service drives the renewal workflow.
type Service struct {
	requests Store
	users    user.Store
	clients  client.Store
	billing  BillingConfig
	now      func() time.Time
}

// NewService creates a renewal service.
func NewService(requests Store, users user.Store, clients client.Store, billing BillingConfig) *Service {
	return &Service{
		requests: requests,
		users:    users,
		clients:  clients,
		billing:  billing,
		now:      time.Now,
	}
}

// WithNow overrides the clock (for testing).
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Prices resolves the table the caller would pay right now.
// Personal: tenant admin's table, then master's, then defaults.
// Admin: master's admin table, then defaults.
func (s *Service) Prices(ctx context.Context, caller identity.Identity) (user.PriceTable, error) {
	switch caller.Role {
	case identity.RolePersonal:
		table := DefaultPersonalPrices
		if master, err := s.users.FindMaster(ctx); err == nil && master.PlanPrices != nil {
			table = master.PlanPrices.Merged(table)
		}
		if admin, err := s.users.FindTenantAdmin(ctx, caller.TenantID); err == nil && admin.PlanPrices != nil {
			table = admin.PlanPrices.Merged(table)
		}
		return table, nil

	case identity.RoleAdmin:
		table := DefaultAdminPrices
		if master, err := s.users.FindMaster(ctx); err == nil && master.AdminPlanPrices != nil {
			table = master.AdminPlanPrices.Merged(table)
		}
		return table, nil
	}
	return user.PriceTable{}, identity.ErrUnknownRole
}

func priceFor(table user.PriceTable, planKey string) float64 {
	switch planKey {
	case "1m":
		return table.M1
	case "3m":
		return table.M3
	case "6m":
		return table.M6
	case "1a":
		return table.Y1
	}
	return 0
}

// MeteredPreview computes what the metered model would charge an admin:
// active clients (own plus their personals') times the per-client price,
// plus the onboarding fee if never paid. Informational only.
func (s *Service) MeteredPreview(ctx context.Context, caller identity.Identity) (float64, int, error) {
	u, err := s.users.Get(ctx, caller.UserID)
	if err != nil {
		return 0, 0, err
	}

	owners := []string{caller.UserID}
	personals, err := s.users.PersonalIDs(ctx, caller.UserID)
	if err != nil {
		return 0, 0, err
	}
	owners = append(owners, personals...)

	count, err := s.clients.CountActiveOwned(ctx, caller.TenantID, owners, s.now())
	if err != nil {
		return 0, 0, err
	}

	total := float64(count) * s.billing.PricePerClient
	if !u.OnboardingFeePaid {
		total += s.billing.OnboardingFee
	}
	return total, count, nil
}

// Submit opens a renewal request for the caller. Only one may be in flight
// per user. The resolved price is snapshotted into the request; message is
// an optional note carried to the reviewer.
func (s *Service) Submit(ctx context.Context, caller identity.Identity, planKey, message string) (*Request, error) {
	days, ok := PlanDays[planKey]
	if !ok {
		return nil, ErrUnknownPlan
	}
	if _, err := s.requests.FindPending(ctx, caller.UserID); err == nil {
		return nil, ErrPendingExists
	}

	table, err := s.Prices(ctx, caller)
	if err != nil {
		return nil, err
	}

	r := &Request{
		ID:          idgen.WithPrefix("ren_"),
		TenantID:    caller.TenantID,
		UserID:      caller.UserID,
		Role:        string(caller.Role),
		PlanKey:     planKey,
		PlanLabel:   PlanLabels[planKey],
		Days:        days,
		Price:       priceFor(table, planKey),
		Message:     validation.SanitizeString(message, 500),
		Status:      StatusPending,
		RequestedAt: s.now(),
	}
	if err := s.requests.Create(ctx, r); err != nil {
		return nil, err
	}
	metrics.RenewalRequestsTotal.WithLabelValues("submitted").Inc()
	return r, nil
}

// resolve loads a pending request visible to the caller. Admin callers only
// reach requests of their own tenant; out-of-reach ids read as missing.
func (s *Service) resolve(ctx context.Context, caller identity.Identity, requestID string) (*Request, error) {
	r, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !caller.IsMaster() && r.TenantID != caller.TenantID {
		return nil, ErrRequestNotFound
	}
	if r.Status != StatusPending {
		return nil, ErrNotPending
	}
	return r, nil
}

// Approve extends the requester's panel expiry by the request's day count,
// counted from the later of the current expiry or now: renewals stack onto
// unused time, they never reset it. The first approved admin renewal also
// settles the onboarding fee.
func (s *Service) Approve(ctx context.Context, caller identity.Identity, requestID string) (*Request, error) {
	r, err := s.resolve(ctx, caller, requestID)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Get(ctx, r.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	base := now
	if u.PanelExpiry != nil && u.PanelExpiry.After(now) {
		base = *u.PanelExpiry
	}
	newExpiry := base.AddDate(0, 0, r.Days)

	u.PanelExpiry = &newExpiry
	u.PanelPlan = r.PlanLabel
	if u.Role == identity.RoleAdmin && !u.OnboardingFeePaid {
		u.OnboardingFeePaid = true
	}
	u.UpdatedAt = now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	r.Status = StatusApproved
	r.RespondedAt = &now
	r.RespondedBy = caller.UserID
	r.NewExpiry = &newExpiry
	if err := s.requests.Update(ctx, r); err != nil {
		return nil, err
	}
	metrics.RenewalRequestsTotal.WithLabelValues("approved").Inc()
	return r, nil
}

// Reject closes a pending request with no side effect on the requester.
func (s *Service) Reject(ctx context.Context, caller identity.Identity, requestID string) (*Request, error) {
	r, err := s.resolve(ctx, caller, requestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r.Status = StatusRejected
	r.RespondedAt = &now
	r.RespondedBy = caller.UserID
	if err := s.requests.Update(ctx, r); err != nil {
		return nil, err
	}
	metrics.RenewalRequestsTotal.WithLabelValues("rejected").Inc()
	return r, nil
}

// History returns the caller's recent requests, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]*Request, error) {
	return s.requests.ListByUser(ctx, userID, HistoryLimit)
}

// Pending lists open requests for review, oldest first. Admin callers are
// pinned to their tenant.
func (s *Service) Pending(ctx context.Context, caller identity.Identity, explicitTenant string) ([]*Request, error) {
	tenantID := caller.TenantID
	if caller.IsMaster() {
		tenantID = explicitTenant
	}
	return s.requests.ListPending(ctx, tenantID)
}

// Status reports the caller's current plan snapshot.
type Status struct {
	PanelPlan   string     `json:"panelPlan"`
	PanelExpiry *time.Time `json:"panelExpiry,omitempty"`
	State       string     `json:"state"`
}

// StatusOf computes the caller's plan state from the dates.
func (s *Service) StatusOf(ctx context.Context, userID string) (*Status, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Status{
		PanelPlan:   u.PanelPlan,
		PanelExpiry: u.PanelExpiry,
		State:       string(u.PanelStateAt(s.now())),
	}, nil
}

// SavePrices stores a price table on the given account after enforcing the
// monthly floor. adminTable selects the master's admin-facing table.
func (s *Service) SavePrices(ctx context.Context, userID string, table user.PriceTable, adminTable bool) error {
	if err := table.Validate(); err != nil {
		return err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if adminTable {
		u.AdminPlanPrices = &table
	} else {
		u.PlanPrices = &table
	}
	u.UpdatedAt = s.now()
	return s.users.Update(ctx, u)
}

// IsTerminal reports whether a status allows no further transition.
func IsTerminal(status string) bool {
	return status == StatusApproved || status == StatusRejected
}
