package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/agrovest/backend/internal/domain"
	"github.com/oklog/ulid/v2"
)

const (
	// txRefAttempts bounds regeneration on a duplicate tx_ref. ULIDs make
	// collisions practically impossible; more than a few means something
	// is broken, not unlucky.
	txRefAttempts = 3

	// staleAfter is how long a pending manual investment must sit unpaid
	// before an administrator may delete it.
	staleAfter = 24 * time.Hour

	listCacheTTL = 5 * time.Minute
)

// LifecycleService owns the investment state machine: creation with
// derived fields, the legal status transitions, and listing.
type LifecycleService struct {
	repo     domain.InvestmentRepository
	identity domain.IdentityProvider
	cache    domain.InvestmentCache
	notifier domain.Notifier
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	repo domain.InvestmentRepository,
	identity domain.IdentityProvider,
	cache domain.InvestmentCache,
	notifier domain.Notifier,
) *LifecycleService {
	return &LifecycleService{
		repo:     repo,
		identity: identity,
		cache:    cache,
		notifier: notifier,
	}
}

// CreateInput carries a creation request into the engine
type CreateInput struct {
	UserID        string
	PlanCode      string
	Amount        float64
	PaymentMethod string
	ReceiptURL    string
}

// Create validates the request, computes the derived fields and persists a
// Pending investment with a freshly generated tx_ref.
func (s *LifecycleService) Create(ctx context.Context, in CreateInput) (*domain.Investment, error) {
	plan, err := domain.LookupPlan(in.PlanCode)
	if err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	method, ok := domain.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMethod, in.PaymentMethod)
	}
	if method == domain.PaymentManual && in.ReceiptURL == "" {
		return nil, domain.ErrReceiptRequired
	}
	if method == domain.PaymentGateway {
		// Gateway investments never carry a receipt.
		in.ReceiptURL = ""
	}

	if _, err := s.identity.GetUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inv := &domain.Investment{
		UserID:         in.UserID,
		Plan:           plan.Code,
		Amount:         in.Amount,
		PaymentMethod:  method,
		ReceiptURL:     in.ReceiptURL,
		StartDate:      now,
		MaturityDate:   domain.MaturityFrom(now, plan),
		ExpectedReturn: domain.ExpectedReturnFor(in.Amount, plan),
		CountdownDays:  plan.DurationDays,
		Status:         domain.StatusPending,
	}

	for attempt := 1; attempt <= txRefAttempts; attempt++ {
		inv.TxRef = ulid.Make().String()
		err = s.repo.Create(ctx, inv)
		if err == nil {
			s.invalidateList(ctx, in.UserID)
			return inv, nil
		}
		if err != domain.ErrDuplicateTxRef {
			return nil, err
		}
		log.Printf("[Lifecycle] tx_ref collision on attempt %d, regenerating", attempt)
	}
	return nil, domain.ErrTxRefExhausted
}

// ListByUser returns a user's investments newest-first. Countdown values
// for Active records are refreshed against the clock on the way out; the
// stored value stays sweeper-owned.
func (s *LifecycleService) ListByUser(ctx context.Context, userID string) ([]*domain.Investment, error) {
	if cached, err := s.cache.GetUserInvestments(ctx, userID); err == nil && cached != nil {
		return s.refreshCountdowns(cached), nil
	} else if err != nil {
		log.Printf("[Lifecycle] Cache read failed for user %s: %v", userID, err)
	}

	investments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetUserInvestments(ctx, userID, investments, listCacheTTL); err != nil {
		log.Printf("[Lifecycle] Cache write failed for user %s: %v", userID, err)
	}

	return s.refreshCountdowns(investments), nil
}

// ListAll returns every investment, newest-first, for the admin overview.
func (s *LifecycleService) ListAll(ctx context.Context) ([]*domain.Investment, error) {
	investments, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.refreshCountdowns(investments), nil
}

// ListByStatus returns investments in a single status for the admin overview.
func (s *LifecycleService) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Investment, error) {
	investments, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	return s.refreshCountdowns(investments), nil
}

func (s *LifecycleService) refreshCountdowns(investments []*domain.Investment) []*domain.Investment {
	now := time.Now().UTC()
	for _, inv := range investments {
		if inv.Status == domain.StatusActive {
			inv.CountdownDays = domain.CountdownAt(inv.MaturityDate, now)
		}
	}
	return investments
}

// Activate moves a Pending investment to Active, re-anchoring start and
// maturity dates at the confirmation time. ExpectedReturn stays as fixed
// at creation.
func (s *LifecycleService) Activate(ctx context.Context, id string) (*domain.Investment, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusPending {
		return nil, &domain.IllegalTransitionError{From: inv.Status, To: domain.StatusActive}
	}

	plan, err := domain.LookupPlan(inv.Plan)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{
		"start_date":     now,
		"maturity_date":  domain.MaturityFrom(now, plan),
		"countdown_days": plan.DurationDays,
	}

	applied, err := s.repo.UpdateStatusIf(ctx, id, domain.StatusPending, domain.StatusActive, fields)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race: someone else transitioned the record first.
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &domain.IllegalTransitionError{From: current.Status, To: domain.StatusActive}
	}

	s.invalidateList(ctx, inv.UserID)
	s.notifyUser(ctx, inv.UserID, "Investment activated",
		fmt.Sprintf("Your %s investment of %.2f is now active.", inv.Plan, inv.Amount))

	inv.Status = domain.StatusActive
	inv.StartDate = now
	inv.MaturityDate = fields["maturity_date"].(time.Time)
	inv.CountdownDays = plan.DurationDays
	return inv, nil
}

// Reject moves a Pending investment to the terminal Rejected state.
func (s *LifecycleService) Reject(ctx context.Context, id string) error {
	return s.terminateFromPending(ctx, id, domain.StatusRejected)
}

// Cancel moves a Pending investment to the terminal Cancelled state.
func (s *LifecycleService) Cancel(ctx context.Context, id string) error {
	return s.terminateFromPending(ctx, id, domain.StatusCancelled)
}

func (s *LifecycleService) terminateFromPending(ctx context.Context, id string, to domain.Status) error {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != domain.StatusPending {
		return &domain.IllegalTransitionError{From: inv.Status, To: to}
	}

	applied, err := s.repo.UpdateStatusIf(ctx, id, domain.StatusPending, to, map[string]interface{}{
		"countdown_days": 0,
	})
	if err != nil {
		return err
	}
	if !applied {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return &domain.IllegalTransitionError{From: current.Status, To: to}
	}

	s.invalidateList(ctx, inv.UserID)
	return nil
}

// Mature moves an Active investment to Matured and zeroes the countdown.
func (s *LifecycleService) Mature(ctx context.Context, id string) error {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != domain.StatusActive {
		return &domain.IllegalTransitionError{From: inv.Status, To: domain.StatusMatured}
	}

	applied, err := s.repo.UpdateStatusIf(ctx, id, domain.StatusActive, domain.StatusMatured, map[string]interface{}{
		"countdown_days": 0,
	})
	if err != nil {
		return err
	}
	if !applied {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return &domain.IllegalTransitionError{From: current.Status, To: domain.StatusMatured}
	}

	s.invalidateList(ctx, inv.UserID)
	s.notifyUser(ctx, inv.UserID, "Investment matured",
		fmt.Sprintf("Your %s investment has matured. Expected return: %.2f.", inv.Plan, inv.ExpectedReturn))
	return nil
}

// UpdateStatus is the administrative override. It dispatches to the same
// transition paths as everything else, so status can never move backward.
func (s *LifecycleService) UpdateStatus(ctx context.Context, id string, to domain.Status) (*domain.Investment, error) {
	var err error
	switch to {
	case domain.StatusActive:
		return s.Activate(ctx, id)
	case domain.StatusRejected:
		err = s.Reject(ctx, id)
	case domain.StatusCancelled:
		err = s.Cancel(ctx, id)
	case domain.StatusMatured:
		err = s.Mature(ctx, id)
	default:
		inv, gerr := s.repo.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &domain.IllegalTransitionError{From: inv.Status, To: to}
	}
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// DeleteStale removes an unpaid manual investment that has sat Pending for
// at least 24 hours. Anything else is not eligible for physical deletion.
func (s *LifecycleService) DeleteStale(ctx context.Context, id string) error {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != domain.StatusPending || inv.PaymentMethod != domain.PaymentManual {
		return domain.ErrNotEligible
	}

	elapsed := time.Since(inv.CreatedAt)
	if elapsed < staleAfter {
		remaining := int(math.Ceil((staleAfter - elapsed).Hours()))
		return &domain.TooEarlyError{RemainingHours: remaining}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateList(ctx, inv.UserID)
	return nil
}

func (s *LifecycleService) invalidateList(ctx context.Context, userID string) {
	if err := s.cache.InvalidateUserInvestments(ctx, userID); err != nil {
		log.Printf("[Lifecycle] Cache invalidation failed for user %s: %v", userID, err)
	}
}

func (s *LifecycleService) notifyUser(ctx context.Context, userID, subject, body string) {
	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		log.Printf("[Lifecycle] Cannot notify user %s: %v", userID, err)
		return
	}
	s.notifier.Send(user.Email, subject, body)
}
