package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/agrovest/backend/internal/domain"
	"github.com/agrovest/backend/internal/infrastructure/flutterwave"
)

// Outcome of reconciling one payment confirmation against its investment
type Outcome string

const (
	OutcomeActivated        Outcome = "activated"
	OutcomeAlreadyProcessed Outcome = "already-processed"
	OutcomeRejected         Outcome = "rejected"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomePending          Outcome = "pending"
)

// webhookMarkerTTL is how long a replay marker for a delivered event is
// kept. The status check is the real idempotency guard; the marker only
// makes replays visible in logs.
const webhookMarkerTTL = 24 * time.Hour

// ReconciliationService correlates gateway confirmations (polled or
// pushed) to investments, applying the lifecycle transition exactly once.
type ReconciliationService struct {
	repo      domain.InvestmentRepository
	lifecycle *LifecycleService
	gateway   PaymentGateway
	identity  domain.IdentityProvider
	cache     domain.InvestmentCache
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	repo domain.InvestmentRepository,
	lifecycle *LifecycleService,
	gateway PaymentGateway,
	identity domain.IdentityProvider,
	cache domain.InvestmentCache,
) *ReconciliationService {
	return &ReconciliationService{
		repo:      repo,
		lifecycle: lifecycle,
		gateway:   gateway,
		identity:  identity,
		cache:     cache,
	}
}

// InitiateGatewayPayment creates a Pending gateway investment and opens a
// hosted payment session for it. The record stays Pending if the gateway
// call fails; the caller may retry with a new investment.
func (s *ReconciliationService) InitiateGatewayPayment(ctx context.Context, in CreateInput) (*domain.Investment, string, error) {
	in.PaymentMethod = string(domain.PaymentGateway)

	user, err := s.identity.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, "", err
	}

	inv, err := s.lifecycle.Create(ctx, in)
	if err != nil {
		return nil, "", err
	}

	link, err := s.gateway.InitiateCharge(ctx, ChargeInput{
		TxRef:    inv.TxRef,
		Amount:   inv.Amount,
		Currency: "NGN",
		Customer: *user,
		Title:    "Investment Payment",
	})
	if err != nil {
		return nil, "", err
	}

	return inv, link, nil
}

// VerifyAndActivate is the poll path: ask the gateway for the charge state
// and apply the matching transition. Safe to call any number of times.
func (s *ReconciliationService) VerifyAndActivate(ctx context.Context, txRef string) (*domain.Investment, Outcome, error) {
	inv, err := s.repo.GetByTxRef(ctx, txRef)
	if err != nil {
		return nil, "", err
	}

	// Already settled one way or the other: report success, change nothing.
	if inv.Status != domain.StatusPending {
		return inv, OutcomeAlreadyProcessed, nil
	}

	charge, err := s.gateway.VerifyByReference(ctx, txRef)
	if err != nil {
		return nil, "", err
	}

	return s.applyCharge(ctx, inv, charge.Status)
}

// WebhookEvent is the normalized payload of a gateway push notification
type WebhookEvent struct {
	Event  string
	TxRef  string
	Status string
	Amount float64
}

// HandleEvent is the webhook path. Signature verification happens at the
// HTTP boundary; by the time an event reaches here it is authentic.
func (s *ReconciliationService) HandleEvent(ctx context.Context, event WebhookEvent) (*domain.Investment, Outcome, error) {
	inv, err := s.repo.GetByTxRef(ctx, event.TxRef)
	if err != nil {
		return nil, "", err
	}

	if first, err := s.cache.MarkWebhookEvent(ctx, event.TxRef, webhookMarkerTTL); err != nil {
		log.Printf("[Reconcile] Replay marker failed for tx_ref=%s: %v", event.TxRef, err)
	} else if !first {
		log.Printf("[Reconcile] Duplicate webhook delivery for tx_ref=%s", event.TxRef)
	}

	if inv.Status != domain.StatusPending {
		return inv, OutcomeAlreadyProcessed, nil
	}

	return s.applyCharge(ctx, inv, event.Status)
}

// ApproveManual is the administrative path for manual bank-transfer
// investments: same activation, no gateway involved.
func (s *ReconciliationService) ApproveManual(ctx context.Context, id string) (*domain.Investment, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.PaymentMethod != domain.PaymentManual {
		return nil, domain.ErrNotManual
	}
	return s.lifecycle.Activate(ctx, id)
}

// applyCharge maps a gateway charge status onto the lifecycle. First
// writer wins: a lost race reads back as already-processed, never as an
// error.
func (s *ReconciliationService) applyCharge(ctx context.Context, inv *domain.Investment, status string) (*domain.Investment, Outcome, error) {
	switch status {
	case flutterwave.ChargeSuccessful:
		activated, err := s.lifecycle.Activate(ctx, inv.ID)
		if err != nil {
			var illegal *domain.IllegalTransitionError
			if errors.As(err, &illegal) {
				current, getErr := s.repo.GetByID(ctx, inv.ID)
				if getErr != nil {
					return nil, "", getErr
				}
				return current, OutcomeAlreadyProcessed, nil
			}
			return nil, "", err
		}
		return activated, OutcomeActivated, nil

	case flutterwave.ChargeFailed:
		return s.reconcileTerminal(ctx, inv.ID, s.lifecycle.Reject, OutcomeRejected)

	case flutterwave.ChargeCancelled:
		return s.reconcileTerminal(ctx, inv.ID, s.lifecycle.Cancel, OutcomeCancelled)

	default:
		// pending, or anything unrecognized: no state change.
		return inv, OutcomePending, nil
	}
}

func (s *ReconciliationService) reconcileTerminal(ctx context.Context, id string, transition func(context.Context, string) error, outcome Outcome) (*domain.Investment, Outcome, error) {
	err := transition(ctx, id)
	var illegal *domain.IllegalTransitionError
	if err != nil && !errors.As(err, &illegal) {
		return nil, "", err
	}

	current, getErr := s.repo.GetByID(ctx, id)
	if getErr != nil {
		return nil, "", getErr
	}
	if err != nil {
		// Someone already settled this record; the event is stale.
		return current, OutcomeAlreadyProcessed, nil
	}
	return current, outcome, nil
}
