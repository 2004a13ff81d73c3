package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovest/backend/internal/domain"
	"github.com/agrovest/backend/internal/infrastructure/flutterwave"
)

func newTestReconcile() (*ReconciliationService, *LifecycleService, *fakeRepo, *fakeGateway, *fakeCache) {
	repo := newFakeRepo()
	cache := newFakeCache()
	identity := newFakeIdentity(testUser())
	lifecycle := NewLifecycleService(repo, identity, cache, &fakeNotifier{})
	gateway := newFakeGateway()
	reconcile := NewReconciliationService(repo, lifecycle, gateway, identity, cache)
	return reconcile, lifecycle, repo, gateway, cache
}

func seedPending(repo *fakeRepo, txRef string) *domain.Investment {
	now := time.Now().UTC()
	return repo.seed(&domain.Investment{
		UserID:         "user-1",
		Plan:           domain.PlanSixMonths,
		Amount:         1000,
		PaymentMethod:  domain.PaymentGateway,
		TxRef:          txRef,
		StartDate:      now,
		MaturityDate:   now.AddDate(0, 0, 180),
		ExpectedReturn: 1250,
		CountdownDays:  180,
		Status:         domain.StatusPending,
		CreatedAt:      now,
	})
}

func TestInitiateGatewayPayment(t *testing.T) {
	reconcile, _, repo, _, _ := newTestReconcile()

	inv, link, err := reconcile.InitiateGatewayPayment(context.Background(), CreateInput{
		UserID:   "user-1",
		PlanCode: domain.PlanNineMonths,
		Amount:   2000,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://gateway.test/pay/"+inv.TxRef, link)
	assert.Equal(t, domain.PaymentGateway, inv.PaymentMethod)
	assert.Equal(t, domain.StatusPending, repo.mustGet(inv.ID).Status)
}

func TestInitiateGatewayPaymentGatewayDown(t *testing.T) {
	reconcile, _, repo, gateway, _ := newTestReconcile()
	gateway.initErr = &domain.GatewayError{Op: "initiate", Err: assert.AnError}

	_, _, err := reconcile.InitiateGatewayPayment(context.Background(), CreateInput{
		UserID:   "user-1",
		PlanCode: domain.PlanNineMonths,
		Amount:   2000,
	})
	var gw *domain.GatewayError
	require.ErrorAs(t, err, &gw)

	// The record stays Pending; nothing is rolled back.
	all, _ := repo.ListAll(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusPending, all[0].Status)
}

func TestVerifyAndActivateSuccess(t *testing.T) {
	reconcile, _, repo, gateway, _ := newTestReconcile()
	inv := seedPending(repo, "ref-verify")
	gateway.statuses["ref-verify"] = flutterwave.ChargeSuccessful

	settled, outcome, err := reconcile.VerifyAndActivate(context.Background(), "ref-verify")
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, outcome)
	assert.Equal(t, domain.StatusActive, settled.Status)
	assert.Equal(t, domain.StatusActive, repo.mustGet(inv.ID).Status)
}

func TestVerifyAndActivateIdempotent(t *testing.T) {
	reconcile, _, repo, gateway, _ := newTestReconcile()
	inv := seedPending(repo, "ref-repeat")
	gateway.statuses["ref-repeat"] = flutterwave.ChargeSuccessful

	_, outcome, err := reconcile.VerifyAndActivate(context.Background(), "ref-repeat")
	require.NoError(t, err)
	require.Equal(t, OutcomeActivated, outcome)
	firstStart := repo.mustGet(inv.ID).StartDate

	// Second poll skips the gateway entirely and changes nothing.
	settled, outcome, err := reconcile.VerifyAndActivate(context.Background(), "ref-repeat")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, outcome)
	assert.Equal(t, domain.StatusActive, settled.Status)
	assert.Equal(t, firstStart, repo.mustGet(inv.ID).StartDate)
	assert.Len(t, gateway.verified, 1)
}

func TestVerifyAndActivateUnknownRef(t *testing.T) {
	reconcile, _, _, _, _ := newTestReconcile()

	_, _, err := reconcile.VerifyAndActivate(context.Background(), "no-such-ref")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerifyAndActivateGatewayError(t *testing.T) {
	reconcile, _, repo, gateway, _ := newTestReconcile()
	inv := seedPending(repo, "ref-gwdown")
	gateway.verErr = &domain.GatewayError{Op: "verify", Err: assert.AnError}

	_, _, err := reconcile.VerifyAndActivate(context.Background(), "ref-gwdown")
	var gw *domain.GatewayError
	require.ErrorAs(t, err, &gw)
	assert.Equal(t, domain.StatusPending, repo.mustGet(inv.ID).Status)
}

func TestHandleEventActivates(t *testing.T) {
	reconcile, _, repo, _, _ := newTestReconcile()
	inv := seedPending(repo, "ref-hook")

	settled, outcome, err := reconcile.HandleEvent(context.Background(), WebhookEvent{
		Event:  "charge.completed",
		TxRef:  "ref-hook",
		Status: flutterwave.ChargeSuccessful,
		Amount: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, outcome)
	assert.Equal(t, domain.StatusActive, settled.Status)
	assert.Equal(t, domain.StatusActive, repo.mustGet(inv.ID).Status)
}

func TestHandleEventDoubleDelivery(t *testing.T) {
	reconcile, _, repo, _, _ := newTestReconcile()
	inv := seedPending(repo, "ref-double")

	event := WebhookEvent{
		Event:  "charge.completed",
		TxRef:  "ref-double",
		Status: flutterwave.ChargeSuccessful,
		Amount: 1000,
	}

	_, outcome, err := reconcile.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, OutcomeActivated, outcome)
	firstStart := repo.mustGet(inv.ID).StartDate

	// Redelivery of the same event is a no-op.
	_, outcome, err = reconcile.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, outcome)
	assert.Equal(t, firstStart, repo.mustGet(inv.ID).StartDate)
}

func TestHandleEventStatuses(t *testing.T) {
	tests := []struct {
		name        string
		status      string
		wantOutcome Outcome
		wantStatus  domain.Status
	}{
		{"failed charge rejects", flutterwave.ChargeFailed, OutcomeRejected, domain.StatusRejected},
		{"cancelled charge cancels", flutterwave.ChargeCancelled, OutcomeCancelled, domain.StatusCancelled},
		{"pending charge waits", flutterwave.ChargePending, OutcomePending, domain.StatusPending},
		{"unknown status waits", "weird", OutcomePending, domain.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reconcile, _, repo, _, _ := newTestReconcile()
			inv := seedPending(repo, "ref-status")

			settled, outcome, err := reconcile.HandleEvent(context.Background(), WebhookEvent{
				TxRef:  "ref-status",
				Status: tt.status,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantStatus, settled.Status)
			assert.Equal(t, tt.wantStatus, repo.mustGet(inv.ID).Status)
		})
	}
}

func TestApproveManual(t *testing.T) {
	reconcile, _, repo, _, _ := newTestReconcile()

	now := time.Now().UTC()
	inv := repo.seed(&domain.Investment{
		UserID:        "user-1",
		Plan:          domain.PlanSixMonths,
		Amount:        1000,
		PaymentMethod: domain.PaymentManual,
		ReceiptURL:    "https://bucket/receipts/slip.png",
		TxRef:         "ref-manual",
		CountdownDays: 180,
		Status:        domain.StatusPending,
		CreatedAt:     now,
	})

	approved, err := reconcile.ApproveManual(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, approved.Status)
}

func TestApproveManualRejectsGatewayInvestment(t *testing.T) {
	reconcile, _, repo, _, _ := newTestReconcile()
	inv := seedPending(repo, "ref-notmanual")

	_, err := reconcile.ApproveManual(context.Background(), inv.ID)
	assert.ErrorIs(t, err, domain.ErrNotManual)
	assert.Equal(t, domain.StatusPending, repo.mustGet(inv.ID).Status)
}

func TestApproveManualNotFound(t *testing.T) {
	reconcile, _, _, _, _ := newTestReconcile()

	_, err := reconcile.ApproveManual(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
