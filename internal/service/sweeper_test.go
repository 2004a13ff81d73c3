package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovest/backend/internal/domain"
)

func newTestSweeper() (*MaturitySweeper, *fakeRepo) {
	lifecycle, repo, _, _ := newTestLifecycle()
	return NewMaturitySweeper(repo, lifecycle), repo
}

func seedActive(repo *fakeRepo, txRef string, maturity time.Time, countdown int) *domain.Investment {
	now := time.Now().UTC()
	return repo.seed(&domain.Investment{
		UserID:         "user-1",
		Plan:           domain.PlanSixMonths,
		Amount:         1000,
		PaymentMethod:  domain.PaymentGateway,
		TxRef:          txRef,
		StartDate:      maturity.AddDate(0, 0, -180),
		MaturityDate:   maturity,
		ExpectedReturn: 1250,
		CountdownDays:  countdown,
		Status:         domain.StatusActive,
		CreatedAt:      now,
	})
}

func TestSweepMaturesDueInvestments(t *testing.T) {
	sweeper, repo := newTestSweeper()
	now := time.Now().UTC()

	due := seedActive(repo, "ref-due", now.Add(-time.Hour), 0)
	notDue := seedActive(repo, "ref-later", now.Add(100*24*time.Hour), 100)

	matured, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, matured)

	assert.Equal(t, domain.StatusMatured, repo.mustGet(due.ID).Status)
	assert.Equal(t, 0, repo.mustGet(due.ID).CountdownDays)
	assert.Equal(t, domain.StatusActive, repo.mustGet(notDue.ID).Status)
}

func TestSweepMaturesExactBoundary(t *testing.T) {
	sweeper, repo := newTestSweeper()

	// A maturity date in the immediate past counts as due; the boundary
	// itself is inclusive.
	inv := seedActive(repo, "ref-edge", time.Now().UTC().Add(-time.Millisecond), 0)

	matured, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, matured)
	assert.Equal(t, domain.StatusMatured, repo.mustGet(inv.ID).Status)
}

func TestSweepRefreshesCountdown(t *testing.T) {
	sweeper, repo := newTestSweeper()
	now := time.Now().UTC()

	// Stored countdown is stale by 20 days.
	inv := seedActive(repo, "ref-drift", now.Add(80*24*time.Hour), 100)

	_, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 80, repo.mustGet(inv.ID).CountdownDays)
	assert.Equal(t, domain.StatusActive, repo.mustGet(inv.ID).Status)
}

func TestSweepCountdownLosesRaceToTransition(t *testing.T) {
	lifecycle, repo, _, _ := newTestLifecycle()
	sweeper := NewMaturitySweeper(repo, lifecycle)
	now := time.Now().UTC()

	// The worker operates on the snapshot the pass listed. If an admin
	// matures the record in between, the stale countdown write must not
	// land on the now-terminal record.
	inv := seedActive(repo, "ref-race", now.Add(80*24*time.Hour), 100)
	stale := repo.mustGet(inv.ID)

	require.NoError(t, lifecycle.Mature(context.Background(), inv.ID))
	require.Equal(t, 0, repo.mustGet(inv.ID).CountdownDays)

	sweeper.sweepOne(context.Background(), stale, now)

	assert.Equal(t, domain.StatusMatured, repo.mustGet(inv.ID).Status)
	assert.Equal(t, 0, repo.mustGet(inv.ID).CountdownDays)
}

func TestSweepIdempotent(t *testing.T) {
	sweeper, repo := newTestSweeper()
	now := time.Now().UTC()

	inv := seedActive(repo, "ref-twice", now.Add(-time.Hour), 0)

	matured, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, matured)

	// A second pass finds nothing Active and changes nothing.
	matured, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, matured)
	assert.Equal(t, domain.StatusMatured, repo.mustGet(inv.ID).Status)
}

func TestSweepStoreOutageIsNoOp(t *testing.T) {
	sweeper, repo := newTestSweeper()
	repo.failList = true

	matured, err := sweeper.Sweep(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, matured)
}

func TestSweepIgnoresPendingAndTerminal(t *testing.T) {
	sweeper, repo := newTestSweeper()
	now := time.Now().UTC()

	pending := repo.seed(&domain.Investment{
		UserID:        "user-1",
		Plan:          domain.PlanSixMonths,
		PaymentMethod: domain.PaymentManual,
		TxRef:         "ref-pend",
		MaturityDate:  now.Add(-time.Hour),
		Status:        domain.StatusPending,
	})
	rejected := repo.seed(&domain.Investment{
		UserID:        "user-1",
		Plan:          domain.PlanSixMonths,
		PaymentMethod: domain.PaymentGateway,
		TxRef:         "ref-rej",
		MaturityDate:  now.Add(-time.Hour),
		Status:        domain.StatusRejected,
	})

	matured, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, matured)
	assert.Equal(t, domain.StatusPending, repo.mustGet(pending.ID).Status)
	assert.Equal(t, domain.StatusRejected, repo.mustGet(rejected.ID).Status)
}

func TestSweeperRunUsesOwnDeadline(t *testing.T) {
	sweeper, repo := newTestSweeper()
	seedActive(repo, "ref-run", time.Now().UTC().Add(-time.Hour), 0)

	require.NoError(t, sweeper.Run())
	assert.Equal(t, domain.StatusMatured, repo.mustGet("inv-1").Status)
}
