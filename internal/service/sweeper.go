package service

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/agrovest/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// sweepWorkers bounds concurrent record updates during a pass.
const sweepWorkers = 8

// MaturitySweeper keeps countdown and status consistent with wall-clock
// time for Active investments. One pass recomputes every Active record's
// countdown and matures anything past its maturity date. Passes are
// idempotent; a failed record is logged and skipped, never fatal to the
// batch.
type MaturitySweeper struct {
	repo      domain.InvestmentRepository
	lifecycle *LifecycleService
}

// NewMaturitySweeper creates a new MaturitySweeper
func NewMaturitySweeper(repo domain.InvestmentRepository, lifecycle *LifecycleService) *MaturitySweeper {
	return &MaturitySweeper{
		repo:      repo,
		lifecycle: lifecycle,
	}
}

// Name identifies the sweeper to the scheduler
func (s *MaturitySweeper) Name() string { return "maturity-sweep" }

// Run executes one pass with its own deadline; scheduler entry point.
func (s *MaturitySweeper) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	_, err := s.Sweep(ctx)
	return err
}

// Sweep executes one maturity pass and reports how many investments it
// matured. A store outage degrades the whole pass to a no-op; the next
// scheduled pass retries.
func (s *MaturitySweeper) Sweep(ctx context.Context) (int, error) {
	active, err := s.repo.ListByStatus(ctx, domain.StatusActive)
	if err != nil {
		log.Printf("[Sweeper] Cannot list active investments, skipping pass: %v", err)
		return 0, err
	}

	now := time.Now().UTC()

	var matured atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(sweepWorkers)
	for _, inv := range active {
		g.Go(func() error {
			if s.sweepOne(ctx, inv, now) {
				matured.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("[Sweeper] Pass complete: %d active checked, %d matured", len(active), matured.Load())
	return int(matured.Load()), nil
}

// sweepOne reports whether it matured the record.
func (s *MaturitySweeper) sweepOne(ctx context.Context, inv *domain.Investment, now time.Time) bool {
	if inv.Due(now) {
		err := s.lifecycle.Mature(ctx, inv.ID)
		var illegal *domain.IllegalTransitionError
		if err != nil && !errors.As(err, &illegal) {
			log.Printf("[Sweeper] Failed to mature investment %s: %v", inv.ID, err)
			return false
		}
		return err == nil
	}

	daysLeft := domain.CountdownAt(inv.MaturityDate, now)
	if daysLeft == inv.CountdownDays {
		return false
	}
	// Conditioned on the record still being Active: a concurrent transition
	// between the listing and this write must win, or a terminal record
	// would end up with a non-zero countdown.
	applied, err := s.repo.UpdateIf(ctx, inv.ID, domain.StatusActive, map[string]interface{}{
		"countdown_days": daysLeft,
	})
	if err != nil {
		log.Printf("[Sweeper] Failed to update countdown for investment %s: %v", inv.ID, err)
	} else if !applied {
		log.Printf("[Sweeper] Skipped countdown for investment %s: no longer active", inv.ID)
	}
	return false
}
