package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// Syncer pulls both registries from the backend and reconciles them.
type Syncer struct {
	tasks      *TaskService
	orders     *OrderService
	reconciler *Reconciler
	session    *SessionService
	log        zerolog.Logger
}

// NewSyncer wires a Syncer.
func NewSyncer(session *SessionService, tasks *TaskService, orders *OrderService, reconciler *Reconciler, log zerolog.Logger) *Syncer {
	return &Syncer{tasks: tasks, orders: orders, reconciler: reconciler, session: session, log: log}
}

// Pull fetches tasks and orders concurrently, then runs one reconciliation
// pass over the fresh registries.
func (s *Syncer) Pull(ctx context.Context) (PassReport, error) {
	if !s.session.Authenticated() {
		return PassReport{}, domain.ErrNotAuthenticated
	}

	// No shared cancellation: each registry reflects only its own read.
	var g errgroup.Group
	g.Go(func() error { return s.tasks.refresh(ctx) })
	g.Go(func() error { return s.orders.refresh(ctx) })
	if err := g.Wait(); err != nil {
		return PassReport{}, fmt.Errorf("pull: %w", err)
	}

	report := s.reconciler.Run(ctx)
	s.log.Info().
		Str("pass_id", report.PassID).
		Int("tasks", s.tasks.tasks.Len()).
		Int("orders", s.orders.orders.Len()).
		Int("committed", report.Committed()).
		Msg("pull complete")
	return report, nil
}
