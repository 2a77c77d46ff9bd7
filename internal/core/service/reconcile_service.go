package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/ports"
	"github.com/laundrydesk/opsync/internal/core/registry"
	"github.com/laundrydesk/opsync/internal/metrics"
)

// ReconcileOptions tunes how rejected transitions are retried.
type ReconcileOptions struct {
	// MaxFailures parks an order after this many consecutive rejections.
	// Zero never parks.
	MaxFailures int
	// BackoffBase is the delay after the first rejection; it doubles per
	// further rejection up to BackoffMax. Zero retries on the next pass.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// PassReport summarizes one reconciliation pass.
type PassReport struct {
	PassID string `json:"pass_id"`
	// Evaluated is the number of orders with at least one linked task.
	Evaluated   int                 `json:"evaluated"`
	Transitions []domain.Transition `json:"transitions"`
	Skipped     []string            `json:"skipped,omitempty"`
	Aborted     bool                `json:"aborted,omitempty"`
	// Partial is set when the pass was skipped because the Task Registry
	// holds only a subset of the tasks.
	Partial bool `json:"partial,omitempty"`
}

// Committed returns the number of transitions the backend accepted.
func (p PassReport) Committed() int {
	n := 0
	for _, t := range p.Transitions {
		if t.Phase == domain.PhaseCommitted {
			n++
		}
	}
	return n
}

// Reconciler keeps every order's status consistent with the completion of its
// linked tasks. Passes are pull-driven and serialized; each pass works on one
// snapshot of both registries.
type Reconciler struct {
	tasks     *registry.Tasks
	orders    *registry.Orders
	api       ports.OrderAPI
	recorder  ports.TransitionRecorder
	publisher ports.TransitionPublisher
	failures  *failureTracker
	now       func() time.Time
	log       zerolog.Logger

	passMu sync.Mutex
}

// NewReconciler wires a reconciliation engine. recorder and publisher may be nil.
func NewReconciler(
	tasks *registry.Tasks,
	orders *registry.Orders,
	api ports.OrderAPI,
	recorder ports.TransitionRecorder,
	publisher ports.TransitionPublisher,
	opts ReconcileOptions,
	log zerolog.Logger,
) *Reconciler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		tasks:     tasks,
		orders:    orders,
		api:       api,
		recorder:  recorder,
		publisher: publisher,
		failures:  newFailureTracker(opts.MaxFailures, opts.BackoffBase, opts.BackoffMax),
		now:       now,
		log:       log,
	}
}

// Reset forgets every remembered failure. Used on logout.
func (r *Reconciler) Reset() {
	r.failures.reset()
}

// Run executes one reconciliation pass. Backend rejections are logged and
// left for a later pass; the cache is only changed after the backend accepts.
func (r *Reconciler) Run(ctx context.Context) PassReport {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	start := time.Now()
	report := PassReport{PassID: uuid.NewString()}
	log := r.log.With().Str("pass_id", report.PassID).Logger()

	// 1. Only the full task set can decide an order's completion.
	if !r.tasks.Complete() {
		log.Debug().Msg("task registry is partial, skipping reconciliation pass")
		report.Partial = true
		return report
	}

	// 2. Snapshot both registries; later mutations belong to the next pass.
	tasks := r.tasks.Snapshot()
	orders := r.orders.Snapshot()

	// 3. Partition tasks by order; unlinked tasks are ignored.
	groups := make(map[string][]domain.Task)
	for _, t := range tasks {
		if t.Linked() {
			groups[t.OrderID] = append(groups[t.OrderID], t)
		}
	}

	// 4. Visit each order once.
	for _, o := range orders {
		linked := groups[o.ID]
		if len(linked) == 0 {
			continue
		}
		report.Evaluated++

		next, diverged := domain.DeriveOrderStatus(o.Status, linked)
		if !diverged {
			r.failures.clear(o.ID)
			continue
		}

		fp := fingerprint(o, linked)
		if ok, reason := r.failures.allow(o.ID, fp, r.now()); !ok {
			metrics.ReconcileSkippedTotal.WithLabelValues(reason).Inc()
			report.Skipped = append(report.Skipped, o.ID)
			continue
		}

		if ctx.Err() != nil {
			report.Aborted = true
			break
		}

		tr := domain.Transition{PassID: report.PassID, OrderID: o.ID, From: o.Status, To: next}

		// 5. Backend first; the cache follows only on acknowledgement.
		if err := r.api.UpdateStatus(ctx, o.ID, next); err != nil {
			if errors.Is(err, domain.ErrSessionExpired) || errors.Is(err, domain.ErrNotAuthenticated) {
				log.Warn().Err(err).Msg("session lost, aborting reconciliation pass")
				report.Aborted = true
				break
			}
			n := r.failures.fail(o.ID, fp, r.now())
			log.Warn().Err(err).
				Str("order_id", o.ID).
				Str("from", string(o.Status)).
				Str("to", string(next)).
				Int("consecutive_failures", n).
				Msg("order status update rejected")

			tr.Phase = domain.PhaseFailed
			tr.Error = err.Error()
			tr.At = r.now().UTC()
			metrics.ReconcileTransitionsTotal.WithLabelValues(string(next), "failed").Inc()
			report.Transitions = append(report.Transitions, tr)
			r.audit(ctx, log, tr)
			continue
		}

		r.failures.clear(o.ID)
		if err := r.orders.ApplyTransition(o.ID, o.Status, next); err != nil {
			// The cache moved under us; the next pass recomputes from it.
			log.Debug().Err(err).Str("order_id", o.ID).Msg("cache changed during pass")
		}

		tr.Phase = domain.PhaseCommitted
		tr.At = r.now().UTC()
		metrics.ReconcileTransitionsTotal.WithLabelValues(string(next), "committed").Inc()
		report.Transitions = append(report.Transitions, tr)

		log.Info().
			Str("order_id", o.ID).
			Str("from", string(o.Status)).
			Str("to", string(next)).
			Msg("order reconciled")

		r.audit(ctx, log, tr)
		r.publish(ctx, log, tr)
	}

	counts := r.orders.Counts()
	for _, status := range domain.OrderStatuses {
		metrics.OrdersByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	metrics.ReconcilePassesTotal.Inc()
	metrics.ReconcilePassDuration.Observe(time.Since(start).Seconds())

	return report
}

// audit writes the transition to the audit trail (non-fatal on failure).
func (r *Reconciler) audit(ctx context.Context, log zerolog.Logger, tr domain.Transition) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ctx, tr); err != nil {
		log.Warn().Err(err).Str("order_id", tr.OrderID).Msg("failed to record transition")
	}
}

func (r *Reconciler) publish(ctx context.Context, log zerolog.Logger, tr domain.Transition) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, tr); err != nil {
		log.Warn().Err(err).Str("order_id", tr.OrderID).Msg("failed to publish transition")
	}
}
