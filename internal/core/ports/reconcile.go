package ports

import (
	"context"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// TransitionRecorder persists reconciliation decisions to an audit trail.
type TransitionRecorder interface {
	Record(ctx context.Context, t domain.Transition) error
}

// TransitionPublisher announces committed reconciliation transitions.
type TransitionPublisher interface {
	Publish(ctx context.Context, t domain.Transition) error
}

// ReconcileTrigger schedules a reconciliation pass after a registry change.
// Trigger must not block.
type ReconcileTrigger interface {
	Trigger(reason string)
}

// Resetter is a cache that logout empties.
type Resetter interface {
	Reset()
}
