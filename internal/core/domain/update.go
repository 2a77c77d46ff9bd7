package domain

// Phase is the stage of a two-phase status update.
type Phase string

const (
	// PhasePending: the tentative value is visible locally, the backend has not answered.
	PhasePending Phase = "pending"
	// PhaseCommitted: the backend accepted the change and the cache holds it.
	PhaseCommitted Phase = "committed"
	// PhaseFailed: the backend rejected the change; the cache holds the previous value.
	PhaseFailed Phase = "failed"
)

// Update is the outcome of a status change on a task or an order.
type Update struct {
	Phase Phase  `json:"phase"`
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Err   error  `json:"-"`
}

// Pending returns an update awaiting the backend.
func Pending(id, from, to string) Update {
	return Update{Phase: PhasePending, ID: id, From: from, To: to}
}

// Commit moves u to the committed phase.
func (u Update) Commit() Update {
	u.Phase = PhaseCommitted
	u.Err = nil
	return u
}

// Fail moves u to the failed phase, keeping the cause.
func (u Update) Fail(err error) Update {
	u.Phase = PhaseFailed
	u.Err = err
	return u
}
