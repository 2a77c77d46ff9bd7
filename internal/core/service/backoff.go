package service

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

const (
	skipBackoff = "backoff"
	skipParked  = "parked"
)

type failureState struct {
	count       int
	retryAt     time.Time
	fingerprint string
}

// failureTracker remembers consecutive backend rejections per order so a
// permanent rejection does not cost a backend call on every pass. An order is
// retried after an exponential delay, and parked after maxFailures until its
// inputs change (its own status or any linked task).
type failureTracker struct {
	mu          sync.Mutex
	maxFailures int
	base        time.Duration
	maxDelay    time.Duration
	byOrder     map[string]*failureState
}

func newFailureTracker(maxFailures int, base, maxDelay time.Duration) *failureTracker {
	if maxDelay < base {
		maxDelay = base
	}
	return &failureTracker{
		maxFailures: maxFailures,
		base:        base,
		maxDelay:    maxDelay,
		byOrder:     make(map[string]*failureState),
	}
}

// allow reports whether order id may be attempted now. When it may not, the
// second value names the reason.
func (f *failureTracker) allow(id, fingerprint string, now time.Time) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.byOrder[id]
	if !ok {
		return true, ""
	}
	if st.fingerprint != fingerprint {
		delete(f.byOrder, id)
		return true, ""
	}
	if f.maxFailures > 0 && st.count >= f.maxFailures {
		return false, skipParked
	}
	if now.Before(st.retryAt) {
		return false, skipBackoff
	}
	return true, ""
}

func (f *failureTracker) fail(id, fingerprint string, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.byOrder[id]
	if !ok || st.fingerprint != fingerprint {
		st = &failureState{fingerprint: fingerprint}
		f.byOrder[id] = st
	}
	st.count++
	st.retryAt = now.Add(f.delay(st.count))
	return st.count
}

func (f *failureTracker) clear(id string) {
	f.mu.Lock()
	delete(f.byOrder, id)
	f.mu.Unlock()
}

func (f *failureTracker) reset() {
	f.mu.Lock()
	f.byOrder = make(map[string]*failureState)
	f.mu.Unlock()
}

func (f *failureTracker) delay(count int) time.Duration {
	if f.base <= 0 || count <= 0 {
		return 0
	}
	d := f.base
	for i := 1; i < count; i++ {
		d *= 2
		if d >= f.maxDelay {
			return f.maxDelay
		}
	}
	return d
}

// fingerprint identifies the inputs a reconciliation decision was made from.
func fingerprint(o domain.Order, linked []domain.Task) string {
	parts := make([]string, 0, len(linked))
	for _, t := range linked {
		parts = append(parts, t.ID+"="+string(t.Status))
	}
	sort.Strings(parts)

	var b strings.Builder
	b.WriteString(string(o.Status))
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(p)
	}
	return b.String()
}
