// Package wager owns the wager lifecycle: the state machine guarding legal
// transitions and the manager driving submissions, cancellations, and venue
// status updates.
package wager

import (
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

var (
	ErrDuplicateWager    = errors.New("wager already exists")
	ErrUnknownWager      = errors.New("wager not found")
	ErrInvalidTransition = errors.New("invalid wager state transition")
)

// StateMachine tracks every wager the process has created and enforces the
// lifecycle graph:
//
//	Proposed -> Validated -> Submitted -> {Accepted, Rejected}
//	Accepted -> {PartiallyMatched, Matched, Cancelled, Expired}
type StateMachine struct {
	mu     sync.Mutex
	wagers map[string]*schema.Wager
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{wagers: make(map[string]*schema.Wager)}
}

// Add registers a new wager keyed by its id.
func (m *StateMachine) Add(w schema.Wager) error {
	if w.ID == "" {
		return ErrUnknownWager
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wagers[w.ID]; ok {
		return errors.Wrap(ErrDuplicateWager, "add").With("wager", w.ID)
	}
	cp := w
	m.wagers[w.ID] = &cp
	return nil
}

// Get returns a copy of the wager's current state.
func (m *StateMachine) Get(id string) (schema.Wager, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return schema.Wager{}, false
	}
	return *w, true
}

// Transition moves a wager to the next state, applying the mutation fn (may
// be nil) under the same lock. Returns the post-transition copy.
func (m *StateMachine) Transition(id string, next schema.WagerState, fn func(*schema.Wager)) (schema.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return schema.Wager{}, errors.Wrap(ErrUnknownWager, "transition").With("wager", id)
	}
	if !allowed(w.State, next) {
		return *w, errors.Wrap(ErrInvalidTransition, "transition").
			With("wager", id).
			With("from", w.State.String()).
			With("to", next.String())
	}
	w.State = next
	w.UpdatedAt = time.Now().UTC().UnixNano()
	if fn != nil {
		fn(w)
	}
	return *w, nil
}

// Update applies the mutation fn without changing state. Used for matched
// stake accounting on repeat partial-match updates.
func (m *StateMachine) Update(id string, fn func(*schema.Wager)) (schema.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return schema.Wager{}, errors.Wrap(ErrUnknownWager, "update").With("wager", id)
	}
	fn(w)
	w.UpdatedAt = time.Now().UTC().UnixNano()
	return *w, nil
}

// Open returns all non-terminal wagers, sorted by creation time.
func (m *StateMachine) Open() []schema.Wager {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schema.Wager, 0, len(m.wagers))
	for _, w := range m.wagers {
		if !w.State.Terminal() {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// Restore seeds the machine with wagers recovered from a snapshot.
func (m *StateMachine) Restore(wagers []schema.Wager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wagers = make(map[string]*schema.Wager, len(wagers))
	for _, w := range wagers {
		cp := w
		m.wagers[w.ID] = &cp
	}
}

// Prune removes terminal wagers older than the cutoff, returning the number
// removed.
func (m *StateMachine) Prune(cutoff int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, w := range m.wagers {
		if w.State.Terminal() && w.UpdatedAt < cutoff {
			delete(m.wagers, id)
			removed++
		}
	}
	return removed
}

func allowed(from, to schema.WagerState) bool {
	switch from {
	case schema.WagerStateProposed:
		return to == schema.WagerStateValidated || to == schema.WagerStateRejected
	case schema.WagerStateValidated:
		return to == schema.WagerStateSubmitted || to == schema.WagerStateRejected
	case schema.WagerStateSubmitted:
		return to == schema.WagerStateAccepted ||
			to == schema.WagerStateRejected ||
			to == schema.WagerStateCancelled
	case schema.WagerStateAccepted, schema.WagerStatePartiallyMatched:
		return to == schema.WagerStatePartiallyMatched ||
			to == schema.WagerStateMatched ||
			to == schema.WagerStateCancelled ||
			to == schema.WagerStateExpired
	default:
		return false
	}
}
