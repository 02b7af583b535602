package chain

import (
	"errors"
	"sync"
)

var errNilComponent = errors.New("journal: component must not be nil")

// Journaled is implemented by every stateful component that participates in a
// transaction. Snapshot must return a deep copy that Restore can reinstate.
type Journaled interface {
	Snapshot() any
	Restore(snapshot any)
}

// Journal groups the components touched by a transaction. Transact executes a
// call and reinstates every registered component when the call fails, giving
// each operation all-or-nothing semantics.
type Journal struct {
	mu         sync.Mutex
	components []Journaled
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Register adds components to the journal. Registration order is the restore
// order.
func (j *Journal) Register(components ...Journaled) error {
	for _, c := range components {
		if c == nil {
			return errNilComponent
		}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.components = append(j.components, components...)
	return nil
}

// Transact runs fn. Calls are serialised; no two transactions overlap.
func (j *Journal) Transact(fn func() error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	snapshots := make([]any, len(j.components))
	for i, c := range j.components {
		snapshots[i] = c.Snapshot()
	}
	if err := fn(); err != nil {
		for i, c := range j.components {
			c.Restore(snapshots[i])
		}
		return err
	}
	return nil
}

// View runs fn under the journal lock without snapshotting.
func (j *Journal) View(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn()
}
