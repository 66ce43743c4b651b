// Package ops tracks long-running build and flash operations in memory.
// The tracker is a passive keyed store: the executor running an operation
// is its only writer, everyone else reads.
package ops

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cactusd/internal/model"
)

// DefaultCapacity bounds retained operations; the oldest are evicted
// first once the cap is reached.
const DefaultCapacity = 200

// Tracker is a bounded, mutex-guarded operation store.
type Tracker struct {
	mu       sync.Mutex
	ops      map[string]*model.Operation
	order    []string
	capacity int
}

func NewTracker() *Tracker {
	return NewTrackerWithCapacity(DefaultCapacity)
}

func NewTrackerWithCapacity(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		ops:      map[string]*model.Operation{},
		capacity: capacity,
	}
}

// Create registers a new pending operation and returns its identifier.
func (t *Tracker) Create(kind, deviceName string) *model.Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	op := &model.Operation{
		ID:         newToken(),
		Kind:       kind,
		DeviceName: deviceName,
		Status:     model.OpPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	for len(t.order) >= t.capacity {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.ops, oldest)
	}

	t.ops[op.ID] = op
	t.order = append(t.order, op.ID)
	return snapshot(op)
}

// Get returns a copy of one operation.
func (t *Tracker) Get(id string) (*model.Operation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[id]
	if !ok {
		return nil, fmt.Errorf("operation %q not found", id)
	}
	return snapshot(op), nil
}

// List returns copies of all retained operations, oldest first.
func (t *Tracker) List() []*model.Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*model.Operation, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, snapshot(t.ops[id]))
	}
	return out
}

// Update applies fn to one operation under the lock. The executor owning
// the operation is expected to be the only caller for a given id.
func (t *Tracker) Update(id string, fn func(op *model.Operation)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[id]
	if !ok {
		return fmt.Errorf("operation %q not found", id)
	}
	fn(op)
	op.UpdatedAt = time.Now()
	return nil
}

func snapshot(op *model.Operation) *model.Operation {
	cp := *op
	return &cp
}

// newToken is a short random operation identifier, the first block of a
// UUID.
func newToken() string {
	return strings.SplitN(uuid.New().String(), "-", 2)[0]
}
