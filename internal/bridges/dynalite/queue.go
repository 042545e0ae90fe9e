package dynalite

import (
	"fmt"
	"sync"
)

// AddEntitiesFunc is the host callback that adopts a batch of entities of
// one category.
type AddEntitiesFunc func(entities []Entity)

// RegistrationQueue holds entities until the host has supplied the
// add-entities callback for their category.
//
// Each entity is delivered exactly once, in discovery order. Callbacks are
// invoked without the queue's state lock held but are serialized with each
// other; a callback must not register callbacks on the same queue.
type RegistrationQueue struct {
	deliverMu sync.Mutex // serializes deliveries so a flush is never overtaken

	mu        sync.Mutex
	callbacks map[Category]AddEntitiesFunc
	pending   map[Category][]Entity
	gen       uint64 // bumped by Reset
}

// NewRegistrationQueue returns an empty queue.
func NewRegistrationQueue() *RegistrationQueue {
	return &RegistrationQueue{
		callbacks: make(map[Category]AddEntitiesFunc),
		pending:   make(map[Category][]Entity),
	}
}

// RegisterAddEntities records fn for category and flushes anything queued
// for it. Registering again replaces the callback without re-delivering.
func (q *RegistrationQueue) RegisterAddEntities(category Category, fn AddEntitiesFunc) error {
	if !category.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if fn == nil {
		return ErrNilCallback
	}

	q.deliverMu.Lock()
	defer q.deliverMu.Unlock()

	q.mu.Lock()
	q.callbacks[category] = fn
	batch := q.pending[category]
	delete(q.pending, category)
	q.mu.Unlock()

	if len(batch) > 0 {
		fn(batch)
	}
	return nil
}

// AddEntityWhenRegistered hands e to the host now if a callback exists for
// category, otherwise queues it. It reports whether e was delivered.
func (q *RegistrationQueue) AddEntityWhenRegistered(category Category, e Entity) (bool, error) {
	return q.add(category, e, nil)
}

// AddEntityForGeneration is AddEntityWhenRegistered for an entity
// discovered while the queue was at generation gen. It fails with
// ErrQueueReset, without queueing e, if Reset has run since.
func (q *RegistrationQueue) AddEntityForGeneration(gen uint64, category Category, e Entity) (bool, error) {
	return q.add(category, e, &gen)
}

// Generation returns a counter that changes every time Reset runs.
func (q *RegistrationQueue) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gen
}

func (q *RegistrationQueue) add(category Category, e Entity, gen *uint64) (bool, error) {
	if !category.valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	q.deliverMu.Lock()
	defer q.deliverMu.Unlock()

	q.mu.Lock()
	if gen != nil && *gen != q.gen {
		q.mu.Unlock()
		return false, ErrQueueReset
	}
	fn := q.callbacks[category]
	if fn == nil {
		q.pending[category] = append(q.pending[category], e)
		q.mu.Unlock()
		return false, nil
	}
	q.mu.Unlock()

	fn([]Entity{e})
	return true, nil
}

// Registered reports whether a callback exists for category.
func (q *RegistrationQueue) Registered(category Category) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.callbacks[category] != nil
}

// Pending returns how many entities are waiting for category.
func (q *RegistrationQueue) Pending(category Category) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[category])
}

// Reset drops all callbacks and pending entities and starts a new
// generation.
func (q *RegistrationQueue) Reset() {
	q.deliverMu.Lock()
	defer q.deliverMu.Unlock()

	q.mu.Lock()
	q.callbacks = make(map[Category]AddEntitiesFunc)
	q.pending = make(map[Category][]Entity)
	q.gen++
	q.mu.Unlock()
}
