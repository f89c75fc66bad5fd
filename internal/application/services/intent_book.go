package services

import (
	"context"
	"sync"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
)

// IntentBook holds a session's current intent and its history.
// The current-intent slot admits one active intent at a time; the holder of
// the slot is the only writer of the current intent.
type IntentBook struct {
	mu      sync.RWMutex
	current *entities.Intent
	history []*entities.Intent
	closed  bool

	slot chan struct{}
	done chan struct{}
}

// NewIntentBook creates an empty book
func NewIntentBook() *IntentBook {
	return &IntentBook{
		slot: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// TryAcquire takes the slot without waiting
func (b *IntentBook) TryAcquire() error {
	if b.isClosed() {
		return nexuserr.ErrSessionClosed
	}
	select {
	case b.slot <- struct{}{}:
		return nil
	default:
		return nexuserr.ErrIntentInProgress
	}
}

// Acquire waits for the slot
func (b *IntentBook) Acquire(ctx context.Context) error {
	if b.isClosed() {
		return nexuserr.ErrSessionClosed
	}
	select {
	case b.slot <- struct{}{}:
		if b.isClosed() {
			b.release()
			return nexuserr.ErrSessionClosed
		}
		return nil
	case <-b.done:
		return nexuserr.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abandon gives the slot back when no intent was installed
func (b *IntentBook) Abandon() {
	b.mu.RLock()
	installed := b.current != nil
	b.mu.RUnlock()
	if !installed {
		b.release()
	}
}

func (b *IntentBook) release() {
	select {
	case <-b.slot:
	default:
	}
}

// Install makes intent current. The caller must hold the slot.
func (b *IntentBook) Install(intent *entities.Intent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nexuserr.ErrSessionClosed
	}
	b.current = intent.Clone()
	return nil
}

// Update applies fn to a copy of the current intent named id and commits it
// if fn succeeds. A terminal result is moved to the front of history and the
// slot is freed in the same critical section.
func (b *IntentBook) Update(id string, fn func(*entities.Intent) error) (*entities.Intent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nexuserr.ErrSessionClosed
	}
	if b.current == nil || b.current.ID != id {
		return nil, nexuserr.ErrIntentNotFound
	}

	next := b.current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	if next.Status.IsTerminal() {
		b.history = append([]*entities.Intent{next}, b.history...)
		b.current = nil
		b.release()
	} else {
		b.current = next
	}
	return next.Clone(), nil
}

// Current returns a copy of the current intent, or nil
func (b *IntentBook) Current() *entities.Intent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current.Clone()
}

// History returns copies of terminal intents, most recent first
func (b *IntentBook) History() []*entities.Intent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*entities.Intent, len(b.history))
	for i, intent := range b.history {
		out[i] = intent.Clone()
	}
	return out
}

// Lookup finds id in current or history
func (b *IntentBook) Lookup(id string) (*entities.Intent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current != nil && b.current.ID == id {
		return b.current.Clone(), true
	}
	for _, intent := range b.history {
		if intent.ID == id {
			return intent.Clone(), true
		}
	}
	return nil, false
}

// Close discards further updates and wakes waiters
func (b *IntentBook) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

func (b *IntentBook) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
