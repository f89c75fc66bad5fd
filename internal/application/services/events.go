package services

import (
	"sync"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
)

// EventHandler receives progress events for a single operation, in order
type EventHandler func(entities.NexusEvent)

// EventLog collects the events of one operation
type EventLog struct {
	mu     sync.Mutex
	events []entities.NexusEvent
}

// Handler returns an EventHandler that appends to the log
func (l *EventLog) Handler() EventHandler {
	return func(event entities.NexusEvent) {
		l.mu.Lock()
		l.events = append(l.events, event)
		l.mu.Unlock()
	}
}

// Events returns the recorded events
func (l *EventLog) Events() []entities.NexusEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entities.NexusEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Names returns the recorded event names
func (l *EventLog) Names() []string {
	events := l.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

// subscribers fans session events out to observers. Slow observers drop events.
type subscribers struct {
	mu     sync.Mutex
	next   int
	chans  map[int]chan entities.NexusEvent
	closed bool
}

func newSubscribers() *subscribers {
	return &subscribers{chans: make(map[int]chan entities.NexusEvent)}
}

func (s *subscribers) add(buffer int) (<-chan entities.NexusEvent, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan entities.NexusEvent, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.next
	s.next++
	s.chans[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.chans[id]; ok {
				delete(s.chans, id)
				close(c)
			}
		})
	}
}

func (s *subscribers) publish(event entities.NexusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.chans {
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *subscribers) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.chans {
		delete(s.chans, id)
		close(ch)
	}
}
