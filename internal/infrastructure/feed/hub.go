package feed

import (
	"sync"

	"github.com/google/uuid"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/pkg/utils"
)

// Hub fans committed changes out to subscribers. Publish never blocks on a slow subscriber:
// every subscription owns an unbounded queue drained by its own goroutine, so events reach
// each subscriber in commit order.
type Hub struct {
	mu     sync.Mutex
	seq    uint64
	subs   map[uuid.UUID]*Subscription
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]*Subscription)}
}

// Publish stamps the event with the next sequence number and queues it for every subscriber
func (h *Hub) Publish(ev *entities.CommitEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.seq++
	ev.Seq = h.seq
	for _, s := range h.subs {
		s.enqueue(ev)
	}
}

// Seq returns the sequence number of the last published event
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Subscribe registers a new subscription. It fails once the hub is closed.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, domainerrors.ErrStoreClosed
	}
	s := &Subscription{
		ID:     utils.GenerateUUIDv7(),
		hub:    h,
		notify: make(chan struct{}, 1),
		out:    make(chan *entities.CommitEvent),
		done:   make(chan struct{}),
	}
	h.subs[s.ID] = s
	go s.run()
	return s, nil
}

// Len returns the number of live subscriptions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close terminates every subscription with ErrStoreClosed
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for id, s := range h.subs {
		subs = append(subs, s)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.terminate(domainerrors.ErrStoreClosed)
	}
}

func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription receives committed changes until closed
type Subscription struct {
	ID uuid.UUID

	hub    *Hub
	mu     sync.Mutex
	queue  []*entities.CommitEvent
	notify chan struct{}
	out    chan *entities.CommitEvent
	done   chan struct{}
	once   sync.Once
	err    error
}

// Events delivers committed changes in commit order. The channel closes when the subscription ends.
func (s *Subscription) Events() <-chan *entities.CommitEvent {
	return s.out
}

// Err returns why the subscription ended. Nil after a regular Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s.ID)
	s.terminate(nil)
}

func (s *Subscription) terminate(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Subscription) enqueue(ev *entities.CommitEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.out)

	for {
		s.mu.Lock()
		var next *entities.CommitEvent
		if len(s.queue) > 0 {
			next = s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if next != nil {
			select {
			case s.out <- next:
			case <-s.done:
				return
			}
			continue
		}

		select {
		case <-s.notify:
		case <-s.done:
			return
		}
	}
}
