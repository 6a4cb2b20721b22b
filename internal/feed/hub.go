package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

const DefaultSubscriberBuffer = 64

// Hub is an in-process feed. Publishing never blocks: a subscriber whose
// buffer is full misses the event and is marked overflowed.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	subs   map[uint64]*hubSubscription
	nextID uint64
}

type hubSubscription struct {
	hub      *Hub
	topic    string
	id       uint64
	ch       chan Event
	overflow atomic.Bool
	once     sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// WithSubscriberBuffer sets the per-subscriber channel size for new
// subscriptions.
func (h *Hub) WithSubscriberBuffer(n int) *Hub {
	if n > 0 {
		h.subscriberBuffer = n
	}
	return h
}

func (h *Hub) Publish(_ context.Context, ev Event) error {
	if h == nil {
		return errors.New("hub unavailable")
	}
	topic := Topic(ev.Table, ev.ProjectID)
	h.mu.RLock()
	st := h.streams[topic]
	h.mu.RUnlock()
	if st == nil {
		return nil
	}

	// Send under the lock so Close cannot close a channel mid-send.
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range st.subs {
		select {
		case s.ch <- ev:
		default:
			s.overflow.Store(true)
		}
	}
	return nil
}

func (h *Hub) Subscribe(_ context.Context, table, projectID string) (Subscription, error) {
	if h == nil {
		return nil, errors.New("hub unavailable")
	}
	if strings.TrimSpace(table) == "" || strings.TrimSpace(projectID) == "" {
		return nil, errors.New("table and project are required")
	}
	topic := Topic(table, projectID)

	// h.mu is held across lookup and insert so a concurrent Close of the
	// last subscriber cannot drop the stream in between.
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.streams[topic]
	if st == nil {
		st = &stream{subs: make(map[uint64]*hubSubscription)}
		h.streams[topic] = st
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextID
	st.nextID++
	sub := &hubSubscription{
		hub:   h,
		topic: topic,
		id:    id,
		ch:    make(chan Event, h.subscriberBuffer),
	}
	st.subs[id] = sub
	return sub, nil
}

func (h *Hub) unsubscribe(topic string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.streams[topic]
	if st == nil {
		return
	}
	st.mu.Lock()
	delete(st.subs, id)
	empty := len(st.subs) == 0
	st.mu.Unlock()
	if empty {
		delete(h.streams, topic)
	}
}

// subscriberCount is used by tests.
func (h *Hub) subscriberCount(table, projectID string) int {
	h.mu.RLock()
	st := h.streams[Topic(table, projectID)]
	h.mu.RUnlock()
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.subs)
}

func (s *hubSubscription) Events() <-chan Event { return s.ch }

func (s *hubSubscription) Overflowed() bool { return s.overflow.Swap(false) }

// Close unsubscribes. The channel is closed after removal so no publisher
// can send on it afterwards.
func (s *hubSubscription) Close() error {
	s.once.Do(func() {
		s.hub.unsubscribe(s.topic, s.id)
		close(s.ch)
	})
	return nil
}
