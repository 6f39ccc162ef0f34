package liveevents

import (
	"errors"
	"strings"
	"sync"
)

const (
	KindSubmitted = "registration.submitted"
	KindConfirmed = "registration.confirmed"
	KindCancelled = "registration.cancelled"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

// LiveEvent is one registration activity entry pushed to admin dashboards.
type LiveEvent struct {
	Kind             string `json:"kind"`
	RegistrationID   string `json:"registration_id"`
	EventID          string `json:"event_id"`
	ConfirmationCode string `json:"confirmation_code"`
	AttendeeName     string `json:"attendee_name"`
	Status           string `json:"status"`
	TotalAmount      int64  `json:"total_amount"`
	Currency         string `json:"currency"`
	OccurredAt       string `json:"occurred_at"`
}

// Hub fans registration events out to SSE subscribers, one stream per
// organization. Streams hold a small replay buffer so a fresh subscriber
// sees recent activity; slow subscribers drop events rather than block
// the publisher.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []LiveEvent
	subs   map[uint64]chan LiveEvent
	nextID uint64
}

type Subscription struct {
	hub   *Hub
	orgID string
	id    uint64
	ch    chan LiveEvent
	once  sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Publish delivers the event to the org's subscribers. With no live stream
// the event is dropped; the feed is ephemeral and the registration row is
// the durable record.
func (h *Hub) Publish(orgID string, event LiveEvent) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(orgID)
	if key == "" {
		return
	}
	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, event)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan LiveEvent, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribe(orgID string) (*Subscription, []LiveEvent, error) {
	if h == nil {
		return nil, nil, errors.New("hub_unavailable")
	}
	key := strings.TrimSpace(orgID)
	if key == "" {
		return nil, nil, errors.New("invalid_org_id")
	}

	stream := h.ensureStream(key)
	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan LiveEvent)
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan LiveEvent, h.subscriberBuffer)
	stream.subs[id] = ch
	buffer := append([]LiveEvent(nil), stream.buffer...)
	stream.mu.Unlock()

	return &Subscription{
		hub:   h,
		orgID: key,
		id:    id,
		ch:    ch,
	}, buffer, nil
}

func (h *Hub) ensureStream(orgID string) *stream {
	h.mu.RLock()
	current := h.streams[orgID]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[orgID]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan LiveEvent)}
		h.streams[orgID] = current
	}
	return current
}

func (h *Hub) unsubscribe(orgID string, id uint64) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(orgID)
	if key == "" {
		return
	}

	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	delete(stream.subs, id)
	remaining := len(stream.subs)
	stream.mu.Unlock()
	if remaining != 0 {
		return
	}

	h.mu.Lock()
	current := h.streams[key]
	if current != stream {
		h.mu.Unlock()
		return
	}
	stream.mu.Lock()
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, key)
	}
	h.mu.Unlock()
}

func (s *Subscription) Events() <-chan LiveEvent {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.orgID, s.id)
	})
}
