package realtime

import (
	"log/slog"
	"sync"
)

// Subscriber receives published events. Deliver must not block; slow
// subscribers report false and are detached from the channel, then
// closed so the peer does not linger on a connection that will never
// deliver another event.
type Subscriber interface {
	Deliver(event Event) bool
	Close()
}

// Hub routes events to subscribers by channel name. All methods are
// safe for concurrent use.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[Subscriber]struct{}
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[Subscriber]struct{}),
		logger:   logger,
	}
}

// Subscribe attaches a subscriber to a channel, creating the channel if
// it does not exist yet.
func (h *Hub) Subscribe(channel string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	connectionsGauge.Inc()
}

// Unsubscribe detaches a subscriber from a channel. Empty channels are
// removed so the registry does not grow unbounded.
func (h *Hub) Unsubscribe(channel string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(channel, sub)
}

func (h *Hub) removeLocked(channel string, sub Subscriber) {
	subs, ok := h.channels[channel]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
	connectionsGauge.Dec()
}

// Publish delivers an event to every subscriber on the channel. The
// subscriber set is copied under a read lock so delivery never holds
// the registry lock; subscribers that cannot keep up are dropped.
func (h *Hub) Publish(channel string, event Event) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.channels[channel]))
	for sub := range h.channels[channel] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	var slow []Subscriber
	for _, sub := range subs {
		if !sub.Deliver(event) {
			slow = append(slow, sub)
		}
	}
	publishedEvents.WithLabelValues(event.Type).Add(float64(len(subs) - len(slow)))

	if len(slow) > 0 {
		h.mu.Lock()
		for _, sub := range slow {
			h.removeLocked(channel, sub)
		}
		h.mu.Unlock()
		for _, sub := range slow {
			sub.Close()
		}
		slowSubscribersDropped.Add(float64(len(slow)))
		h.logger.Warn("dropped slow subscribers", "channel", channel, "count", len(slow))
	}
}

// SubscriberCount reports the number of subscribers on a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
