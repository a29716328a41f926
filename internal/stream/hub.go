// Package stream fans freshly evaluated margin metrics out to
// in-process subscribers.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/lemollon/AlphaGEX-sub013/internal/margin"
)

// AllBots subscribes a channel to every bot's metrics.
const AllBots = "*"

// HubConfig holds configuration for the metrics hub.
type HubConfig struct {
	// BufferSize is the size of the internal publish queue.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           256,
		SubscriberBufferSize: 64,
	}
}

// Hub distributes account metrics from the monitor to any number of
// subscribers (dashboard pollers, tests). Publishing is non-blocking:
// a full internal queue or a slow subscriber drops metrics rather than
// stalling the poll loop.
type Hub struct {
	config HubConfig

	mu          sync.RWMutex
	subscribers map[string][]*Subscriber
	started     bool

	metricsChan chan *margin.AccountMarginMetrics
	done        chan struct{}

	statsMu   sync.RWMutex
	received  uint64
	broadcast uint64
	dropped   uint64
}

// Subscriber is one registered channel with its delivery bookkeeping.
type Subscriber struct {
	Bot          string
	Channel      chan *margin.AccountMarginMetrics
	DroppedCount int
	CreatedAt    time.Time
}

// NewHub creates a hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig().BufferSize
	}
	if config.SubscriberBufferSize < 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:      config,
		subscribers: make(map[string][]*Subscriber),
		metricsChan: make(chan *margin.AccountMarginMetrics, config.BufferSize),
		done:        make(chan struct{}),
	}
}

// Start begins the broadcast loop. Calling Start on a running hub is a
// no-op.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go h.broadcastLoop(ctx)
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case m := <-h.metricsChan:
			h.statsMu.Lock()
			h.received++
			h.statsMu.Unlock()

			h.send(m)
		}
	}
}

// Stop stops the hub and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}

	close(h.done)
	h.started = false

	for bot, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.Channel)
		}
		delete(h.subscribers, bot)
	}
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Subscribe registers a channel receiving metrics for one bot. Pass
// AllBots to receive every bot's metrics.
func (h *Hub) Subscribe(bot string) <-chan *margin.AccountMarginMetrics {
	ch := make(chan *margin.AccountMarginMetrics, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		Bot:       bot,
		Channel:   ch,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.subscribers[bot] = append(h.subscribers[bot], sub)
	h.mu.Unlock()

	return ch
}

// SubscribeAll registers a channel receiving every bot's metrics.
func (h *Hub) SubscribeAll() <-chan *margin.AccountMarginMetrics {
	return h.Subscribe(AllBots)
}

// Unsubscribe removes a subscriber channel and closes it.
func (h *Hub) Unsubscribe(bot string, ch <-chan *margin.AccountMarginMetrics) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[bot]
	for i, sub := range subs {
		if sub.Channel == ch {
			close(sub.Channel)
			h.subscribers[bot] = append(subs[:i], subs[i+1:]...)
			break
		}
	}

	if len(h.subscribers[bot]) == 0 {
		delete(h.subscribers, bot)
	}
}

// Publish queues metrics for distribution. Non-blocking: when the
// internal queue is full the metrics are dropped and counted.
func (h *Hub) Publish(m *margin.AccountMarginMetrics) {
	if m == nil {
		return
	}
	select {
	case h.metricsChan <- m:
	default:
		h.statsMu.Lock()
		h.dropped++
		h.statsMu.Unlock()
	}
}

// send fans one metrics value out to the bot's subscribers and to the
// all-bots subscribers. Slow consumers are skipped, never waited on.
func (h *Hub) send(m *margin.AccountMarginMetrics) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers[m.BotName])+len(h.subscribers[AllBots]))
	subs = append(subs, h.subscribers[m.BotName]...)
	if m.BotName != AllBots {
		subs = append(subs, h.subscribers[AllBots]...)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.Channel <- m:
			h.statsMu.Lock()
			h.broadcast++
			h.statsMu.Unlock()
		default:
			sub.DroppedCount++
			h.statsMu.Lock()
			h.dropped++
			h.statsMu.Unlock()
		}
	}
}

// SubscriberCount returns the number of subscribers for a bot key.
func (h *Hub) SubscriberCount(bot string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[bot])
}

// TotalSubscriberCount returns the number of subscribers across all
// bot keys.
func (h *Hub) TotalSubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, subs := range h.subscribers {
		count += len(subs)
	}
	return count
}

// HubStats contains hub delivery counters.
type HubStats struct {
	Received    uint64
	Broadcast   uint64
	Dropped     uint64
	Subscribers int
	Bots        int
}

// Stats returns a snapshot of the hub's counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	bots := len(h.subscribers)
	subs := 0
	for _, s := range h.subscribers {
		subs += len(s)
	}
	h.mu.RUnlock()

	h.statsMu.RLock()
	defer h.statsMu.RUnlock()

	return HubStats{
		Received:    h.received,
		Broadcast:   h.broadcast,
		Dropped:     h.dropped,
		Subscribers: subs,
		Bots:        bots,
	}
}
