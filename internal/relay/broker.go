package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Event kinds published by the relay client.
const (
	EventConnected      = "connected"
	EventDisconnected   = "disconnected"
	EventCodeReceived   = "code_received"
	EventDelivered      = "delivered"
	EventDeliveryFailed = "delivery_failed"
	EventUnknownCode    = "unknown_code"
	EventMalformed      = "malformed"
)

// Event is a single relay event sent via SSE. Payload is JSON.
type Event struct {
	Kind    string
	Payload string
}

// Broker fans out events to all subscribed SSE clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client. The channel is buffered; slow consumers
// will have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (c *Client) publish(kind string, payload any) {
	if c.broker == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Debug("relay event marshal failed", "kind", kind, "error", err)
		return
	}
	c.broker.Publish(Event{Kind: kind, Payload: string(data)})
}
