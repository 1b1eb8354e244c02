// Package dispatch implements the subscription registry that routes
// inbound push envelopes to their handlers.
package dispatch

import (
	"encoding/json"
	"sync"

	"github.com/pelusa-v/pelusa-chat-client/internal/types"
)

// Handler consumes the raw data of one push envelope.
type Handler func(data json.RawMessage)

// Subscription is the handle returned by Subscribe, used to remove the
// handler again. The same handler function may be subscribed under
// several event names; each subscription is independent.
type Subscription struct {
	event   types.EventName
	handler Handler
}

type Dispatcher struct {
	mu   sync.RWMutex
	subs map[types.EventName][]*Subscription
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs: make(map[types.EventName][]*Subscription),
	}
}

// Subscribe registers a handler for an event name. Handlers for one
// name are delivered in subscription order.
func (d *Dispatcher) Subscribe(event types.EventName, h Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub := &Subscription{event: event, handler: h}
	d.subs[event] = append(d.subs[event], sub)
	return sub
}

// Unsubscribe removes a subscription. Removing one that is not
// registered is a no-op.
func (d *Dispatcher) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.subs[sub.event]
	for i, s := range list {
		if s == sub {
			d.subs[sub.event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Dispatch delivers a payload to every handler currently subscribed
// for the event, synchronously and in subscription order. A panicking
// handler is not recovered here; propagation is the caller's concern.
func (d *Dispatcher) Dispatch(event types.EventName, data json.RawMessage) {
	d.mu.RLock()
	list := make([]*Subscription, len(d.subs[event]))
	copy(list, d.subs[event])
	d.mu.RUnlock()

	for _, sub := range list {
		sub.handler(data)
	}
}
