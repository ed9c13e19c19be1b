package session

import (
	"github.com/example/dm-chat-server/events"
	"github.com/go-monolith/mono"
)

// EventPublisher emits the internal chat events.
type EventPublisher interface {
	MessageSent(evt events.MessageSentEvent) error
	NotificationRequested(evt events.NotificationRequestedEvent) error
}

// BusPublisher publishes on the mono event bus.
type BusPublisher struct {
	bus mono.EventBus
}

var _ EventPublisher = (*BusPublisher)(nil)

// NewBusPublisher creates a BusPublisher.
func NewBusPublisher(bus mono.EventBus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

// MessageSent publishes chat.MessageSent.v1.
func (p *BusPublisher) MessageSent(evt events.MessageSentEvent) error {
	return events.MessageSentV1.Publish(p.bus, evt, nil)
}

// NotificationRequested publishes chat.NotificationRequested.v1.
func (p *BusPublisher) NotificationRequested(evt events.NotificationRequestedEvent) error {
	return events.NotificationRequestedV1.Publish(p.bus, evt, nil)
}
