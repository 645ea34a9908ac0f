package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event (created, updated, deleted)
type EventType string

const (
	EventTypeCreated EventType = "created"
	EventTypeUpdated EventType = "updated"
	EventTypeDeleted EventType = "deleted"
	// EventTypeSnapshot carries the full state of a month, sent when a client subscribes
	EventTypeSnapshot EventType = "snapshot"
	EventTypeError    EventType = "error"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeBudget       EntityType = "budget"
	EntityTypeSubscription EntityType = "subscription"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "budget.created"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "budget"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// BudgetCreated creates a budget.created event
func BudgetCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeBudget, payload)
}

// BudgetUpdated creates a budget.updated event
func BudgetUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeBudget, payload)
}

// BudgetDeleted creates a budget.deleted event
func BudgetDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeBudget, payload)
}

// BudgetSnapshot creates a budget.snapshot event
func BudgetSnapshot(payload interface{}) Event {
	return NewEvent(EventTypeSnapshot, EntityTypeBudget, payload)
}

// SubscriptionPayload reports the topic a client is now subscribed to
type SubscriptionPayload struct {
	Topic string `json:"topic"`
}

// SubscriptionUpdated acknowledges a subscribe or unsubscribe command
func SubscriptionUpdated(topic string) Event {
	return NewEvent(EventTypeUpdated, EntityTypeSubscription, SubscriptionPayload{Topic: topic})
}

// ErrorPayload describes a rejected client command
type ErrorPayload struct {
	Message string `json:"message"`
}

// SubscriptionError reports a command the client sent that could not be applied
func SubscriptionError(message string) Event {
	return NewEvent(EventTypeError, EntityTypeSubscription, ErrorPayload{Message: message})
}
