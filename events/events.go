package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypePlanCreated        EventType = "plan_created"
	EventTypePaymentPaid        EventType = "payment_paid"
	EventTypePaymentHoldChanged EventType = "payment_hold_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// PlanCreatedEvent fires after a plan and its full payment schedule are committed
type PlanCreatedEvent struct {
	PlanID         uuid.UUID
	PatientID      uuid.UUID
	PrincipalCents int64
	TermMonths     int
}

func (e PlanCreatedEvent) Type() EventType {
	return EventTypePlanCreated
}

// PaymentPaidEvent fires when a scheduled payment transitions to PAID
type PaymentPaidEvent struct {
	PaymentID    uuid.UUID
	PlanID       uuid.UUID
	AmountCents  int64
	LateFeeCents int64
	PaidAt       time.Time
}

func (e PaymentPaidEvent) Type() EventType {
	return EventTypePaymentPaid
}

// PaymentHoldChangedEvent fires when a payment is placed on or released from hold
type PaymentHoldChangedEvent struct {
	PaymentID uuid.UUID
	PlanID    uuid.UUID
	OnHold    bool
}

func (e PaymentHoldChangedEvent) Type() EventType {
	return EventTypePaymentHoldChanged
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events raised during a unit of work and only hands
// them to the real bus once the transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits all pending events; called after a successful commit. Events are
// emitted on a background context so they outlive the transaction's context.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events to main event bus")

	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events; called after rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
