package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one thing that happened to a conversation, routed by Type to
// whatever is listening — the operator socket today, maybe an audit log
// or a metrics sink tomorrow.
type Event interface {
	Type() string
	Timestamp() time.Time
	Payload() any
}

// BaseEvent is the concrete Event every publisher in this package builds
// through NewEvent.
type BaseEvent struct {
	EventType      string
	EventTimestamp time.Time
	EventPayload   any
}

func (e *BaseEvent) Type() string {
	return e.EventType
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTimestamp
}

func (e *BaseEvent) Payload() any {
	return e.EventPayload
}

// NewEvent stamps payload with the current time under eventType.
func NewEvent(eventType string, payload any) *BaseEvent {
	return &BaseEvent{
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

// Handler reacts to one delivered Event.
type Handler func(ctx context.Context, event Event)

// Bus fans published events out to every handler subscribed to their type.
type Bus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType string, handler Handler)
	Unsubscribe(eventType string, handler Handler)
	Close()
}

// InMemoryBus is an in-process Bus: Publish enqueues onto a bounded
// channel, a single goroutine drains it and fans each event out to its
// handlers concurrently. Per spec.md §9, the operator event stream is
// intentionally NOT persisted here — the database already holds the
// ground truth (conversations, messages, scheduled actions), so a missed
// or dropped event under buffer pressure only delays an operator's view,
// it never loses data.
type InMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]Handler
	eventChan chan eventWrapper
	closed    bool
	logger    *zap.Logger
	wg        sync.WaitGroup
}

type eventWrapper struct {
	ctx   context.Context
	event Event
}

// NewInMemoryBus starts the dispatch loop immediately; Close must be
// called to stop it and release its goroutine.
func NewInMemoryBus(logger *zap.Logger, bufferSize int) *InMemoryBus {
	bus := &InMemoryBus{
		handlers:  make(map[string][]Handler),
		eventChan: make(chan eventWrapper, bufferSize),
		logger:    logger,
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Publish enqueues event without blocking; a full buffer drops the event
// and logs a warning rather than stalling the caller (spec.md §9 — this
// bus backs operator notifications only, never the source of truth).
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	select {
	case b.eventChan <- eventWrapper{ctx: ctx, event: event}:
		b.logger.Debug("event published",
			zap.String("type", event.Type()),
		)
	default:
		b.logger.Warn("event buffer full, dropping event",
			zap.String("type", event.Type()),
		)
	}
}

// Subscribe registers handler for every future event of eventType.
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.logger.Debug("handler subscribed",
		zap.String("event_type", eventType),
	)
}

// Unsubscribe removes the most recently registered handler for eventType.
// Go gives no way to compare two Handler values for equality, so this
// can't target a specific handler among several identical registrations —
// last-in-first-out is the safe default.
func (b *InMemoryBus) Unsubscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	if len(handlers) == 0 {
		return
	}

	newHandlers := make([]Handler, 0, len(handlers))
	removed := false
	for i := len(handlers) - 1; i >= 0; i-- {
		if !removed {
			removed = true
			continue // drop the most recently registered handler
		}
		newHandlers = append([]Handler{handlers[i]}, newHandlers...)
	}
	if !removed {
		return
	}

	if len(newHandlers) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = newHandlers
	}
}

// Close stops the dispatch loop and waits for any in-flight fan-out to
// finish before returning.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus closed")
}

func (b *InMemoryBus) dispatch() {
	defer b.wg.Done()

	for wrapper := range b.eventChan {
		b.dispatchEvent(wrapper.ctx, wrapper.event)
	}
}

// dispatchEvent runs every handler for event.Type() plus any wildcard
// ("*") handlers concurrently, isolating the bus from a handler panic.
func (b *InMemoryBus) dispatchEvent(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0)

	if h, ok := b.handlers[event.Type()]; ok {
		handlers = append(handlers, h...)
	}
	if h, ok := b.handlers["*"]; ok {
		handlers = append(handlers, h...)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("handler panicked",
						zap.String("event_type", event.Type()),
						zap.Any("panic", r),
					)
				}
			}()
			h(ctx, event)
		}(handler)
	}
	wg.Wait()
}

// Event type constants for the four operator-facing conversation events
// (spec §4.H). Subscribers filter by these exact strings.
const (
	EventMessageCreated      = "message.created"
	EventConversationUpdated = "conversation.updated"
	EventAttentionRaised     = "conversation.attention_raised"
	EventAttentionResolved   = "conversation.attention_resolved"
)

// MessageCreatedPayload accompanies EventMessageCreated.
type MessageCreatedPayload struct {
	OrganizationID string
	ConversationID string
	MessageID      string
	Sender         string
	Direction      string
	Text           string
}

// ConversationUpdatedPayload accompanies EventConversationUpdated.
type ConversationUpdatedPayload struct {
	OrganizationID string
	ConversationID string
	Stage          string
	Mode           string
	IntentLevel    string
	Sentiment      string
}

// AttentionRaisedPayload accompanies EventAttentionRaised.
type AttentionRaisedPayload struct {
	OrganizationID string
	ConversationID string
	Reason         string
}

// AttentionResolvedPayload accompanies EventAttentionResolved.
type AttentionResolvedPayload struct {
	OrganizationID string
	ConversationID string
}
