package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// ===============================
// EVENT INTERFACE
// ===============================

// Event represents a domain event
type Event interface {
	GetEventID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetUserID() string
	GetMetadata() map[string]interface{}
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// GetEventID returns the event ID
func (e *BaseEvent) GetEventID() string { return e.EventID }

// GetEventType returns the event type
func (e *BaseEvent) GetEventType() string { return e.EventType }

// GetTimestamp returns the event timestamp
func (e *BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// GetUserID returns the acting user's identity key, if any
func (e *BaseEvent) GetUserID() string { return e.UserID }

// GetMetadata returns the event metadata
func (e *BaseEvent) GetMetadata() map[string]interface{} { return e.Metadata }

// GenerateEventID returns a fresh event identifier.
func GenerateEventID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Sprintf("evt-%d", time.Now().UnixNano())
	}
	return id.String()
}

func newBaseEvent(eventType, userID string) BaseEvent {
	return BaseEvent{
		EventID:   GenerateEventID(),
		EventType: eventType,
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// ===============================
// EVENT BUS INTERFACE
// ===============================

// EventBus defines the event publishing and subscription interface
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	PublishAsync(ctx context.Context, event Event) error

	Subscribe(eventType string, handler EventHandler) error
	Unsubscribe(eventType string, handlerID string) error

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Stats() *EventBusStats
}

// EventHandler represents an event handler
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
	GetHandlerID() string
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc struct {
	ID   string
	Func func(ctx context.Context, event Event) error
}

// Handle implements EventHandler
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f.Func(ctx, event)
}

// GetHandlerID implements EventHandler
func (f EventHandlerFunc) GetHandlerID() string { return f.ID }

// EventBusStats represents event bus statistics
type EventBusStats struct {
	EventsPublished int64         `json:"events_published"`
	EventsProcessed int64         `json:"events_processed"`
	EventsFailed    int64         `json:"events_failed"`
	HandlersCount   int           `json:"handlers_count"`
	QueueDepth      int           `json:"queue_depth"`
	Uptime          time.Duration `json:"uptime"`
}

// ===============================
// IN-MEMORY EVENT BUS
// ===============================

// inMemoryEventBus implements EventBus using in-memory channels
type inMemoryEventBus struct {
	mu         sync.RWMutex
	handlers   map[string][]EventHandler
	eventQueue chan eventMessage
	logger     *zap.Logger
	config     *EventBusConfig

	statsMu   sync.Mutex
	stats     EventBusStats
	startTime time.Time

	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// eventMessage wraps an event with its publish context
type eventMessage struct {
	ctx   context.Context
	event Event
}

// EventBusConfig holds configuration for the event bus
type EventBusConfig struct {
	BufferSize     int           `json:"buffer_size"`
	WorkerCount    int           `json:"worker_count"`
	HandlerTimeout time.Duration `json:"handler_timeout"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() *EventBusConfig {
	return &EventBusConfig{
		BufferSize:     1000,
		WorkerCount:    5,
		HandlerTimeout: 30 * time.Second,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(config *EventBusConfig, logger *zap.Logger) EventBus {
	if config == nil {
		config = DefaultEventBusConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &inMemoryEventBus{
		handlers:   make(map[string][]EventHandler),
		eventQueue: make(chan eventMessage, config.BufferSize),
		logger:     logger,
		config:     config,
		startTime:  time.Now(),
	}
}

// Publish delivers an event to all subscribed handlers synchronously.
func (b *inMemoryEventBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	if err := b.processEvent(ctx, event); err != nil {
		b.bumpStats(func(s *EventBusStats) { s.EventsFailed++ })
		return err
	}

	b.bumpStats(func(s *EventBusStats) {
		s.EventsPublished++
		s.EventsProcessed++
	})
	return nil
}

// PublishAsync queues an event for background delivery.
func (b *inMemoryEventBus) PublishAsync(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	select {
	case b.eventQueue <- eventMessage{ctx: ctx, event: event}:
		b.bumpStats(func(s *EventBusStats) { s.EventsPublished++ })
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("event queue is full")
	}
}

// Subscribe registers a handler for an event type.
func (b *inMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.bumpStats(func(s *EventBusStats) { s.HandlersCount++ })

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", eventType),
		zap.String("handler_id", handler.GetHandlerID()),
	)
	return nil
}

// Unsubscribe removes a handler for an event type.
func (b *inMemoryEventBus) Unsubscribe(eventType string, handlerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	for i, h := range handlers {
		if h.GetHandlerID() == handlerID {
			b.handlers[eventType] = append(handlers[:i], handlers[i+1:]...)
			b.bumpStats(func(s *EventBusStats) { s.HandlersCount-- })
			return nil
		}
	}
	return fmt.Errorf("handler %q not found for event type %q", handlerID, eventType)
}

// Start launches the background delivery workers.
func (b *inMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("event bus already started")
	}

	b.runCtx, b.cancel = context.WithCancel(context.Background())
	for i := 0; i < b.config.WorkerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}
	b.started = true

	b.logger.Info("Event bus started",
		zap.Int("workers", b.config.WorkerCount),
		zap.Int("buffer_size", b.config.BufferSize),
	)
	return nil
}

// Stop drains workers and shuts the bus down.
func (b *inMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = false
	cancel := b.cancel
	b.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus shutdown timed out: %w", ctx.Err())
	}
}

// Stats returns a snapshot of bus statistics.
func (b *inMemoryEventBus) Stats() *EventBusStats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	snapshot := b.stats
	snapshot.QueueDepth = len(b.eventQueue)
	snapshot.Uptime = time.Since(b.startTime)
	return &snapshot
}

func (b *inMemoryEventBus) worker(id int) {
	defer b.wg.Done()

	for {
		select {
		case msg := <-b.eventQueue:
			if err := b.processEvent(msg.ctx, msg.event); err != nil {
				b.bumpStats(func(s *EventBusStats) { s.EventsFailed++ })
				b.logger.Error("Async event processing failed",
					zap.Int("worker", id),
					zap.String("event_type", msg.event.GetEventType()),
					zap.Error(err),
				)
				continue
			}
			b.bumpStats(func(s *EventBusStats) { s.EventsProcessed++ })
		case <-b.runCtx.Done():
			return
		}
	}
}

func (b *inMemoryEventBus) processEvent(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers[event.GetEventType()]))
	copy(handlers, b.handlers[event.GetEventType()])
	b.mu.RUnlock()

	if ctx == nil {
		ctx = context.Background()
	}

	for _, handler := range handlers {
		handlerCtx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
		err := handler.Handle(handlerCtx, event)
		cancel()

		if err != nil {
			return fmt.Errorf("handler %q failed for %q: %w",
				handler.GetHandlerID(), event.GetEventType(), err)
		}
	}
	return nil
}

func (b *inMemoryEventBus) bumpStats(fn func(*EventBusStats)) {
	b.statsMu.Lock()
	fn(&b.stats)
	b.statsMu.Unlock()
}
