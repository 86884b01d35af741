package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a lifecycle event of a query or a model.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// QueryID is the associated query ID, if applicable.
	QueryID string `json:"query_id,omitempty"`

	// Model is the associated model name, if applicable.
	Model string `json:"model,omitempty"`

	// Node is the label of the queried node, if applicable.
	Node string `json:"node,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants.
const (
	EventTypeQueryStarted   = "query.started"
	EventTypeQueryCompleted = "query.completed"
	EventTypeQueryFailed    = "query.failed"
	EventTypeModelLoaded    = "model.loaded"
	EventTypeModelReloaded  = "model.reloaded"
	EventTypeError          = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher delivers events synchronously to its subscribers, in
// subscription order, on the publishing goroutine.
type EventPublisher struct {
	config      EventsConfig
	subscribers []subscriberEntry
	filters     []EventFilter
	stopped     bool
	mu          sync.RWMutex
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	return &EventPublisher{config: cfg}, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	defer ep.mu.RUnlock()

	if ep.stopped {
		return fmt.Errorf("event publisher stopped")
	}
	for _, filter := range ep.filters {
		if !filter(event) {
			return nil
		}
	}
	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
	return nil
}

// PublishQueryStarted publishes a query started event.
func (ep *EventPublisher) PublishQueryStarted(queryID, kind, node string) error {
	return ep.Publish(Event{
		Type:    EventTypeQueryStarted,
		Source:  "engine",
		QueryID: queryID,
		Node:    node,
		Message: fmt.Sprintf("Query %s (%s) started on %s", queryID, kind, node),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"kind": kind,
		},
	})
}

// PublishQueryCompleted publishes a query completed event.
func (ep *EventPublisher) PublishQueryCompleted(queryID, kind, node string, paths int64, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeQueryCompleted,
		Source:  "engine",
		QueryID: queryID,
		Node:    node,
		Message: fmt.Sprintf("Query %s (%s) completed on %s", queryID, kind, node),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"kind":     kind,
			"paths":    paths,
			"duration": duration.Seconds(),
		},
	})
}

// PublishQueryFailed publishes a query failed event.
func (ep *EventPublisher) PublishQueryFailed(queryID, kind, node, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeQueryFailed,
		Source:  "engine",
		QueryID: queryID,
		Node:    node,
		Message: fmt.Sprintf("Query %s (%s) failed on %s: %s", queryID, kind, node, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"kind":   kind,
			"reason": reason,
		},
	})
}

// PublishModelLoaded publishes a model loaded event. A reload is reported
// with its own event type.
func (ep *EventPublisher) PublishModelLoaded(model, path string, reload bool) error {
	typ, verb := EventTypeModelLoaded, "loaded"
	if reload {
		typ, verb = EventTypeModelReloaded, "reloaded"
	}
	return ep.Publish(Event{
		Type:    typ,
		Source:  "config",
		Model:   model,
		Message: fmt.Sprintf("Model %s %s from %s", model, verb, path),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// Shutdown stops the publisher; later events are rejected.
func (ep *EventPublisher) Shutdown(context.Context) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.stopped = true
	return nil
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByQueryID creates a filter that only allows events for one query.
func FilterByQueryID(queryID string) EventFilter {
	return func(event Event) bool {
		return event.QueryID == queryID
	}
}
