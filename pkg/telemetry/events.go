package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a change notification about a document or store.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// Type is one of the EventType constants.
	Type string `json:"type"`

	// Source names the producer, e.g. "store" or "watch".
	Source string `json:"source"`

	// Document is the file the event concerns, if any.
	Document string `json:"document,omitempty"`

	EntityType string `json:"entity_type,omitempty"`
	Entity     string `json:"entity,omitempty"`

	Message string `json:"message"`

	// Level is info, warning or error.
	Level string `json:"level"`

	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeStoreUpdated     = "store.updated"
	EventTypeDocumentLoaded   = "document.loaded"
	EventTypeDocumentSaved    = "document.saved"
	EventTypeDocumentReloaded = "document.reloaded"
	EventTypeReloadFailed     = "document.reload_failed"
	EventTypePolicyViolation  = "policy.violation"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. Synchronous publishers
// deliver before Publish returns; asynchronous ones batch events on a
// goroutine. Either way a subscriber sees events in publish order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers. It fills in ID and
// Timestamp when they are empty.
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
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if !ep.config.EnableAsync {
		ep.deliverEvent(event)
		return nil
	}

	select {
	case <-ep.ctx.Done():
		return fmt.Errorf("event publisher stopped")
	default:
	}
	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, event dropped")
	}
}

// PublishStoreUpdated publishes a store change. seq counts the updates seen
// by the caller's callback.
func (ep *EventPublisher) PublishStoreUpdated(document string, seq uint64) error {
	return ep.Publish(Event{
		Type:     EventTypeStoreUpdated,
		Source:   "store",
		Document: document,
		Message:  fmt.Sprintf("Store update %d", seq),
		Data: map[string]interface{}{
			"seq": seq,
		},
	})
}

// PublishDocumentLoaded publishes a document load.
func (ep *EventPublisher) PublishDocumentLoaded(document string, entities int) error {
	return ep.Publish(Event{
		Type:     EventTypeDocumentLoaded,
		Source:   "document",
		Document: document,
		Message:  fmt.Sprintf("Loaded %s", document),
		Data: map[string]interface{}{
			"entities": entities,
		},
	})
}

// PublishDocumentSaved publishes a document write.
func (ep *EventPublisher) PublishDocumentSaved(document string) error {
	return ep.Publish(Event{
		Type:     EventTypeDocumentSaved,
		Source:   "document",
		Document: document,
		Message:  fmt.Sprintf("Saved %s", document),
	})
}

// PublishDocumentReloaded publishes the outcome of a watcher reload.
func (ep *EventPublisher) PublishDocumentReloaded(document string, err error) error {
	if err != nil {
		return ep.Publish(Event{
			Type:     EventTypeReloadFailed,
			Source:   "watch",
			Document: document,
			Message:  fmt.Sprintf("Reload of %s failed: %v", document, err),
			Level:    EventLevelError,
		})
	}
	return ep.Publish(Event{
		Type:     EventTypeDocumentReloaded,
		Source:   "watch",
		Document: document,
		Message:  fmt.Sprintf("Reloaded %s", document),
	})
}

// PublishPolicyViolation publishes one lint finding.
func (ep *EventPublisher) PublishPolicyViolation(document, policyName, entity, severity, message string) error {
	level := EventLevelWarning
	if severity == "error" || severity == "critical" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:     EventTypePolicyViolation,
		Source:   "policy",
		Document: document,
		Entity:   entity,
		Message:  message,
		Level:    level,
		Data: map[string]interface{}{
			"policy":   policyName,
			"severity": severity,
		},
	})
}

// Subscribe adds a subscriber. A nil filter receives every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a filter applied before any subscriber sees an event.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents batches buffered events and delivers them when the batch
// is full, on every flush tick, and on shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	interval := ep.config.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all matching subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	subscribers := ep.subscribers
	ep.mu.RUnlock()

	for _, entry := range subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown delivers queued events and stops the publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
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

// FilterByDocument creates a filter that only allows events for one document.
func FilterByDocument(document string) EventFilter {
	return func(event Event) bool {
		return event.Document == document
	}
}
