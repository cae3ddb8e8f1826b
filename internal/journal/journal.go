// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrAggregateNotFound   = errors.New("aggregate not found")
	ErrInvalidVersion      = errors.New("invalid version number")
)

const defaultBatchSize = 100

// Event is a recorded domain event with its metadata.
type Event struct {
	ID            int64           `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Journal is an in-memory, append-only event log. Events are ordered by a
// global sequence ID and versioned per aggregate.
type Journal struct {
	mu       sync.Mutex
	events   []Event
	versions map[string]int
	lastID   int64

	tracer trace.Tracer
	now    func() time.Time
}

// New creates an empty journal.
func New() *Journal {
	return &Journal{
		versions: make(map[string]int),
		tracer:   otel.Tracer("libracore/journal"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AppendEvents atomically appends events with optimistic concurrency control.
func (j *Journal) AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	_, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	currentVersion := j.versions[aggregateID]
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	createdAt := j.now()
	for i, event := range events {
		j.lastID++
		event.ID = j.lastID
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		event.CreatedAt = createdAt
		j.events = append(j.events, event)

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", event.ID),
			attribute.Int("event.version", event.Version),
			attribute.String("event.type", event.EventType),
		))
	}
	j.versions[aggregateID] = expectedVersion + len(events)

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// Record marshals data and appends it as a single event at the aggregate's
// current version.
func (j *Journal) Record(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (Event, error) {
	_, span := j.tracer.Start(ctx, "journal.record",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event data: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.lastID++
	version := j.versions[aggregateID] + 1
	event := Event{
		ID:            j.lastID,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventData:     payload,
		Version:       version,
		CreatedAt:     j.now(),
	}
	j.events = append(j.events, event)
	j.versions[aggregateID] = version

	span.SetAttributes(attribute.Int64("event.id", event.ID), attribute.Int("event.version", version))
	return event, nil
}

// LoadEvents retrieves the events of an aggregate within a version range.
// A toVersion of zero or less leaves the range open.
func (j *Journal) LoadEvents(ctx context.Context, aggregateID string, fromVersion, toVersion int) ([]Event, error) {
	_, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.versions[aggregateID]; !ok {
		return nil, ErrAggregateNotFound
	}

	var events []Event
	for _, event := range j.events {
		if event.AggregateID != aggregateID || event.Version < fromVersion {
			continue
		}
		if toVersion > 0 && event.Version > toVersion {
			continue
		}
		events = append(events, event)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// GetCurrentVersion returns the latest version for an aggregate, zero when it
// has no events yet.
func (j *Journal) GetCurrentVersion(ctx context.Context, aggregateID string) int {
	_, span := j.tracer.Start(ctx, "journal.get_version",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID)),
	)
	defer span.End()

	j.mu.Lock()
	version := j.versions[aggregateID]
	j.mu.Unlock()

	span.SetAttributes(attribute.Int("current.version", version))
	return version
}

// StreamEvents provides a cursor over all events with an ID greater than fromID.
func (j *Journal) StreamEvents(ctx context.Context, fromID int64, batchSize int) []Event {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	_, span := j.tracer.Start(ctx, "journal.stream",
		trace.WithAttributes(
			attribute.Int64("from.id", fromID),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	j.mu.Lock()
	defer j.mu.Unlock()

	// IDs are dense and start at 1, so the slice index of ID n is n-1.
	start := fromID
	if start < 0 {
		start = 0
	}
	if start >= int64(len(j.events)) {
		span.SetAttributes(attribute.Int("events.streamed", 0))
		return []Event{}
	}

	end := int64(len(j.events))
	if remaining := end - start; int64(batchSize) < remaining {
		end = start + int64(batchSize)
	}
	events := make([]Event, end-start)
	copy(events, j.events[start:end])

	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events
}
