package provisioning

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/go-logr/logr"
)

// Logger is the printf-style subset of Observer.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer receives structured events from fleet operations.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured event of a fleet operation.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "compute", "deploy")
	Message   string            // Human-readable message
	Resource  string            // Resource name/ID if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
	Err       error             // Cause of a failure event
}

// EventType represents the type of event.
type EventType string

const (
	// EventPhaseStarted indicates a phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventResourceCreating indicates a resource is being created.
	EventResourceCreating EventType = "resource.creating"
	// EventResourceCreated indicates a resource was created successfully.
	EventResourceCreated EventType = "resource.created"
	// EventResourceFailed indicates an operation on a resource failed.
	EventResourceFailed EventType = "resource.failed"
	// EventResourceDeleting indicates a resource is being deleted.
	EventResourceDeleting EventType = "resource.deleting"
	// EventResourceDeleted indicates a resource was deleted successfully.
	EventResourceDeleted EventType = "resource.deleted"

	// EventValidationWarning indicates a validation warning.
	EventValidationWarning EventType = "validation.warning"
	// EventValidationError indicates a validation error.
	EventValidationError EventType = "validation.error"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// LogrObserver implements Observer on a logr.Logger.
type LogrObserver struct {
	log    logr.Logger
	fields map[string]string
}

// NewLogrObserver creates an observer writing to log.
func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{
		log:    log,
		fields: make(map[string]string),
	}
}

// Printf implements Logger.
func (o *LogrObserver) Printf(format string, v ...interface{}) {
	o.log.Info(fmt.Sprintf(format, v...), keysAndValues(mergeFields(o.fields, nil))...)
}

// Event implements Observer. Failure events are logged as errors.
func (o *LogrObserver) Event(event Event) {
	kv := []any{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	kv = append(kv, keysAndValues(mergeFields(o.fields, event.Fields))...)

	switch event.Type {
	case EventPhaseFailed, EventResourceFailed, EventValidationError:
		o.log.Error(event.Err, event.Message, kv...)
	case EventProgress:
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

// Progress implements Observer.
func (o *LogrObserver) Progress(phase string, current, total int) {
	kv := []any{"phase", phase, "current", current, "total", total}
	if total > 0 {
		kv = append(kv, "percent", (current*100)/total)
	}
	o.log.V(1).Info("progress", append(kv, keysAndValues(o.fields)...)...)
}

// WithFields implements Observer.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	return &LogrObserver{log: o.log, fields: mergeFields(o.fields, fields)}
}

// mergeFields returns a new map with over layered on base.
func mergeFields(base, over map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(over))
	maps.Copy(merged, base)
	maps.Copy(merged, over)
	return merged
}

// keysAndValues flattens fields in key order.
func keysAndValues(fields map[string]string) []any {
	kv := make([]any, 0, len(fields)*2)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		kv = append(kv, k, fields[k])
	}
	return kv
}

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{Type: EventPhaseStarted, Phase: phase, Message: "starting"})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event carrying err.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{Type: EventPhaseFailed, Phase: phase, Message: "phase failed", Err: err})
}

func resourceEvent(t EventType, phase, kind, name, msg string) Event {
	return Event{
		Type:     t,
		Phase:    phase,
		Resource: name,
		Message:  msg,
		Fields:   map[string]string{"type": kind},
	}
}

// LogResourceCreating logs the start of a create. kind is node, key pair
// and so on.
func LogResourceCreating(observer Observer, phase, kind, name string) {
	observer.Event(resourceEvent(EventResourceCreating, phase, kind, name, "creating "+kind))
}

// LogResourceCreated logs a created resource with its provider id.
func LogResourceCreated(observer Observer, phase, kind, name, id string) {
	e := resourceEvent(EventResourceCreated, phase, kind, name, kind+" created")
	e.Fields["id"] = id
	observer.Event(e)
}

// LogResourceDeleting logs the start of a delete.
func LogResourceDeleting(observer Observer, phase, kind, name string) {
	observer.Event(resourceEvent(EventResourceDeleting, phase, kind, name, "deleting "+kind))
}

// LogResourceDeleted logs a deleted resource.
func LogResourceDeleted(observer Observer, phase, kind, name string) {
	observer.Event(resourceEvent(EventResourceDeleted, phase, kind, name, kind+" deleted"))
}

// LogResourceFailed logs a failed operation on a resource.
func LogResourceFailed(observer Observer, phase, kind, name string, err error) {
	e := resourceEvent(EventResourceFailed, phase, kind, name, kind+" failed")
	e.Err = err
	observer.Event(e)
}
