package provisioningtest

import (
	"fmt"
	"maps"
	"sync"

	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
)

// MockObserver is a test implementation of provisioning.Observer that
// records events. Children created by WithFields share the parent's log.
type MockObserver struct {
	rec    *record
	fields map[string]string
}

type record struct {
	mu       sync.Mutex
	events   []provisioning.Event
	messages []string
}

var _ provisioning.Observer = (*MockObserver)(nil)

// NewMockObserver returns an empty MockObserver.
func NewMockObserver() *MockObserver {
	return &MockObserver{rec: &record{}, fields: map[string]string{}}
}

// Printf records the formatted message.
func (m *MockObserver) Printf(format string, v ...interface{}) {
	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	m.rec.messages = append(m.rec.messages, fmt.Sprintf(format, v...))
}

// Event records the event with context fields merged in.
func (m *MockObserver) Event(event provisioning.Event) {
	fields := maps.Clone(m.fields)
	maps.Copy(fields, event.Fields)
	event.Fields = fields

	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	m.rec.events = append(m.rec.events, event)
}

// Progress records a progress event.
func (m *MockObserver) Progress(phase string, current, total int) {
	m.Event(provisioning.Event{
		Type:    provisioning.EventProgress,
		Phase:   phase,
		Message: "progress",
		Fields: map[string]string{
			"current": fmt.Sprint(current),
			"total":   fmt.Sprint(total),
		},
	})
}

// WithFields returns a child observer.
func (m *MockObserver) WithFields(fields map[string]string) provisioning.Observer {
	merged := maps.Clone(m.fields)
	maps.Copy(merged, fields)
	return &MockObserver{rec: m.rec, fields: merged}
}

// Events returns every recorded event.
func (m *MockObserver) Events() []provisioning.Event {
	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	return append([]provisioning.Event(nil), m.rec.events...)
}

// EventsOf returns the recorded events of type t.
func (m *MockObserver) EventsOf(t provisioning.EventType) []provisioning.Event {
	var out []provisioning.Event
	for _, e := range m.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Messages returns the Printf messages.
func (m *MockObserver) Messages() []string {
	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	return append([]string(nil), m.rec.messages...)
}
