package provisioning

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Observer receives structured events as a chain progresses.
type Observer interface {
	// Event emits a structured event.
	Event(event Event)

	// WithFields returns an Observer that stamps the fields on every event.
	WithFields(fields map[string]string) Observer
}

// Event is one structured observation of chain progress.
type Event struct {
	Type      EventType
	Step      StepKind          // step being worked, if any
	Resource  string            // resource name, if any
	Message   string            // human-readable message
	Timestamp time.Time
	Fields    map[string]string
}

// EventType classifies events.
type EventType string

// Event types.
const (
	// EventStepStarted indicates a step handler began.
	EventStepStarted EventType = "step.started"
	// EventStepDropped indicates a step had no registered handler.
	EventStepDropped EventType = "step.dropped"

	// EventResourceReused indicates an existing remote resource was adopted.
	EventResourceReused EventType = "resource.reused"
	// EventResourceCreating indicates a remote create was issued.
	EventResourceCreating EventType = "resource.creating"
	// EventResourceCreated indicates a remote create completed.
	EventResourceCreated EventType = "resource.created"

	// EventPollPending indicates a poll observed a non-terminal status.
	EventPollPending EventType = "poll.pending"

	// EventChainFailed indicates a chain terminated in failure.
	EventChainFailed EventType = "chain.failed"
	// EventChainCompleted indicates a chain reached its terminal success.
	EventChainCompleted EventType = "chain.completed"
)

var failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

// ConsoleObserver writes events through the standard log package, coloring
// failures when stderr is a terminal.
type ConsoleObserver struct {
	contextFields map[string]string
	color         bool
}

// NewConsoleObserver creates a console observer.
func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{
		contextFields: make(map[string]string),
		color:         isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// Event implements Observer.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Fields == nil {
		event.Fields = make(map[string]string)
	}
	for k, v := range o.contextFields {
		if _, exists := event.Fields[k]; !exists {
			event.Fields[k] = v
		}
	}
	log.Print(o.formatEvent(event))
}

// WithFields implements Observer.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ConsoleObserver{contextFields: merged, color: o.color}
}

func (o *ConsoleObserver) formatEvent(event Event) string {
	var parts []string

	kind := string(event.Type)
	if o.color && (event.Type == EventChainFailed || event.Type == EventStepDropped) {
		kind = failureStyle.Render(kind)
	}
	parts = append(parts, kind)

	if event.Step != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Step))
	}
	if event.Resource != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", event.Resource))
	}
	if event.Message != "" {
		parts = append(parts, event.Message)
	}
	if len(event.Fields) > 0 {
		fieldParts := make([]string, 0, len(event.Fields))
		for k, v := range event.Fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, v))
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", ")))
	}
	return strings.Join(parts, " ")
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

// MockObserver records events for assertions. Safe for concurrent chains;
// WithFields children share the parent's log.
type MockObserver struct {
	contextFields map[string]string
	log           *eventLog
}

// NewMockObserver creates a recording observer.
func NewMockObserver() *MockObserver {
	return &MockObserver{
		contextFields: make(map[string]string),
		log:           &eventLog{},
	}
}

// Event implements Observer.
func (o *MockObserver) Event(event Event) {
	if event.Fields == nil {
		event.Fields = make(map[string]string)
	}
	for k, v := range o.contextFields {
		if _, exists := event.Fields[k]; !exists {
			event.Fields[k] = v
		}
	}
	o.log.mu.Lock()
	o.log.events = append(o.log.events, event)
	o.log.mu.Unlock()
}

// WithFields implements Observer.
func (o *MockObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &MockObserver{contextFields: merged, log: o.log}
}

// Events returns a snapshot of every recorded event.
func (o *MockObserver) Events() []Event {
	o.log.mu.Lock()
	defer o.log.mu.Unlock()
	return append([]Event(nil), o.log.events...)
}
