package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes a structured log line emitted by the engine's
// lifecycle hooks (spec §9: "logging... constructed once at process
// startup and passed in explicitly" — the core itself holds no
// module-level logger).
type EventType string

const (
	EventEvaluation EventType = "EVALUATION"
	EventVerify     EventType = "VERIFY"
	EventSimStep    EventType = "SIM_STEP"
	EventRegistry   EventType = "REGISTRY"
)

// Event is one structured log line.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Action    string                 `json:"action"`
	Resource  string                 `json:"resource"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Logger is the hook a host embedding the core wires to its own
// structured-logging pipeline. The core never constructs one itself and
// never logs by default (spec §9, SPEC_FULL.md §10: "no logging library
// appears in any example repo's import graph for a pure-library core");
// a host calls a Logger itself around its own Evaluate and Run.Step
// calls.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]interface{}) error
}

// jsonLogger implements Logger, writing one JSON object per line to a
// configurable io.Writer.
type jsonLogger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing JSON lines to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to w, for tests and
// custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &jsonLogger{writer: w}
}

func (l *jsonLogger) Record(_ context.Context, eventType EventType, action, resource string, metadata map[string]interface{}) error {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.writer.Write(append(encoded, '\n'))
	return err
}
