package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/socsieng/pg-migrations/internal/changeset"
)

// EventType represents the type of event
type EventType string

const (
	EventLock     EventType = "lock"
	EventUnlock   EventType = "unlock"
	EventValidate EventType = "validate"
	EventExecute  EventType = "execute"
	EventSkip     EventType = "skip"
	EventError    EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is one line of the migration audit log
type Event struct {
	Timestamp     time.Time         `json:"ts"`
	RunID         string            `json:"run_id"`
	Level         EventLevel        `json:"level"`
	Event         EventType         `json:"event"`
	Changeset     string            `json:"changeset,omitempty"`
	ExecutionType string            `json:"execution_type,omitempty"`
	Hash          string            `json:"hash,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Duration      int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error         string            `json:"error,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events of a single run to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level.
// Every event it writes carries the same generated run id.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.NewString()
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s-%s.jsonl", timestamp, runID[:8])
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    runID,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogLock logs the outcome of a lock attempt
func (l *EventLogger) LogLock(acquired bool) error {
	level := LevelInfo
	reason := "acquired"
	if !acquired {
		level = LevelWarning
		reason = "held by another session"
	}

	return l.Log(&Event{
		Level:  level,
		Event:  EventLock,
		Reason: reason,
	})
}

// LogUnlock logs the release of the lock
func (l *EventLogger) LogUnlock(err error) error {
	event := &Event{Level: LevelInfo, Event: EventUnlock}
	if err != nil {
		event.Level = LevelError
		event.Error = err.Error()
	}
	return l.Log(event)
}

// LogValidation logs a changeset validation result. Drift messages are warnings.
func (l *EventLogger) LogValidation(cs *changeset.Changeset, validation changeset.Validation) error {
	event := &Event{
		Level:         LevelDebug,
		Event:         EventValidate,
		Changeset:     cs.FormatName(),
		ExecutionType: string(cs.ExecutionType),
		Hash:          cs.Hash,
		Extra: map[string]string{
			"should_execute": fmt.Sprintf("%t", validation.ShouldExecute),
		},
	}
	if !validation.Valid() {
		event.Level = LevelWarning
		event.Reason = fmt.Sprintf("%q", validation.Messages)
	}
	return l.Log(event)
}

// LogSkip logs a changeset that will not run
func (l *EventLogger) LogSkip(cs *changeset.Changeset, reason string) error {
	return l.Log(&Event{
		Level:         LevelDebug,
		Event:         EventSkip,
		Changeset:     cs.FormatName(),
		ExecutionType: string(cs.ExecutionType),
		Hash:          cs.Hash,
		Reason:        reason,
	})
}

// LogExecute logs a changeset execution
func (l *EventLogger) LogExecute(cs *changeset.Changeset, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:         level,
		Event:         EventExecute,
		Changeset:     cs.FormatName(),
		ExecutionType: string(cs.ExecutionType),
		Hash:          cs.Hash,
		Duration:      duration.Milliseconds(),
		Error:         errMsg,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, changesetName string, err error) error {
	return l.Log(&Event{
		Level:     LevelError,
		Event:     event,
		Changeset: changesetName,
		Error:     err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the id stamped on every event of this run
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}
