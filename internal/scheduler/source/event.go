package source

import (
	"github.com/octmg/octmg/pkg/model"
)

// RunEvent represents a unified solve-run event from any source.
type RunEvent struct {
	// ID is the unique identifier for this event.
	ID string

	// Run is the actual run request data.
	Run *model.RunRequest

	// SourceType indicates which type of source this event came from.
	SourceType SourceType

	// SourceName is the name of the source instance.
	SourceName string

	// Priority indicates the run priority (higher value = higher priority).
	Priority int

	// Metadata holds source-specific metadata.
	Metadata map[string]string

	// AckToken is used for acknowledgment (e.g., HTTP request context).
	AckToken interface{}
}

// NewRunEvent creates a new RunEvent from a model.RunRequest.
func NewRunEvent(run *model.RunRequest, sourceType SourceType, sourceName string) *RunEvent {
	priority := 0
	if run.IsHighPriority() {
		priority = 1
	}

	return &RunEvent{
		ID:         run.RunUUID,
		Run:        run,
		SourceType: sourceType,
		SourceName: sourceName,
		Priority:   priority,
		Metadata:   make(map[string]string),
	}
}

// WithMetadata adds metadata to the event and returns the event for chaining.
func (e *RunEvent) WithMetadata(key, value string) *RunEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// WithAckToken sets the ack token and returns the event for chaining.
func (e *RunEvent) WithAckToken(token interface{}) *RunEvent {
	e.AckToken = token
	return e
}

// GetMetadata retrieves a metadata value by key.
func (e *RunEvent) GetMetadata(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}
