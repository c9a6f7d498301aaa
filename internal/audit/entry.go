package audit

import (
	"time"

	"github.com/google/uuid"
)

// Common log categories and module names used across the gateway.
const (
	CategoryAuthentication = "Authentication"
	CategoryException      = "Exception"
	CategoryRuntime        = "Runtime"

	ModuleSecurity = "security"
	ModuleCommon   = "common"
)

// Entry is a structured record of an authentication decision or exception.
// One entry is constructed per logged event and discarded after the write
// attempt; entries are never persisted by the gateway itself.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// Time is when the event occurred.
	Time time.Time `json:"logTime"`

	// Level is the severity of the entry.
	Level Severity `json:"level"`

	// Category is the logical log category (e.g. Authentication).
	Category string `json:"logName"`

	// Module is the owning module name (e.g. security).
	Module string `json:"module"`

	// Origin is the component that produced the entry. Passed explicitly by
	// the caller; never derived from stack introspection.
	Origin string `json:"origin"`

	// Operation is the operation within the origin component.
	Operation string `json:"operation"`

	// Data1 and Data2 are free-form data fields.
	Data1 string `json:"data1"`
	Data2 string `json:"data2"`

	// AdditionalData is a free-form additional-data field.
	AdditionalData string `json:"additionalData"`

	// Message is a human-readable message.
	Message string `json:"message"`

	// Host, IPAddress and Port describe the emitting process. Populated by
	// the logger from values resolved once at startup.
	Host      string `json:"hostName"`
	IPAddress string `json:"ipAddress"`
	Port      string `json:"port"`

	// Exception is the message of the error supplied with the entry, if any.
	Exception string `json:"exception"`

	// URL is the request URI when a request context is available.
	URL string `json:"url"`

	// RequestParams holds request query parameters (and content type for
	// mutating methods). Always a map, never null.
	RequestParams map[string]string `json:"requestParams"`

	// TraceID and SpanID carry the tracing context when present.
	TraceID string `json:"traceId,omitempty"`
	SpanID  string `json:"spanId,omitempty"`
}

// NewEntry creates a new audit entry with the given decision context.
// Invalid levels default to INFO.
func NewEntry(level Severity, category, module, origin, operation string) *Entry {
	if !level.IsValid() {
		level = SeverityInfo
	}
	return &Entry{
		ID:            uuid.New().String(),
		Time:          time.Now().UTC(),
		Level:         level,
		Category:      category,
		Module:        module,
		Origin:        origin,
		Operation:     operation,
		RequestParams: map[string]string{},
	}
}

// WithData sets the two free-form data fields.
func (e *Entry) WithData(data1, data2 string) *Entry {
	e.Data1 = data1
	e.Data2 = data2
	return e
}

// WithAdditionalData sets the additional-data field.
func (e *Entry) WithAdditionalData(data string) *Entry {
	e.AdditionalData = data
	return e
}

// WithMessage sets the human-readable message.
func (e *Entry) WithMessage(message string) *Entry {
	e.Message = message
	return e
}
