// Copyright 2025 Takhin Data, Inc.

package audit

import (
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Authentication events, emitted by the admin API's operator login.
	EventTypeAuthSuccess EventType = "auth.success"
	EventTypeAuthFailure EventType = "auth.failure"

	// Configuration events, emitted whenever an operator changes a
	// throttle group's live budget through the admin API.
	EventTypeConfigChange EventType = "config.change"
	EventTypeConfigRead   EventType = "config.read"

	// Stream lifecycle events.
	EventTypeStreamCreate EventType = "stream.create"
	EventTypeStreamAbort  EventType = "stream.abort"

	// System events
	EventTypeSystemStartup  EventType = "system.startup"
	EventTypeSystemShutdown EventType = "system.shutdown"
	EventTypeSystemError    EventType = "system.error"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit log event
type Event struct {
	// Core fields
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	Severity  Severity  `json:"severity"`

	// Actor information
	Principal string `json:"principal"`           // User/service principal
	Host      string `json:"host"`                // Source IP/hostname
	UserAgent string `json:"user_agent,omitempty"` // Client user agent

	// Resource information
	ResourceType string `json:"resource_type,omitempty"` // group, stream
	ResourceName string `json:"resource_name,omitempty"` // Specific resource identifier

	// Operation details
	Operation string                 `json:"operation"`           // create, delete, read, write
	Result    string                 `json:"result"`              // success, failure, denied
	Metadata  map[string]interface{} `json:"metadata,omitempty"`  // Additional context
	Error     string                 `json:"error,omitempty"`     // Error message if failed

	// Request context
	RequestID   string `json:"request_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	APIVersion  string `json:"api_version,omitempty"`
	Duration    int64  `json:"duration_ms,omitempty"` // Operation duration in ms
}

// Filter represents query filters for audit logs
type Filter struct {
	StartTime    *time.Time
	EndTime      *time.Time
	EventTypes   []EventType
	Principals   []string
	ResourceType string
	ResourceName string
	Result       string
	Severity     Severity
	Limit        int
	Offset       int
}
