// Copyright 2025 Takhin Data, Inc.

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamcap/throttle/pkg/logger"
)

// Logger handles audit log operations
type Logger struct {
	mu        sync.RWMutex
	writer    io.Writer
	config    Config
	logger    *logger.Logger
	store     *Store
	rotator   *Rotator
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Config holds audit logger configuration
type Config struct {
	Enabled          bool   `koanf:"enabled"`
	OutputPath       string `koanf:"output.path"`
	MaxFileSize      int64  `koanf:"max.file.size"`      // Max size in bytes before rotation
	MaxBackups       int    `koanf:"max.backups"`        // Max number of backup files
	MaxAge           int    `koanf:"max.age"`            // Max age in days
	Compress         bool   `koanf:"compress"`           // Compress rotated files
	BufferSize       int    `koanf:"buffer.size"`        // Not read by Logger: writes are synchronous
	FlushIntervalMs  int    `koanf:"flush.interval.ms"`  // Not read by Logger: writes are synchronous
	StoreEnabled     bool   `koanf:"store.enabled"`      // Enable queryable store
	StoreRetentionMs int64  `koanf:"store.retention.ms"` // Store retention period in ms
}

// NewLogger creates a new audit logger
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{
			config: config,
			logger: logger.Default().WithComponent("audit"),
		}, nil
	}

	// Set defaults
	if config.OutputPath == "" {
		config.OutputPath = "/var/log/streamcapd/audit.log"
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = 100 * 1024 * 1024 // 100MB
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 10
	}
	if config.MaxAge == 0 {
		config.MaxAge = 30 // 30 days
	}
	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushIntervalMs == 0 {
		config.FlushIntervalMs = 1000 // 1 second
	}
	if config.StoreRetentionMs == 0 {
		config.StoreRetentionMs = 7 * 24 * 60 * 60 * 1000 // 7 days
	}

	// Ensure output directory exists
	dir := filepath.Dir(config.OutputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}

	// Create rotator
	rotator, err := NewRotator(RotatorConfig{
		Filename:   config.OutputPath,
		MaxSize:    config.MaxFileSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("create log rotator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	l := &Logger{
		writer:  rotator,
		config:  config,
		logger:  logger.Default().WithComponent("audit"),
		rotator: rotator,
		ctx:     ctx,
		cancel:  cancel,
	}

	// Initialize store if enabled
	if config.StoreEnabled {
		l.store = NewStore(config.StoreRetentionMs)
		l.wg.Add(1)
		go l.cleanupLoop()
	}

	return l, nil
}

// Log writes an audit event
func (l *Logger) Log(event *Event) error {
	if !l.config.Enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Set defaults
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	// Write to file
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	data = append(data, '\n')
	if _, err := l.writer.Write(data); err != nil {
		l.logger.Error("failed to write audit log", "error", err)
		return fmt.Errorf("write audit log: %w", err)
	}

	// Store in memory if enabled
	if l.store != nil {
		l.store.Add(event)
	}

	return nil
}

// LogAuth logs an admin API login attempt.
func (l *Logger) LogAuth(principal, host, result string, err error) error {
	eventType := EventTypeAuthSuccess
	severity := SeverityInfo
	errMsg := ""

	if err != nil {
		eventType = EventTypeAuthFailure
		severity = SeverityWarning
		errMsg = err.Error()
	}

	return l.Log(&Event{
		EventType: eventType,
		Severity:  severity,
		Principal: principal,
		Host:      host,
		Operation: "authenticate",
		Result:    result,
		Error:     errMsg,
	})
}

// LogConfigChange logs an operator-initiated change to a throttle
// group's live budget.
func (l *Logger) LogConfigChange(principal, host, groupID string, changes map[string]interface{}, err error) error {
	severity := SeverityInfo
	result := "success"
	errMsg := ""

	if err != nil {
		severity = SeverityError
		result = "failure"
		errMsg = err.Error()
	}

	return l.Log(&Event{
		EventType:    EventTypeConfigChange,
		Severity:     severity,
		Principal:    principal,
		Host:         host,
		ResourceType: "group",
		ResourceName: groupID,
		Operation:    "configure",
		Result:       result,
		Error:        errMsg,
		Metadata:     changes,
	})
}

// LogStreamLifecycle logs a throttle stream being created or aborted.
func (l *Logger) LogStreamLifecycle(operation, groupID, streamID string, bytesProcessed uint64, err error) error {
	eventType := EventTypeStreamCreate
	severity := SeverityInfo
	result := "success"
	errMsg := ""

	if operation == "abort" {
		eventType = EventTypeStreamAbort
		severity = SeverityWarning
	}
	if err != nil {
		severity = SeverityError
		result = "failure"
		errMsg = err.Error()
	}

	return l.Log(&Event{
		EventType:    eventType,
		Severity:     severity,
		ResourceType: "stream",
		ResourceName: streamID,
		Operation:    operation,
		Result:       result,
		Error:        errMsg,
		Metadata: map[string]interface{}{
			"group_id":        groupID,
			"bytes_processed": bytesProcessed,
		},
	})
}

// LogSystemEvent logs a process lifecycle or unrecoverable error event.
func (l *Logger) LogSystemEvent(eventType EventType, message string, err error) error {
	severity := SeverityInfo
	errMsg := ""
	if err != nil {
		severity = SeverityError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		EventType: eventType,
		Severity:  severity,
		Operation: message,
		Result:    "success",
		Error:     errMsg,
	})
}

// Query queries audit logs with filters
func (l *Logger) Query(filter Filter) ([]*Event, error) {
	if !l.config.Enabled || !l.config.StoreEnabled || l.store == nil {
		return nil, fmt.Errorf("audit log store not enabled")
	}

	return l.store.Query(filter), nil
}

// Close closes the audit logger
func (l *Logger) Close() error {
	if !l.config.Enabled {
		return nil
	}

	l.cancel()
	l.wg.Wait()

	if l.rotator != nil {
		return l.rotator.Close()
	}

	return nil
}

// cleanupLoop periodically cleans up old entries from the store
func (l *Logger) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if l.store != nil {
				l.store.Cleanup()
			}
		}
	}
}
