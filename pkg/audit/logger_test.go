// Copyright 2025 Takhin Data, Inc.

package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Log(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	cfg := Config{
		Enabled:      true,
		OutputPath:   logPath,
		MaxFileSize:  1024 * 1024,
		MaxBackups:   5,
		MaxAge:       7,
		Compress:     false,
		StoreEnabled: true,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	event := &Event{
		EventType:    EventTypeConfigChange,
		Severity:     SeverityInfo,
		Principal:    "admin",
		Host:         "localhost",
		ResourceType: "group",
		ResourceName: "default",
		Operation:    "configure",
		Result:       "success",
	}

	err = logger.Log(event)
	assert.NoError(t, err)

	data, err := os.ReadFile(logPath)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "default")
	assert.Contains(t, string(data), "config.change")
}

func TestLogger_LogAuth(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	cfg := Config{
		Enabled:      true,
		OutputPath:   logPath,
		StoreEnabled: true,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	err = logger.LogAuth("operator", "192.168.1.100", "success", nil)
	assert.NoError(t, err)

	err = logger.LogAuth("operator", "192.168.1.101", "failure", errors.New("invalid credentials"))
	assert.NoError(t, err)

	events, err := logger.Query(Filter{
		EventTypes: []EventType{EventTypeAuthSuccess, EventTypeAuthFailure},
	})
	assert.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLogger_LogConfigChange(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	cfg := Config{
		Enabled:      true,
		OutputPath:   logPath,
		StoreEnabled: true,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	err = logger.LogConfigChange("operator", "localhost", "default", map[string]interface{}{
		"bytes_per_second": 1048576,
	}, nil)
	assert.NoError(t, err)

	err = logger.LogConfigChange("operator", "localhost", "default", nil, errors.New("invalid config"))
	assert.NoError(t, err)

	events, err := logger.Query(Filter{
		ResourceType: "group",
	})
	assert.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLogger_LogStreamLifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	cfg := Config{
		Enabled:      true,
		OutputPath:   logPath,
		StoreEnabled: true,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	err = logger.LogStreamLifecycle("create", "default", "stream-1", 0, nil)
	assert.NoError(t, err)

	err = logger.LogStreamLifecycle("abort", "default", "stream-1", 4096, errors.New("buffer overflow"))
	assert.NoError(t, err)

	events, err := logger.Query(Filter{
		EventTypes: []EventType{EventTypeStreamCreate, EventTypeStreamAbort},
	})
	assert.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLogger_LogSystemEvent(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	cfg := Config{
		Enabled:      true,
		OutputPath:   logPath,
		StoreEnabled: true,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	err = logger.LogSystemEvent(EventTypeSystemStartup, "streamcapd started", nil)
	assert.NoError(t, err)

	events, err := logger.Query(Filter{
		EventTypes: []EventType{EventTypeSystemStartup},
	})
	assert.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestLogger_Query(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	cfg := Config{
		Enabled:      true,
		OutputPath:   logPath,
		StoreEnabled: true,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	for i := 0; i < 10; i++ {
		event := &Event{
			EventType:    EventTypeConfigChange,
			Severity:     SeverityInfo,
			Principal:    "admin",
			Host:         "localhost",
			ResourceType: "group",
			ResourceName: "group-" + string(rune('0'+i)),
			Operation:    "configure",
			Result:       "success",
		}
		err = logger.Log(event)
		assert.NoError(t, err)
	}

	events, err := logger.Query(Filter{
		Limit: 5,
	})
	assert.NoError(t, err)
	assert.Len(t, events, 5)

	events, err = logger.Query(Filter{
		Principals: []string{"admin"},
	})
	assert.NoError(t, err)
	assert.Len(t, events, 10)

	events, err = logger.Query(Filter{
		ResourceType: "group",
	})
	assert.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestLogger_Disabled(t *testing.T) {
	cfg := Config{
		Enabled: false,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	event := &Event{
		EventType: EventTypeConfigChange,
		Severity:  SeverityInfo,
		Principal: "admin",
	}

	err = logger.Log(event)
	assert.NoError(t, err)

	_, err = logger.Query(Filter{})
	assert.Error(t, err)
}

func TestStore_Cleanup(t *testing.T) {
	retentionMs := int64(100)
	store := NewStore(retentionMs)

	for i := 0; i < 5; i++ {
		event := &Event{
			Timestamp: time.Now().Add(-time.Duration(i*50) * time.Millisecond),
			EventType: EventTypeConfigChange,
			Principal: "admin",
		}
		store.Add(event)
	}

	assert.Equal(t, 5, store.Count())

	time.Sleep(150 * time.Millisecond)

	store.Cleanup()

	assert.LessOrEqual(t, store.Count(), 3, "should have removed old events")
}

func TestRotator(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	cfg := RotatorConfig{
		Filename:   logPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   false,
	}

	rotator, err := NewRotator(cfg)
	require.NoError(t, err)
	defer rotator.Close()

	data := make([]byte, 150)
	for i := range data {
		data[i] = 'A'
	}

	n, err := rotator.Write(data)
	assert.NoError(t, err)
	assert.Equal(t, len(data), n)

	files, err := os.ReadDir(tmpDir)
	assert.NoError(t, err)
	assert.Greater(t, len(files), 1, "should have created backup file")
}
