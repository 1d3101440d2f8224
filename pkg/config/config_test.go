// Copyright 2025 Takhin Data, Inc.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name       string
		configFile string
		wantErr    bool
		validate   func(*testing.T, *Config)
	}{
		{
			name:       "load with defaults",
			configFile: "",
			wantErr:    false,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10, cfg.Group.TicksPerSecond)
				assert.Equal(t, 16*1024*1024, cfg.Group.MaxBufferSize)
				assert.Equal(t, ":9091", cfg.AdminAPI.Addr)
				assert.Equal(t, "default", cfg.AdminAPI.GroupID)
				assert.Equal(t, "info", cfg.Logging.Level)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.configFile)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &Config{
				Group: GroupConfig{
					TicksPerSecond: 10,
					MaxBufferSize:  1024,
				},
				Logging: LoggingConfig{
					Level: "info",
				},
			},
			wantErr: false,
		},
		{
			name: "buffer smaller than rate",
			cfg: &Config{
				Group: GroupConfig{
					TicksPerSecond: 10,
					BytesPerSecond: 2048,
					MaxBufferSize:  1024,
				},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr: true,
		},
		{
			name: "invalid ticks per second",
			cfg: &Config{
				Group:   GroupConfig{TicksPerSecond: 0},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			cfg: &Config{
				Group:   GroupConfig{TicksPerSecond: 10},
				Logging: LoggingConfig{Level: "chatty"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
