package tidelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidelog/tidelog/payload"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "app", config.Name)
	assert.Equal(t, DefaultLevel, config.MinimumLevel)
	assert.False(t, config.Synchronous)
	assert.Equal(t, DefaultQueueCapacity, config.QueueCapacity)
	assert.Equal(t, int64(payload.DefaultBudget), config.PayloadBudgetBytes)
	assert.Equal(t, payload.DefaultInitialSlots, config.PayloadInitialSlots)
	assert.False(t, config.CaptureStackTraces)
	assert.Equal(t, ErrorLevel, config.StackTraceLevel)
	assert.Empty(t, config.Sinks)

	require.NoError(t, config.Validate())
}

func TestProductionConfig(t *testing.T) {
	config := ProductionConfig()

	assert.Equal(t, InfoLevel, config.MinimumLevel)
	assert.False(t, config.Synchronous)
	assert.False(t, config.CaptureStackTraces)
	require.NoError(t, config.Validate())
}

func TestDevelopmentConfig(t *testing.T) {
	config := DevelopmentConfig()

	assert.Equal(t, DebugLevel, config.MinimumLevel)
	assert.True(t, config.Synchronous)
	assert.True(t, config.CaptureStackTraces)
	assert.Equal(t, ErrorLevel, config.StackTraceLevel)
	require.NoError(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid minimum level", func(c *Config) { c.MinimumLevel = Level(99) }},
		{"invalid stack trace level", func(c *Config) {
			c.CaptureStackTraces = true
			c.StackTraceLevel = Level(99)
		}},
		{"negative queue capacity", func(c *Config) { c.QueueCapacity = -1 }},
		{"negative payload budget", func(c *Config) { c.PayloadBudgetBytes = -1 }},
		{"negative payload slots", func(c *Config) { c.PayloadInitialSlots = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)

			err := config.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigNormalized(t *testing.T) {
	config := Config{}.normalized()

	assert.Equal(t, "app", config.Name)
	assert.Equal(t, DefaultQueueCapacity, config.QueueCapacity)
	assert.Equal(t, int64(payload.DefaultBudget), config.PayloadBudgetBytes)
	assert.Equal(t, payload.DefaultInitialSlots, config.PayloadInitialSlots)
}

func TestConfigNormalizedKeepsExplicitValues(t *testing.T) {
	config := Config{
		Name:          "svc",
		QueueCapacity: 16,
	}.normalized()

	assert.Equal(t, "svc", config.Name)
	assert.Equal(t, 16, config.QueueCapacity)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"trace", TraceLevel},
		{"DEBUG", DebugLevel},
		{"Info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"FATAL", FatalLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}

	_, err := ParseLevel("chatty")
	require.ErrorIs(t, err, ErrInvalidLevel)
}
