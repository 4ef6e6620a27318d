package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())

	badLevel := &Config{Level: "shouting", Format: "json"}
	assert.Error(t, badLevel.Validate())

	badFormat := &Config{Level: "info", Format: "xml"}
	assert.Error(t, badFormat.Validate())

	console := &Config{Level: "debug", Format: "console"}
	assert.NoError(t, console.Validate())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Debug("test message")

	// Nil config falls back to defaults.
	logger, err = NewLogger(nil)
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(&Config{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestRunFields(t *testing.T) {
	fields := RunFields("run-1", "Maria", "Urgent Backfill")
	assert.Equal(t, []zap.Field{
		zap.String("run_id", "run-1"),
		zap.String("persona", "Maria"),
		zap.String("scenario", "Urgent Backfill"),
	}, fields)
}
