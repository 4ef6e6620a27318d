package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tel)

	// Disabled telemetry still hands out working no-op tracers.
	tracer := tel.Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	span.End()

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_NilConfig(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_EnabledRequiresServiceName(t *testing.T) {
	_, err := New(context.Background(), &Config{Enabled: true})
	assert.Error(t, err)
}

func TestRunAttributes(t *testing.T) {
	attrs := RunAttributes("run-1", "Maria", "Backfill", 12345, 0.42, 0.28, 0.35)

	byKey := map[attribute.Key]attribute.Value{}
	for _, a := range attrs {
		byKey[a.Key] = a.Value
	}

	assert.Equal(t, "run-1", byKey["sim.run_id"].AsString())
	assert.Equal(t, int64(12345), byKey["sim.seed"].AsInt64())
	assert.Equal(t, 0.42, byKey["sim.clarifying_question_prob"].AsFloat64())
}

func TestOutcomeAttributes(t *testing.T) {
	attrs := OutcomeAttributes("success", 100, 8, 0, 42*time.Second)

	byKey := map[attribute.Key]attribute.Value{}
	for _, a := range attrs {
		byKey[a.Key] = a.Value
	}

	assert.Equal(t, "success", byKey["sim.status"].AsString())
	assert.Equal(t, int64(100), byKey["sim.completion_percent"].AsInt64())
	assert.Equal(t, 42.0, byKey["sim.elapsed_seconds"].AsFloat64())
}
