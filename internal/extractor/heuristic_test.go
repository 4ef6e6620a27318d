package extractor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_IntakeConversation(t *testing.T) {
	conversation := strings.Join([]string{
		"We need a senior backend engineer for the payments team.",
		"The role is remote and full-time.",
		"The team is based in Berlin.",
		"Experience with Go, PostgreSQL and Kubernetes is required.",
		"Budget is $140,000 to $170,000 per year.",
	}, " ")

	ext := NewHeuristicExtractor()
	found, err := ext.Extract(context.Background(), conversation, DefaultFieldSpec())
	require.NoError(t, err)

	assert.Equal(t, "senior backend engineer", found["job_title"])
	assert.Equal(t, "remote", found["workplace_type"])
	assert.Equal(t, "full-time", found["employment_type"])
	assert.Equal(t, "Berlin", found["location"])
	assert.Equal(t, "senior", found["seniority_level"])
	assert.Contains(t, found["skills"], "Go")
	assert.Contains(t, found["salary_range"], "$140,000")
}

func TestExtract_MissingFieldsAbsent(t *testing.T) {
	ext := NewHeuristicExtractor()
	found, err := ext.Extract(context.Background(), "Hello there, how are you today", DefaultFieldSpec())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestExtract_PartialCapture(t *testing.T) {
	ext := NewHeuristicExtractor()
	found, err := ext.Extract(context.Background(), "We are hiring a data analyst.", DefaultFieldSpec())
	require.NoError(t, err)

	assert.Equal(t, "data analyst", found["job_title"])
	_, hasLocation := found["location"]
	assert.False(t, hasLocation)
}

func TestExtract_GenericPatternFallback(t *testing.T) {
	ext := NewHeuristicExtractor()
	spec := FieldSpec{"team_size": "Team Size"}

	found, err := ext.Extract(context.Background(), "The team size is eight engineers.", spec)
	require.NoError(t, err)
	assert.Equal(t, "eight engineers", found["team_size"])
}

func TestExtract_ValueLengthBounds(t *testing.T) {
	ext := NewHeuristicExtractor()
	spec := FieldSpec{"skills": "Skills"}

	long := "must have " + strings.Repeat("x", 200)
	found, err := ext.Extract(context.Background(), long, spec)
	require.NoError(t, err)
	_, ok := found["skills"]
	assert.False(t, ok, "oversized values should be discarded")
}

func TestExtract_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ext := NewHeuristicExtractor()
	_, err := ext.Extract(ctx, "anything", DefaultFieldSpec())
	assert.Error(t, err)
}
