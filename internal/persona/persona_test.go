package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPressureLevelWeight(t *testing.T) {
	assert.Equal(t, 1.0, PressureHigh.Weight())
	assert.Equal(t, 0.7, PressureMedium.Weight())
	assert.Equal(t, 0.4, PressureLow.Weight())
	// Unknown and empty fall back to medium.
	assert.Equal(t, 0.7, PressureLevel("").Weight())
	assert.Equal(t, 0.7, PressureLevel("extreme").Weight())
}

func TestPressureIndexAverage(t *testing.T) {
	idx := PressureIndex{
		Timeline: PressureHigh,
		Quality:  PressureMedium,
		Budget:   PressureLow,
	}
	assert.InDelta(t, (1.0+0.7+0.4)/3, idx.Average(), 1e-9)
}

func TestPersonaValidate(t *testing.T) {
	valid := Persona{
		Name: "Maria",
		Role: "Head of Product",
		BehaviorDials: BehaviorDials{
			QuestionPropensity:      QuestionPropensity{WhenUncertain: 0.6, WhenBudget: 0.5},
			TangentPropensity:       TangentPropensity{AfterFieldCapture: 0.4},
			ElaborationDistribution: ElaborationDistribution{TwoSentences: 0.35},
		},
	}
	require.NoError(t, valid.Validate())

	missingName := valid
	missingName.Name = ""
	assert.Error(t, missingName.Validate())

	missingRole := valid
	missingRole.Role = ""
	assert.Error(t, missingRole.Validate())

	badDial := valid
	badDial.BehaviorDials.QuestionPropensity.WhenUncertain = 1.4
	assert.Error(t, badDial.Validate())

	negativeDial := valid
	negativeDial.BehaviorDials.TangentPropensity.AfterFieldCapture = -0.1
	assert.Error(t, negativeDial.Validate())
}

func TestScenarioValidate(t *testing.T) {
	valid := Scenario{
		Title: "Urgent Backfill",
		PressureIndex: PressureIndex{
			Timeline: PressureHigh,
			Quality:  PressureMedium,
			Budget:   PressureLow,
		},
	}
	require.NoError(t, valid.Validate())

	missingTitle := valid
	missingTitle.Title = ""
	assert.Error(t, missingTitle.Validate())

	badPressure := valid
	badPressure.PressureIndex.Budget = "extreme"
	assert.Error(t, badPressure.Validate())

	badTurns := valid
	badTurns.MaxTurns = -1
	assert.Error(t, badTurns.Validate())
}

const personaYAML = `
name: Maria Santos
role: Head of Product at a healthtech scale-up
version: "2"
background: Scaling the product org from 10 to 30 engineers.
voice: Direct, slightly impatient.
goals:
  - Hire a senior backend engineer within six weeks
behavior_dials:
  question_propensity:
    when_uncertain: 0.6
    when_budget: 0.5
  tangent_propensity:
    after_field_capture: 0.4
  hesitation_patterns:
    - "Hmm…"
    - "Honestly…"
  elaboration_distribution:
    one_sentence: 0.5
    two_sentences: 0.35
    three_sentences: 0.15
`

const scenarioYAML = `
title: Urgent Backend Backfill
version: "1"
entry_context: |
  A senior engineer resigned last week; the roadmap slips without a backfill.
pressure_index:
  timeline: high
  quality: medium
  budget: low
success_criteria:
  - all_mandatory_fields_captured
  - summary_provided
max_turns: 12
`

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPersona(t *testing.T) {
	p, err := LoadPersona(writeDoc(t, "persona.yaml", personaYAML))
	require.NoError(t, err)

	assert.Equal(t, "Maria Santos", p.Name)
	assert.Equal(t, "2", p.Version)
	assert.Equal(t, 0.6, p.BehaviorDials.QuestionPropensity.WhenUncertain)
	assert.Equal(t, []string{"Hmm…", "Honestly…"}, p.BehaviorDials.HesitationPatterns)
	assert.Equal(t, 0.35, p.BehaviorDials.ElaborationDistribution.TwoSentences)
}

func TestLoadPersona_Invalid(t *testing.T) {
	_, err := LoadPersona(writeDoc(t, "persona.yaml", "name: X\n"))
	assert.Error(t, err)

	_, err = LoadPersona(writeDoc(t, "persona.yaml", "not: [valid"))
	assert.Error(t, err)

	_, err = LoadPersona(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(writeDoc(t, "scenario.yaml", scenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "Urgent Backend Backfill", s.Title)
	assert.Equal(t, PressureHigh, s.PressureIndex.Timeline)
	assert.Equal(t, PressureLow, s.PressureIndex.Budget)
	assert.Equal(t, []string{"all_mandatory_fields_captured", "summary_provided"}, s.SuccessCriteria)
	assert.Equal(t, 12, s.MaxTurns)
	assert.Contains(t, s.EntryContext, "roadmap slips")
}
