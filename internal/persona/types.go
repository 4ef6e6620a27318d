// Package persona provides the persona and scenario records that drive a
// simulation run. Both are loaded once from YAML documents and are immutable
// for the lifetime of the run.
package persona

import "fmt"

// PressureLevel is an ordinal severity rating for one pressure dimension.
type PressureLevel string

const (
	PressureHigh   PressureLevel = "high"
	PressureMedium PressureLevel = "medium"
	PressureLow    PressureLevel = "low"
)

// Weight maps the ordinal level onto the numeric scale used when deriving
// run probabilities. Unknown levels fall back to medium.
func (p PressureLevel) Weight() float64 {
	switch p {
	case PressureHigh:
		return 1.0
	case PressureLow:
		return 0.4
	default:
		return 0.7
	}
}

// QuestionPropensity holds per-context probabilities for asking questions.
type QuestionPropensity struct {
	WhenUncertain float64 `yaml:"when_uncertain"`
	WhenBudget    float64 `yaml:"when_budget"`
}

// TangentPropensity holds probabilities for drifting off-topic.
type TangentPropensity struct {
	AfterFieldCapture float64 `yaml:"after_field_capture"`
}

// ElaborationDistribution is a probability mass over response lengths.
type ElaborationDistribution struct {
	OneSentence    float64 `yaml:"one_sentence"`
	TwoSentences   float64 `yaml:"two_sentences"`
	ThreeSentences float64 `yaml:"three_sentences"`
}

// BehaviorDials are the persona-scoped knobs folded into the interaction
// contract at run start.
type BehaviorDials struct {
	QuestionPropensity      QuestionPropensity      `yaml:"question_propensity"`
	TangentPropensity       TangentPropensity       `yaml:"tangent_propensity"`
	HesitationPatterns      []string                `yaml:"hesitation_patterns"`
	ElaborationDistribution ElaborationDistribution `yaml:"elaboration_distribution"`
	TopicPreferences        []string                `yaml:"topic_preferences,omitempty"`
}

// Persona describes the simulated hiring manager the proxy agent role-plays.
type Persona struct {
	Name       string   `yaml:"name"`
	Role       string   `yaml:"role"`
	Version    string   `yaml:"version,omitempty"`
	Background string   `yaml:"background,omitempty"`
	Voice      string   `yaml:"voice,omitempty"`
	Goals      []string `yaml:"goals,omitempty"`

	RoleAdherence       string   `yaml:"role_adherence,omitempty"`
	ForbiddenBehaviors  []string `yaml:"forbidden_behaviors,omitempty"`
	RequiredBehaviors   []string `yaml:"required_behaviors,omitempty"`
	ResponseFormula     string   `yaml:"response_formula,omitempty"`
	RecoveryPhrase      string   `yaml:"recovery_phrase,omitempty"`
	CharacterMotivation string   `yaml:"character_motivation,omitempty"`

	BehaviorDials BehaviorDials `yaml:"behavior_dials"`
}

// PressureIndex holds the scenario's named severity dimensions.
type PressureIndex struct {
	Timeline PressureLevel `yaml:"timeline"`
	Quality  PressureLevel `yaml:"quality"`
	Budget   PressureLevel `yaml:"budget"`
}

// Average returns the mean numeric weight over all dimensions.
func (p PressureIndex) Average() float64 {
	return (p.Timeline.Weight() + p.Quality.Weight() + p.Budget.Weight()) / 3
}

// Scenario describes the situation a run plays out.
type Scenario struct {
	Title        string `yaml:"title"`
	Version      string `yaml:"version,omitempty"`
	Goal         string `yaml:"goal,omitempty"`
	EntryContext string `yaml:"entry_context,omitempty"`

	PressureIndex      PressureIndex `yaml:"pressure_index"`
	MustHitMetrics     []string      `yaml:"must_hit_metrics,omitempty"`
	ConsultativeTopics []string      `yaml:"consultative_topics,omitempty"`
	SuccessCriteria    []string      `yaml:"success_criteria"`

	MaxTurns int `yaml:"max_turns,omitempty"` // 0 = use configured default
}

// Validate checks a persona for the fields the engine cannot run without.
func (p *Persona) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("persona name is required")
	}
	if p.Role == "" {
		return fmt.Errorf("persona %q: role is required", p.Name)
	}
	d := p.BehaviorDials
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"question_propensity.when_uncertain", d.QuestionPropensity.WhenUncertain},
		{"question_propensity.when_budget", d.QuestionPropensity.WhenBudget},
		{"tangent_propensity.after_field_capture", d.TangentPropensity.AfterFieldCapture},
		{"elaboration_distribution.two_sentences", d.ElaborationDistribution.TwoSentences},
	} {
		if v.val < 0 || v.val > 1 {
			return fmt.Errorf("persona %q: %s must be in [0,1], got %v", p.Name, v.name, v.val)
		}
	}
	return nil
}

// Validate checks a scenario for the fields the engine cannot run without.
func (s *Scenario) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("scenario title is required")
	}
	if s.MaxTurns < 0 {
		return fmt.Errorf("scenario %q: max_turns must be >= 0, got %d", s.Title, s.MaxTurns)
	}
	for _, lvl := range []PressureLevel{s.PressureIndex.Timeline, s.PressureIndex.Quality, s.PressureIndex.Budget} {
		switch lvl {
		case "", PressureHigh, PressureMedium, PressureLow:
		default:
			return fmt.Errorf("scenario %q: unknown pressure level %q", s.Title, lvl)
		}
	}
	return nil
}
