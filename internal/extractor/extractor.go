// Package extractor locates mandatory field values in conversation text.
// The engine depends only on the Extractor interface; the heuristic
// implementation here is a collaborator whose correctness is separable from
// the turn-decision logic.
package extractor

import "context"

// FieldSpec maps field names to human-readable descriptions. The
// descriptions double as lookup labels for the heuristic rules.
type FieldSpec map[string]string

// Extractor finds mandatory field values in the conversation so far.
// The returned map contains only the fields that were found; a field absent
// from the result is missing from the conversation.
type Extractor interface {
	Extract(ctx context.Context, conversation string, spec FieldSpec) (map[string]string, error)
}

// DefaultFieldSpec returns the mandatory fields a recruiter intake
// conversation must capture.
func DefaultFieldSpec() FieldSpec {
	return FieldSpec{
		"job_title":       "Job Title",
		"workplace_type":  "Workplace Type",
		"employment_type": "Employment Type",
		"location":        "Location",
		"seniority_level": "Seniority Level",
		"skills":          "Skills",
		"salary_range":    "Salary Range",
	}
}
