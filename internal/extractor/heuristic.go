package extractor

import (
	"context"
	"regexp"
	"strings"
)

// HeuristicExtractor implements Extractor with per-field pattern matching.
// Patterns are compiled once at construction.
type HeuristicExtractor struct {
	rules map[string][]*regexp.Regexp
}

// Candidate value length bounds. Matches outside these are discarded as
// noise rather than field values.
const (
	minValueLen = 2
	maxValueLen = 80
)

// NewHeuristicExtractor creates the default rule-based extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	compile := func(patterns ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			out = append(out, regexp.MustCompile(p))
		}
		return out
	}

	return &HeuristicExtractor{
		rules: map[string][]*regexp.Regexp{
			"job_title": compile(
				`(?i)(?:job title|position|role|hiring for|looking for|need a|want a)\s*:?\s*((?:[\w+#./-]+ ){0,4}(?:developer|engineer|manager|analyst|specialist|coordinator|director|lead|architect|consultant|designer|recruiter|accountant|writer|administrator|technician))`,
				`(?i)(?:we need|hiring)\s+(?:an?\s+)?((?:[\w+#./-]+ ){0,4}(?:developer|engineer|manager|analyst|specialist|coordinator|director|lead|architect|consultant|designer))`,
			),
			"workplace_type": compile(
				`(?i)\b(remote|hybrid|on-?site)\b`,
			),
			"employment_type": compile(
				`(?i)\b(full[- ]?time|part[- ]?time|contract|internship)\b`,
			),
			"location": compile(
				`(?i)(?:based in\s+|located in\s+|office in\s+|location\s*:?\s*)([A-Za-z][\w .,-]{1,40}?)(?:[.!?\n]|$)`,
			),
			"seniority_level": compile(
				`(?i)\b(junior|entry[- ]level|mid[- ]level|intermediate|senior|staff|principal|lead|director)\b`,
			),
			"skills": compile(
				`(?i)(?:skills|technologies|tools|must have|experience with|proficient in|knowledge of)\s*:?\s*([^.!?\n]{5,})`,
			),
			"salary_range": compile(
				`\$[\d,]+(?:k)?(?:\s*(?:-|to)\s*\$?[\d,]+(?:k)?)?`,
				`(?i)(?:salary|compensation|pay)\s*(?:range)?\s*:?\s*([^.!?\n]{3,})`,
			),
			"responsibilities": compile(
				`(?i)(?:responsibilities|duties|will be responsible for|role involves)\s*:?\s*([^.!?\n]{10,})`,
			),
		},
	}
}

// Extract runs every rule for every requested field over the conversation.
// Fields with no rule fall back to a generic "<label>: value" pattern built
// from the field description.
func (h *HeuristicExtractor) Extract(ctx context.Context, conversation string, spec FieldSpec) (map[string]string, error) {
	found := make(map[string]string)

	for field, description := range spec {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		patterns, ok := h.rules[field]
		if !ok {
			patterns = []*regexp.Regexp{genericPattern(description)}
		}

		for _, re := range patterns {
			if value := firstMatch(re, conversation); value != "" {
				found[field] = value
				break
			}
		}
	}

	return found, nil
}

func firstMatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	value := m[0]
	if len(m) > 1 && m[1] != "" {
		value = m[1]
	}
	value = strings.TrimSpace(value)
	if len(value) < minValueLen || len(value) > maxValueLen {
		return ""
	}
	return value
}

func genericPattern(description string) *regexp.Regexp {
	label := regexp.QuoteMeta(strings.ToLower(description))
	return regexp.MustCompile(`(?i)` + label + `\s*(?:is|will be|:)\s*([^.!?\n]{2,60})`)
}

var _ Extractor = (*HeuristicExtractor)(nil)
