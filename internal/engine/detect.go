package engine

import "strings"

// summaryPhrases mark a SUT turn as a role summary.
var summaryPhrases = []string{
	"here's the role",
	"here is the role",
	"to summarize",
	"summary of the role",
	"candidate preview",
	"job description",
	"role summary",
	"should i lock these in",
	"great, i've got everything",
}

// confirmationPhrases mark a proxy turn as confirming the summary.
var confirmationPhrases = []string{
	"yes",
	"looks good",
	"that's correct",
	"perfect",
	"sounds good",
	"that works",
	"confirmed",
	"accurate",
	"exactly what i need",
}

// IsSummary reports whether a SUT reply presents a role summary.
func IsSummary(text string) bool {
	return containsAny(text, summaryPhrases)
}

// IsConfirmation reports whether a proxy reply confirms a summary.
func IsConfirmation(text string) bool {
	return containsAny(text, confirmationPhrases)
}

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
