package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSummary(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"To summarize the role: senior backend engineer, remote, full-time.", true},
		{"Here's the role I have so far. Should I lock these in?", true},
		{"Great, I've got everything I need for the job description.", true},
		{"What salary range do you have budgeted?", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSummary(tt.text), tt.text)
	}
}

func TestIsConfirmation(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Yes, that's correct.", true},
		{"Looks good to me.", true},
		{"Perfect, exactly what I need.", true},
		{"Actually, the title should be staff engineer.", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsConfirmation(tt.text), tt.text)
	}
}
