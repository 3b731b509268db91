package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSessionName(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"Get me a property report for 123 Main Street Memphis", "123 Main Street Memphis"},
		{"Inspect 42 Oak Lane for hail damage", "Property: 42 Oak Lane"},
		{"What's the weather in Memphis, TN", "Weather: Memphis, TN"},
		{"Draft an email to John about the leak", "Email: John about the leak"},
		{"Find GAF shingle suppliers near me", "Search: GAF shingle suppliers near me"},
		{"Create an estimate for the Johnson residence", "Estimate: The Johnson residence"},
		{"Hi there", "There"},
		{"hello", "Hello"},
		{"please   help me with my   inbox", "Help me with my inbox"},
		{"", fallbackSessionName},
		{"   ", fallbackSessionName},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateSessionName(tt.message))
		})
	}
}

func TestGenerateSessionNameTruncatesLongFallback(t *testing.T) {
	name := GenerateSessionName("Tell me everything there is to know about the history of asphalt shingles in America")

	assert.True(t, strings.HasSuffix(name, "..."))
	assert.LessOrEqual(t, utf8.RuneCountInString(name), 50)
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(name, "..."), " "))
}

func TestGenerateSessionNameTruncatesLongCapture(t *testing.T) {
	name := GenerateSessionName("What's the weather in Lake Havasu City Arizona and the surrounding desert towns")

	assert.True(t, strings.HasPrefix(name, "Weather: "))
	assert.LessOrEqual(t, utf8.RuneCountInString(strings.TrimPrefix(name, "Weather: ")), 40)
}
