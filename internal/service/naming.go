package service

import (
	"regexp"
	"strings"
	"unicode"
)

const fallbackSessionName = "New Conversation"

type namePattern struct {
	re     *regexp.Regexp
	prefix string
}

// Tried in order; the first capture wins.
var namePatterns = []namePattern{
	{regexp.MustCompile(`(?i)(?:property|report|roof|analysis)\s+(?:for|at|on)\s+(.{10,50})`), ""},
	{regexp.MustCompile(`(?i)(\d+\s+[A-Za-z]+(?:\s+[A-Za-z]+)?(?:\s+(?:st|street|ave|avenue|rd|road|dr|drive|ln|lane|blvd|way|ct|court))?)`), "Property: "},

	{regexp.MustCompile(`(?i)weather\s+(?:for|in|at)\s+([A-Za-z\s,]+)`), "Weather: "},
	{regexp.MustCompile(`(?i)forecast\s+(?:for|in|at)\s+([A-Za-z\s,]+)`), "Forecast: "},

	{regexp.MustCompile(`(?i)(?:draft|write|send)\s+(?:an?\s+)?email\s+(?:to|about|for)\s+(.{5,40})`), "Email: "},

	{regexp.MustCompile(`(?i)(?:search|find|look\s+up|research)\s+(?:for\s+)?(.{5,40})`), "Search: "},

	{regexp.MustCompile(`(?i)(?:price|cost|pricing)\s+(?:for|of)\s+(.{5,40})`), "Pricing: "},
	{regexp.MustCompile(`(?i)(.{5,30})\s+(?:price|cost|pricing)`), "Pricing: "},

	{regexp.MustCompile(`(?i)(?:customer|client)\s+(.{5,40})`), "Customer: "},
	{regexp.MustCompile(`(?i)(?:job|project)\s+(?:for|at|on)\s+(.{5,40})`), "Job: "},
	{regexp.MustCompile(`(?i)(?:schedule|appointment|meeting)\s+(?:for|with)\s+(.{5,40})`), "Schedule: "},
	{regexp.MustCompile(`(?i)(?:estimate|quote)\s+(?:for|on)\s+(.{5,40})`), "Estimate: "},
}

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	leadingFiller  = regexp.MustCompile(`(?i)^(hey|hi|hello|please|can you|could you|i need|i want|help me)\s+`)
	leadingLinkers = regexp.MustCompile(`(?i)^(to|with|for|about)\s+`)
)

// GenerateSessionName derives a short display name from the first message
// of a conversation. It never returns an empty string.
func GenerateSessionName(message string) string {
	cleaned := whitespaceRun.ReplaceAllString(strings.TrimSpace(message), " ")

	for _, p := range namePatterns {
		m := p.re.FindStringSubmatch(cleaned)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		title := capitalize(strings.TrimSpace(m[1]))
		if runes := []rune(title); len(runes) > 40 {
			title = string(runes[:37]) + "..."
		}
		return p.prefix + title
	}

	title := leadingFiller.ReplaceAllString(cleaned, "")
	title = leadingLinkers.ReplaceAllString(title, "")
	title = capitalize(title)

	if runes := []rune(title); len(runes) > 50 {
		truncated := string(runes[:47])
		if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 30 {
			title = truncated[:lastSpace] + "..."
		} else {
			title = truncated + "..."
		}
	}

	if title == "" {
		return fallbackSessionName
	}
	return title
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
