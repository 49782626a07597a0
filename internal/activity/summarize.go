package activity

import (
	"regexp"
	"strings"
)

// DefaultPhrases are the activity keywords, in priority order.
var DefaultPhrases = []string{
	"Building",
	"Created",
	"Deployed",
	"Fixed",
	"Updated",
	"Integrating",
	"Developing",
	"Setting up",
	"Configuring",
	"Testing",
	"Debugging",
}

// DefaultSummaryLength is the maximum summary length in characters.
const DefaultSummaryLength = 100

// Summarizer extracts a short activity label from message text.
type Summarizer struct {
	patterns []*regexp.Regexp
	maxLen   int
}

// NewSummarizer builds a summarizer over phrases, checked in order.
// A non-positive maxLen uses DefaultSummaryLength.
func NewSummarizer(phrases []string, maxLen int) *Summarizer {
	if maxLen <= 0 {
		maxLen = DefaultSummaryLength
	}
	patterns := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		if strings.TrimSpace(p) == "" {
			continue
		}
		patterns = append(patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(p)))
	}
	return &Summarizer{patterns: patterns, maxLen: maxLen}
}

var defaultSummarizer = NewSummarizer(DefaultPhrases, DefaultSummaryLength)

// Summarize uses the default phrase list and length.
func Summarize(text string) string {
	return defaultSummarizer.Summarize(text)
}

// Summarize returns the window of text starting at the first phrase (by
// list order, not by position in text) that occurs anywhere in text,
// case-insensitively. Without a match it returns the leading window.
// The result is trimmed of surrounding whitespace.
func (s *Summarizer) Summarize(text string) string {
	for _, re := range s.patterns {
		if loc := re.FindStringIndex(text); loc != nil {
			return strings.TrimSpace(prefixRunes(text[loc[0]:], s.maxLen))
		}
	}
	return strings.TrimSpace(prefixRunes(text, s.maxLen))
}

// prefixRunes returns at most n leading characters of s. Characters are
// Unicode code points, so a character outside the BMP counts once.
func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
