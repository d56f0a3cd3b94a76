package service

import (
	"strings"
)

const DefaultFallbackAnswer = "answer not found, try some other question"

var defaultRefusalPhrases = []string{"I don't know"}

// AnswerPolicy decides whether a model reply is a real answer. It is the only
// place that turns "the model could not answer" into the fallback text.
type AnswerPolicy struct {
	fallback string
	phrases  []string
}

func NewAnswerPolicy(fallback string, phrases []string) AnswerPolicy {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = DefaultFallbackAnswer
	}
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = normalizeReply(p); p != "" {
			normalized = append(normalized, p)
		}
	}
	if len(normalized) == 0 {
		for _, p := range defaultRefusalPhrases {
			normalized = append(normalized, normalizeReply(p))
		}
	}
	return AnswerPolicy{fallback: fallback, phrases: normalized}
}

func (p AnswerPolicy) Fallback() string {
	return p.fallback
}

// Apply returns the text to show and whether it is a real answer. Empty
// replies and replies containing a refusal phrase map to the fallback.
func (p AnswerPolicy) Apply(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return p.fallback, false
	}
	lower := normalizeReply(text)
	for _, phrase := range p.phrases {
		if strings.Contains(lower, phrase) {
			return p.fallback, false
		}
	}
	return text, true
}

func normalizeReply(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	return strings.ToLower(strings.TrimSpace(s))
}
