package llm

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Client abstracts LLM providers for gazette summarization.
type Client interface {
	Summarize(ctx context.Context, input SummarizeInput) (Summary, error)
}

// SummarizeInput captures the inputs needed to summarize one edition.
type SummarizeInput struct {
	Text          string
	PromptVersion string
	MonitorName   string
}

// Summary is the model's answer for one edition.
type Summary struct {
	Content          string
	Model            string
	HasOpportunities bool
	PromptTokens     int
	CompletionTokens int
}

// ErrEmptyResponse is returned when a provider answers without content.
var ErrEmptyResponse = errors.New("llm response empty")

// NoOpportunities reports whether content is the "nothing commercial" answer:
// a reply that opens with the token ND, ignoring leading quotes and emphasis.
// "ND - nada comercial" counts; "NDA assinado" does not.
func NoOpportunities(content string) bool {
	trimmed := strings.TrimLeft(strings.TrimSpace(content), " \t\r\n\"'`*_“”")
	if strings.Trim(trimmed, " \t\r\n\"'`*_.!:;“”") == "" {
		return true
	}
	if len(trimmed) < 2 || !strings.EqualFold(trimmed[:2], "ND") {
		return false
	}
	next, _ := utf8.DecodeRuneInString(trimmed[2:])
	return next == utf8.RuneError || !(unicode.IsLetter(next) || unicode.IsDigit(next))
}
