package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestNoOpportunities(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"ND", true},
		{" nd \n", true},
		{`"ND"`, true},
		{"**ND**", true},
		{"ND.", true},
		{"", true},
		{"🚨 **[Obras]**\n📦 **Objeto:** Reforma do FUNDO municipal", false},
		{"NDA assinado", false},
		{"Pregão 10/2026 - ND", false},
		{"ND\n\nNão foram encontradas licitações nesta edição.", true},
		{"ND - nada comercial", true},
		{"**ND** (nenhuma oportunidade)", true},
		{"“ND”: apenas atos de pessoal", true},
		{"ND2 lote", false},
		{"Nada comercial hoje", false},
	}
	for _, tt := range tests {
		if got := NoOpportunities(tt.content); got != tt.want {
			t.Fatalf("NoOpportunities(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestPromptTemplate(t *testing.T) {
	p, ok := PromptTemplate("v1")
	if !ok || !strings.Contains(p, "Licitações") || !strings.Contains(p, `"ND"`) {
		t.Fatalf("unexpected v1 prompt ok=%v: %q", ok, p)
	}
	if p2, ok := PromptTemplate("v2"); !ok || p2 == p {
		t.Fatalf("expected distinct v2 prompt")
	}
	if fallback, ok := PromptTemplate("v9"); ok || fallback != p {
		t.Fatalf("unknown version should fall back to v1 and report false")
	}
}

func TestPromptVersions(t *testing.T) {
	got := strings.Join(PromptVersions(), ",")
	if got != "v1,v2" {
		t.Fatalf("unexpected prompt versions %q", got)
	}
	if _, ok := PromptTemplate(" V2 "); !ok {
		t.Fatalf("version lookup should ignore case and spaces")
	}
}

type flakyClient struct {
	errs  []error
	calls int
}

func (f *flakyClient) Summarize(ctx context.Context, input SummarizeInput) (Summary, error) {
	f.calls++
	if len(f.errs) >= f.calls && f.errs[f.calls-1] != nil {
		return Summary{}, f.errs[f.calls-1]
	}
	return Summary{Content: "ND", Model: "test"}, nil
}

func TestRetryingRetriesOnceOnTransient(t *testing.T) {
	prev := retryBaseDelay
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = prev })

	base := &flakyClient{errs: []error{fmt.Errorf("openai http status 502: bad gateway")}}
	out, err := NewRetrying(base, "run-1").Summarize(context.Background(), SummarizeInput{Text: "x"})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if base.calls != 2 || out.Content != "ND" {
		t.Fatalf("expected retry success, calls=%d", base.calls)
	}
}

func TestRetryingSkipsPermanentErrors(t *testing.T) {
	base := &flakyClient{errs: []error{errors.New("openai http status 401: invalid api key")}}
	if _, err := NewRetrying(base, "run-1").Summarize(context.Background(), SummarizeInput{}); err == nil {
		t.Fatalf("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("permanent errors must not retry, calls=%d", base.calls)
	}
}

func TestShouldRetry(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":        {nil, false},
		"deadline":   {context.DeadlineExceeded, true},
		"canceled":   {context.Canceled, false},
		"5xx":        {errors.New("openai http status 503"), true},
		"rate limit": {errors.New("openai http status 429: slow down"), true},
		"reset":      {errors.New("read tcp: connection reset by peer"), true},
		"bad req":    {errors.New("openai http status 400: bad request"), false},
	}
	for name, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry = %v, want %v", name, got, tc.want)
		}
	}
}

func TestSanitizeErrorTruncatesOnRuneBoundary(t *testing.T) {
	got := sanitizeError(errors.New(strings.Repeat("ção ", 120)))
	if !utf8.ValidString(got) || len(got) > 300 {
		t.Fatalf("unexpected sanitized error (%d bytes, valid=%v)", len(got), utf8.ValidString(got))
	}
}
