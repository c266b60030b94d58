package object

import (
	"errors"
	"testing"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "editions/1/diario.pdf", want: "editions/1/diario.pdf"},
		{name: "simple prefix", prefix: "root", key: "editions/1/diario.pdf", want: "root/editions/1/diario.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "editions/1/diario.pdf", want: "root/editions/1/diario.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/editions/1/diario.pdf", want: "root/editions/1/diario.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "editions/1/diario.pdf", want: "root/sub/editions/1/diario.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ApplyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("ApplyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "editions/1/a.pdf", want: "editions/1/a.pdf"},
		{in: "/editions//1/./a.pdf", want: "editions/1/a.pdf"},
		{in: "editions\\1\\a.pdf", want: "editions/1/a.pdf"},
		{in: "../secret", wantErr: true},
		{in: "editions/../../secret", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q) expected ErrInvalidKey, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestEditionKey(t *testing.T) {
	if got := EditionKey("4521", "diario-22.pdf"); got != "editions/4521/diario-22.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
}
