package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"gazette-monitor/internal/shared/storage/object"
)

func TestPutAndOpen(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.Put(ctx, "editions/4521/diario-22.pdf", "application/pdf", strings.NewReader("%PDF-1.7 body"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len("%PDF-1.7 body")) {
		t.Fatalf("unexpected size %d", n)
	}

	if _, err := store.Put(ctx, "editions/4521/diario-22.pdf", "application/pdf", strings.NewReader("%PDF-2.0")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	rc, err := store.Open(ctx, "editions/4521/diario-22.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "%PDF-2.0" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Put(context.Background(), "../outside.txt", "text/plain", strings.NewReader("x"))
	if !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.Open(context.Background(), "../outside.txt"); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey on open, got %v", err)
	}
}

func TestPutHonorsCanceledContext(t *testing.T) {
	store := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "a.txt", "text/plain", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
