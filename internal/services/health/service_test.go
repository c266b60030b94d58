package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

func TestStatusWithoutDatabase(t *testing.T) {
	got := NewService(nil).Status(context.Background())
	if got["ok"] != true || got["database"] != "memory" {
		t.Fatalf("unexpected status %v", got)
	}
}

func TestStatusDatabaseOK(t *testing.T) {
	got := NewService(fakePinger{}).Status(context.Background())
	if got["ok"] != true || got["database"] != "ok" {
		t.Fatalf("unexpected status %v", got)
	}
}

func TestStatusDatabaseDown(t *testing.T) {
	got := NewService(fakePinger{err: errors.New("refused")}).Status(context.Background())
	if got["ok"] != false || got["database"] != "unavailable" {
		t.Fatalf("unexpected status %v", got)
	}
}
