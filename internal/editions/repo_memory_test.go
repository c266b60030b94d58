package editions

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRepoUpsertKeepsIdentity(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	first, err := repo.Upsert(ctx, Record{EditionID: "1834", Number: 22, Status: StatusProcessing})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamps: %+v", first)
	}

	second, err := repo.Upsert(ctx, Record{EditionID: "1834", Number: 22, Status: StatusNotified})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if second.ID != first.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("upsert must keep id and created_at")
	}

	got, err := repo.GetByEditionID(ctx, "1834")
	if err != nil {
		t.Fatalf("GetByEditionID: %v", err)
	}
	if got.Status != StatusNotified || !got.Done() {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestMemoryRepoNotFound(t *testing.T) {
	if _, err := NewMemoryRepo().GetByEditionID(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoListOrdersByNumber(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	for _, rec := range []Record{
		{EditionID: "10", Number: 20},
		{EditionID: "12", Number: 22},
		{EditionID: "11", Number: 21},
	} {
		if _, err := repo.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	all, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Number != 22 || all[2].Number != 20 {
		t.Fatalf("unexpected order %+v", all)
	}

	page, _ := repo.List(ctx, 1, 1)
	if len(page) != 1 || page[0].Number != 21 {
		t.Fatalf("unexpected page %+v", page)
	}
	empty, _ := repo.List(ctx, 10, 5)
	if len(empty) != 0 {
		t.Fatalf("expected empty page")
	}
}

func TestRecordDone(t *testing.T) {
	for status, want := range map[string]bool{
		StatusNotified:   true,
		StatusNoText:     true,
		StatusFailed:     false,
		StatusDryRun:     false,
		StatusProcessing: false,
	} {
		if got := (Record{Status: status}).Done(); got != want {
			t.Fatalf("Done(%s) = %v, want %v", status, got, want)
		}
	}
}
