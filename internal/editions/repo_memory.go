package editions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo stores edition records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu        sync.RWMutex
	byEdition map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byEdition: make(map[string]Record)}
}

// Upsert inserts or replaces the record for rec.EditionID, keeping ID and CreatedAt stable.
func (r *MemoryRepo) Upsert(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.byEdition[rec.EditionID]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.byEdition[rec.EditionID] = rec
	return rec, nil
}

// GetByEditionID returns the record for a portal edition id.
func (r *MemoryRepo) GetByEditionID(ctx context.Context, editionID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byEdition[editionID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns records newest edition first.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Record, 0, len(r.byEdition))
	for _, rec := range r.byEdition {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number > out[j].Number
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Record{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
