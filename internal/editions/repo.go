package editions

import "context"

// Repo defines persistence operations for edition records.
type Repo interface {
	Upsert(ctx context.Context, rec Record) (Record, error)
	GetByEditionID(ctx context.Context, editionID string) (Record, error)
	List(ctx context.Context, limit, offset int) ([]Record, error)
}
