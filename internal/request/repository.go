package request

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists request envelopes in a live collection with a parallel
// archive. A record never exists in both under the same identity.
type Repository interface {
	Create(ctx context.Context, r *TaskRequest) error
	// Get reads from the live collection. A record stored in a deprecated
	// format is stripped via MigrationRules, archived, and reported as an
	// error.
	Get(ctx context.Context, id uuid.UUID) (*TaskRequest, error)
	GetArchived(ctx context.Context, id uuid.UUID) (*TaskRequest, error)
	List(ctx context.Context) ([]*TaskRequest, error)
	ListArchived(ctx context.Context) ([]*TaskRequest, error)
	Update(ctx context.Context, r *TaskRequest) error
	// Archive moves the record from the live collection to the archive.
	// Archiving an already-archived record is a no-op.
	Archive(ctx context.Context, r *TaskRequest) error
}
