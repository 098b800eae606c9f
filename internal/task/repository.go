package task

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists tasks and their status records. Each lives in a live
// collection with a parallel archive; a record never exists in both under
// the same identity, and a task and its status always move together.
type Repository interface {
	// Create stores the task and its status record.
	Create(ctx context.Context, t *Task) error
	// Get reads from the live collection. A record stored in a deprecated
	// format is stripped via MigrationRules, marked DEPRECATED, archived,
	// and the stripped task is returned.
	Get(ctx context.Context, id uuid.UUID) (*Task, error)
	GetArchived(ctx context.Context, id uuid.UUID) (*Task, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*TaskStatus, error)
	GetArchivedStatus(ctx context.Context, id uuid.UUID) (*TaskStatus, error)
	List(ctx context.Context) ([]*Task, error)
	ListArchived(ctx context.Context) ([]*Task, error)
	// Update rewrites the task and its status record.
	Update(ctx context.Context, t *Task) error
	// Archive moves the status record and then the task from the live
	// collections to the archives. Archiving an already-archived task is
	// a no-op.
	Archive(ctx context.Context, t *Task) error
}
