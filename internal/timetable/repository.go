package timetable

import "context"

// Repository persists per-robot timetables. Save replaces the whole
// graph/ztp pair atomically; partial graph updates are never applied.
type Repository interface {
	Get(ctx context.Context, robotID string) (*Timetable, error)
	GetArchived(ctx context.Context, robotID string) (*Timetable, error)
	List(ctx context.Context) ([]*Timetable, error)
	Save(ctx context.Context, t *Timetable) error
	// Archive moves the timetable to the archive collection; a no-op when
	// it is already archived.
	Archive(ctx context.Context, t *Timetable) error
	Delete(ctx context.Context, robotID string) error
}
