package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kelo-robotics/fmlib/internal/task"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
	"github.com/kelo-robotics/fmlib/pkg/migrate"
	"github.com/kelo-robotics/fmlib/pkg/storage"
)

const (
	tasksPrefix         = "tasks"
	tasksArchivePrefix  = "tasks_archive"
	statusPrefix        = "task_status"
	statusArchivePrefix = "task_status_archive"
)

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(prefix string, id uuid.UUID) string {
	return fmt.Sprintf("%s/%s.yaml", prefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(tasksPrefix, t.TaskID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	if err := r.writeStatus(ctx, statusPrefix, &t.Status); err != nil {
		return err
	}
	return r.writeTask(ctx, tasksPrefix, t)
}

func (r *YAMLRepository) writeTask(ctx context.Context, prefix string, t *task.Task) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task: %w", err))
	}
	if err := r.storage.Write(ctx, path(prefix, t.TaskID), data); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}

func (r *YAMLRepository) writeStatus(ctx context.Context, prefix string, s *task.TaskStatus) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task status: %w", err))
	}
	if err := r.storage.Write(ctx, path(prefix, s.TaskID), data); err != nil {
		return cerr.WrapStorageWriteError("task status", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	data, err := r.storage.Read(ctx, path(tasksPrefix, id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task: %w", err))
	}
	if !migrate.Validates(doc, task.MigrationRules) {
		return r.deprecate(ctx, id, doc)
	}
	var t task.Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task: %w", err))
	}
	return &t, nil
}

// deprecate strips the invalid fields of a legacy record, marks it
// DEPRECATED and moves it with its status record to the archive. The
// stripped task is returned so callers can still inspect what survived.
func (r *YAMLRepository) deprecate(ctx context.Context, id uuid.UUID, doc map[string]any) (*task.Task, error) {
	res := migrate.Apply(ctx, doc, task.MigrationRules)
	slog.WarnContext(ctx, "task has a deprecated format",
		"task_id", id, "nulled", res.Nulled, "dropped", res.Dropped)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal deprecated task: %w", err))
	}
	var t task.Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal deprecated task: %w", err))
	}
	t.TaskID = id
	t.Status.TaskID = id
	t.Status.Status = task.StatusDeprecated

	if err := r.writeStatus(ctx, statusArchivePrefix, &t.Status); err != nil {
		return nil, err
	}
	if err := r.storage.Delete(ctx, path(statusPrefix, id)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, cerr.WrapStorageDeleteError("task status", err)
	}
	if err := r.writeTask(ctx, tasksArchivePrefix, &t); err != nil {
		return nil, err
	}
	if err := r.storage.Delete(ctx, path(tasksPrefix, id)); err != nil {
		return nil, cerr.WrapStorageDeleteError("task", err)
	}
	return &t, nil
}

func (r *YAMLRepository) GetArchived(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	data, err := r.storage.Read(ctx, path(tasksArchivePrefix, id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("archived task", err)
	}
	var t task.Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task: %w", err))
	}
	return &t, nil
}

func (r *YAMLRepository) GetStatus(ctx context.Context, id uuid.UUID) (*task.TaskStatus, error) {
	return r.getStatus(ctx, statusPrefix, id)
}

func (r *YAMLRepository) GetArchivedStatus(ctx context.Context, id uuid.UUID) (*task.TaskStatus, error) {
	return r.getStatus(ctx, statusArchivePrefix, id)
}

func (r *YAMLRepository) getStatus(ctx context.Context, prefix string, id uuid.UUID) (*task.TaskStatus, error) {
	data, err := r.storage.Read(ctx, path(prefix, id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("task status", err)
	}
	var s task.TaskStatus
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task status: %w", err))
	}
	return &s, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*task.Task, error) {
	return r.list(ctx, tasksPrefix)
}

func (r *YAMLRepository) ListArchived(ctx context.Context) ([]*task.Task, error) {
	return r.list(ctx, tasksArchivePrefix)
}

func (r *YAMLRepository) list(ctx context.Context, prefix string) ([]*task.Task, error) {
	paths, err := r.storage.List(ctx, prefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}
	sort.Strings(paths)

	var all []*task.Task
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var t task.Task
		if err := yaml.Unmarshal(data, &t); err != nil {
			continue
		}
		all = append(all, &t)
	}
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(tasksPrefix, t.TaskID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	if err := r.writeStatus(ctx, statusPrefix, &t.Status); err != nil {
		return err
	}
	return r.writeTask(ctx, tasksPrefix, t)
}

func (r *YAMLRepository) Archive(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(tasksPrefix, t.TaskID))
	if err != nil {
		return cerr.WrapStorageReadError("task", err)
	}
	if !exists {
		// Already archived: keep Archive idempotent.
		archived, err := r.storage.Exists(ctx, path(tasksArchivePrefix, t.TaskID))
		if err != nil {
			return cerr.WrapStorageReadError("task archive", err)
		}
		if archived {
			return nil
		}
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}

	// Status record first so a crash between the two moves never leaves an
	// archived task with a live status record.
	if err := r.writeStatus(ctx, statusArchivePrefix, &t.Status); err != nil {
		return err
	}
	if err := r.storage.Delete(ctx, path(statusPrefix, t.TaskID)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return cerr.WrapStorageDeleteError("task status", err)
	}
	if err := r.writeTask(ctx, tasksArchivePrefix, t); err != nil {
		return err
	}
	if err := r.storage.Delete(ctx, path(tasksPrefix, t.TaskID)); err != nil {
		return cerr.WrapStorageDeleteError("task", err)
	}
	return nil
}
