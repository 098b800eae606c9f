package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kelo-robotics/fmlib/internal/timetable"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
	"github.com/kelo-robotics/fmlib/pkg/storage"
)

const (
	timetablesPrefix = "timetables"
	archivePrefix    = "timetables_archive"
)

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

// Prefix is the storage prefix solver-written timetables land under. The
// directory watcher uses it to scope filesystem events.
func Prefix() string {
	return timetablesPrefix
}

func path(prefix, robotID string) string {
	return fmt.Sprintf("%s/%s.yaml", prefix, robotID)
}

func (r *YAMLRepository) Get(ctx context.Context, robotID string) (*timetable.Timetable, error) {
	return r.get(ctx, timetablesPrefix, robotID)
}

func (r *YAMLRepository) GetArchived(ctx context.Context, robotID string) (*timetable.Timetable, error) {
	return r.get(ctx, archivePrefix, robotID)
}

func (r *YAMLRepository) get(ctx context.Context, prefix, robotID string) (*timetable.Timetable, error) {
	data, err := r.storage.Read(ctx, path(prefix, robotID))
	if err != nil {
		return nil, cerr.WrapStorageReadError("timetable", err)
	}
	var t timetable.Timetable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal timetable: %w", err))
	}
	t.Reindex()
	return &t, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*timetable.Timetable, error) {
	paths, err := r.storage.List(ctx, timetablesPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("timetables", err)
	}
	sort.Strings(paths)

	var all []*timetable.Timetable
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var t timetable.Timetable
		if err := yaml.Unmarshal(data, &t); err != nil {
			continue
		}
		t.Reindex()
		all = append(all, &t)
	}
	return all, nil
}

// Save writes the whole ztp/graph pair in one atomic storage write.
func (r *YAMLRepository) Save(ctx context.Context, t *timetable.Timetable) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal timetable: %w", err))
	}
	if err := r.storage.Write(ctx, path(timetablesPrefix, t.RobotID), data); err != nil {
		return cerr.WrapStorageWriteError("timetable", err)
	}
	return nil
}

func (r *YAMLRepository) Archive(ctx context.Context, t *timetable.Timetable) error {
	exists, err := r.storage.Exists(ctx, path(timetablesPrefix, t.RobotID))
	if err != nil {
		return cerr.WrapStorageReadError("timetable", err)
	}
	if !exists {
		archived, err := r.storage.Exists(ctx, path(archivePrefix, t.RobotID))
		if err != nil {
			return cerr.WrapStorageReadError("timetable archive", err)
		}
		if archived {
			return nil
		}
		return cerr.NewError(cerr.NotFound, "timetable not found", nil)
	}
	if err := r.storage.Move(ctx, path(timetablesPrefix, t.RobotID), path(archivePrefix, t.RobotID)); err != nil {
		return cerr.WrapStorageWriteError("timetable archive", err)
	}
	return nil
}

func (r *YAMLRepository) Delete(ctx context.Context, robotID string) error {
	if err := r.storage.Delete(ctx, path(timetablesPrefix, robotID)); err != nil {
		return cerr.WrapStorageDeleteError("timetable", err)
	}
	return nil
}
