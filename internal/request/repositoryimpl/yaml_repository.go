package repositoryimpl

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kelo-robotics/fmlib/internal/request"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
	"github.com/kelo-robotics/fmlib/pkg/migrate"
	"github.com/kelo-robotics/fmlib/pkg/storage"
)

const (
	requestsPrefix = "requests"
	archivePrefix  = "requests_archive"
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

func (r *YAMLRepository) Create(ctx context.Context, req *request.TaskRequest) error {
	exists, err := r.storage.Exists(ctx, path(requestsPrefix, req.RequestID))
	if err != nil {
		return cerr.WrapStorageWriteError("request", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "request already exists", nil)
	}
	return r.write(ctx, requestsPrefix, req)
}

func (r *YAMLRepository) write(ctx context.Context, prefix string, req *request.TaskRequest) error {
	data, err := yaml.Marshal(req)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal request: %w", err))
	}
	if err := r.storage.Write(ctx, path(prefix, req.RequestID), data); err != nil {
		return cerr.WrapStorageWriteError("request", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id uuid.UUID) (*request.TaskRequest, error) {
	data, err := r.storage.Read(ctx, path(requestsPrefix, id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("request", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal request: %w", err))
	}
	if !migrate.Validates(doc, request.MigrationRules) {
		if err := r.deprecate(ctx, id, doc); err != nil {
			return nil, err
		}
		return nil, cerr.NewError(cerr.NotFound,
			fmt.Sprintf("request %s had a deprecated format and was archived", id), nil)
	}
	var req request.TaskRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal request: %w", err))
	}
	return &req, nil
}

// deprecate strips the invalid fields of a legacy record and moves what
// remains to the archive. Field errors are logged, not raised; only an
// archive-write failure surfaces.
func (r *YAMLRepository) deprecate(ctx context.Context, id uuid.UUID, doc map[string]any) error {
	res := migrate.Apply(ctx, doc, request.MigrationRules)
	slog.WarnContext(ctx, "request has a deprecated format",
		"request_id", id, "nulled", res.Nulled, "dropped", res.Dropped)
	data, err := yaml.Marshal(doc)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal deprecated request: %w", err))
	}
	if err := r.storage.Write(ctx, path(archivePrefix, id), data); err != nil {
		return cerr.WrapStorageWriteError("request archive", err)
	}
	if err := r.storage.Delete(ctx, path(requestsPrefix, id)); err != nil {
		return cerr.WrapStorageDeleteError("request", err)
	}
	return nil
}

func (r *YAMLRepository) GetArchived(ctx context.Context, id uuid.UUID) (*request.TaskRequest, error) {
	data, err := r.storage.Read(ctx, path(archivePrefix, id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("archived request", err)
	}
	var req request.TaskRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal request: %w", err))
	}
	return &req, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*request.TaskRequest, error) {
	return r.list(ctx, requestsPrefix)
}

func (r *YAMLRepository) ListArchived(ctx context.Context) ([]*request.TaskRequest, error) {
	return r.list(ctx, archivePrefix)
}

func (r *YAMLRepository) list(ctx context.Context, prefix string) ([]*request.TaskRequest, error) {
	paths, err := r.storage.List(ctx, prefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("requests", err)
	}
	sort.Strings(paths)

	var all []*request.TaskRequest
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var req request.TaskRequest
		if err := yaml.Unmarshal(data, &req); err != nil {
			continue
		}
		all = append(all, &req)
	}
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, req *request.TaskRequest) error {
	exists, err := r.storage.Exists(ctx, path(requestsPrefix, req.RequestID))
	if err != nil {
		return cerr.WrapStorageWriteError("request", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "request not found", nil)
	}
	return r.write(ctx, requestsPrefix, req)
}

func (r *YAMLRepository) Archive(ctx context.Context, req *request.TaskRequest) error {
	exists, err := r.storage.Exists(ctx, path(requestsPrefix, req.RequestID))
	if err != nil {
		return cerr.WrapStorageReadError("request", err)
	}
	if !exists {
		// Already archived: keep Archive idempotent.
		archived, err := r.storage.Exists(ctx, path(archivePrefix, req.RequestID))
		if err != nil {
			return cerr.WrapStorageReadError("request archive", err)
		}
		if archived {
			return nil
		}
		return cerr.NewError(cerr.NotFound, "request not found", nil)
	}
	if err := r.write(ctx, archivePrefix, req); err != nil {
		return err
	}
	if err := r.storage.Delete(ctx, path(requestsPrefix, req.RequestID)); err != nil {
		return cerr.WrapStorageDeleteError("request", err)
	}
	return nil
}
