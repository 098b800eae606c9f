package cerr

import (
	"errors"
	"fmt"

	"github.com/kelo-robotics/fmlib/pkg/storage"
)

func WrapStorageReadError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	if errors.Is(err, storage.ErrUnavailable) {
		return NewError(Unavailable, fmt.Sprintf("store unavailable reading %s", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to read %s: %w", target, err))
}

func WrapStorageWriteError(target string, err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return NewError(Unavailable, fmt.Sprintf("store unavailable writing %s", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to write %s: %w", target, err))
}

func WrapStorageDeleteError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to delete %s: %w", target, err))
}
