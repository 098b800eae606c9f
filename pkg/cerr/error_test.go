package cerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kelo-robotics/fmlib/pkg/storage"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(NotFound, "task not found", nil)
	assert.Equal(t, "[NotFound] task not found", err.Error())

	wrapped := NewError(Internal, "server error", errors.New("disk full"))
	assert.Equal(t, "[Internal] server error: disk full", wrapped.Error())
	assert.NotEmpty(t, wrapped.Stack)
}

func TestIsCode(t *testing.T) {
	err := NewError(FailedPrecondition, "task is frozen", nil)

	assert.True(t, IsCode(err, FailedPrecondition))
	assert.False(t, IsCode(err, NotFound))
	assert.True(t, IsCode(fmt.Errorf("transition: %w", err), FailedPrecondition))
	assert.False(t, IsCode(errors.New("plain"), FailedPrecondition))
}

func TestHTTPCodeMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound.HTTPCode())
	assert.Equal(t, http.StatusConflict, AlreadyExists.HTTPCode())
	assert.Equal(t, http.StatusBadRequest, InvalidArgument.HTTPCode())
	assert.Equal(t, http.StatusPreconditionFailed, FailedPrecondition.HTTPCode())
	assert.Equal(t, http.StatusServiceUnavailable, Unavailable.HTTPCode())
	assert.Equal(t, http.StatusInternalServerError, Internal.HTTPCode())
}

func TestWrapStorageErrors(t *testing.T) {
	notFound := WrapStorageReadError("task", fmt.Errorf("tasks/x.yaml: %w", storage.ErrNotFound))
	assert.True(t, IsCode(notFound, NotFound))

	unavailable := WrapStorageReadError("task", fmt.Errorf("s3: %w", storage.ErrUnavailable))
	assert.True(t, IsCode(unavailable, Unavailable))

	internal := WrapStorageWriteError("task", errors.New("disk full"))
	assert.True(t, IsCode(internal, Internal))
}
