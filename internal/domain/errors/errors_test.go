package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Constructors(t *testing.T) {
	err := NewAppError(http.StatusBadRequest, CodeInvalidInput, "bad", ErrBadRequest)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, CodeInvalidInput, err.Code)
	assert.Equal(t, "bad", err.Message)
	assert.Equal(t, ErrBadRequest.Error(), err.Error())
	assert.ErrorIs(t, err, ErrBadRequest)

	notFound := NotFound("missing")
	assert.Equal(t, http.StatusNotFound, notFound.Status)
	assert.Equal(t, CodeNotFound, notFound.Code)

	conflict := Conflict("in progress")
	assert.Equal(t, http.StatusConflict, conflict.Status)
	assert.Equal(t, CodeConflict, conflict.Code)

	internal := InternalError(stderrors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, CodeInternalError, internal.Code)

	custom := NewError("custom", ErrUnsupportedChain)
	assert.Equal(t, ErrUnsupportedChain.Error(), custom.Error())

	unauth := Unauthorized("unauthorized")
	assert.Equal(t, http.StatusUnauthorized, unauth.Status)
	assert.Equal(t, CodeUnauthorized, unauth.Code)

	noInner := &AppError{Message: "plain"}
	assert.Equal(t, "plain", noInner.Error())
}

func TestEngineFailure(t *testing.T) {
	assert.NoError(t, EngineFailure("upsert", nil))

	err := EngineFailure("upsert", stderrors.New("disk I/O error"))
	assert.ErrorIs(t, err, ErrEngineFailure)
	assert.Contains(t, err.Error(), "upsert")
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("token: %w", ErrNotFound), http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("op 2: %w", ErrInvalidInput), http.StatusBadRequest, CodeInvalidInput},
		{ErrUnsupportedChain, http.StatusBadRequest, CodeUnsupportedChain},
		{ErrStoreClosed, http.StatusServiceUnavailable, CodeStoreClosed},
		{EngineFailure("commit", stderrors.New("locked")), http.StatusServiceUnavailable, CodeEngineFailure},
		{stderrors.New("other"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		assert.Equal(t, tc.status, got.Status, tc.err.Error())
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
	}

	appErr := Conflict("busy")
	assert.Same(t, appErr, FromError(fmt.Errorf("wrapped: %w", appErr)))
}

func TestIsEngineFailure(t *testing.T) {
	assert.True(t, IsEngineFailure(EngineFailure("list", stderrors.New("no such table"))))
	assert.False(t, IsEngineFailure(ErrNotFound))
	assert.False(t, IsEngineFailure(nil))
}
