package errclass_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/asecn/memcore/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := errclass.ErrDuplicateID.WithMessage("entry with id abc already exists")
	assert.Equal(t, "E_DUPLICATE_ID: entry with id abc already exists", err.Error())
}

func TestError_ErrorCodeOnly(t *testing.T) {
	assert.Equal(t, "E_NOT_FOUND", errclass.ErrNotFound.Error())
}

func TestError_Is(t *testing.T) {
	err := errclass.ErrValidation.WithMessage("specific message")
	require.True(t, errors.Is(err, errclass.ErrValidation))
	require.False(t, errors.Is(err, errclass.ErrParse))
}

func TestError_IsThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("write entry: %w", errclass.ErrDuplicateID.WithMessagef("id %s", "x"))
	assert.ErrorIs(t, err, errclass.ErrDuplicateID)
	assert.Equal(t, "E_DUPLICATE_ID", errclass.Code(err))
}

func TestError_WrapKeepsCause(t *testing.T) {
	err := errclass.ErrIO.Wrap(fs.ErrPermission, "read store")
	assert.ErrorIs(t, err, errclass.ErrIO)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, "E_IO: read store: permission denied", err.Error())
}

func TestError_WrapWithoutMessage(t *testing.T) {
	err := errclass.ErrParse.Wrap(errors.New("unexpected end of JSON input"), "")
	assert.Equal(t, "E_PARSE: unexpected end of JSON input", err.Error())
}

func TestCode_Unclassified(t *testing.T) {
	assert.Equal(t, "", errclass.Code(errors.New("plain")))
	assert.Equal(t, "", errclass.Code(nil))
}

func TestError_AllClassesDistinct(t *testing.T) {
	all := []*errclass.Error{
		errclass.ErrValidation,
		errclass.ErrDuplicateID,
		errclass.ErrCorruption,
		errclass.ErrNotFound,
		errclass.ErrParse,
		errclass.ErrIO,
		errclass.ErrNameInvalid,
		errclass.ErrConflict,
	}
	seen := make(map[string]bool)
	for _, e := range all {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
}
