package pathutil_test

import (
	"strings"
	"testing"

	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName_Valid(t *testing.T) {
	valid := []string{"pre-purge-1700000000000", "nightly", "v1.0", "my_backup", "snap+1", "café"}
	for _, name := range valid {
		assert.NoError(t, pathutil.ValidateName(name), "should accept: %s", name)
	}
}

func TestValidateName_Invalid(t *testing.T) {
	invalid := []string{"", "..", "a..b", ".hidden", "a/b", "a\\b", "c:d", "has space", "tab\tname", "nul\x00", "semi;colon"}
	for _, name := range invalid {
		err := pathutil.ValidateName(name)
		require.ErrorIs(t, err, errclass.ErrNameInvalid, "should reject: %q", name)
	}
}

func TestValidateName_TooLong(t *testing.T) {
	err := pathutil.ValidateName(strings.Repeat("a", pathutil.MaxNameLength+1))
	require.ErrorIs(t, err, errclass.ErrNameInvalid)
}

func TestNormalizeName_NFC(t *testing.T) {
	decomposed := "cafe\u0301"
	got, err := pathutil.NormalizeName(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", got)
}
