// Package pathutil validates caller-supplied names that become file names,
// such as backup labels.
package pathutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/asecn/memcore/pkg/errclass"
)

// MaxNameLength bounds a name so that "<name>.json" fits common filesystems.
const MaxNameLength = 200

// NormalizeName NFC-normalizes name and checks it is safe to use as a single
// path component. It returns the normalized form.
func NormalizeName(name string) (string, error) {
	if name == "" {
		return "", errclass.ErrNameInvalid.WithMessage("name must not be empty")
	}

	name = norm.NFC.String(name)

	if name == "." || strings.Contains(name, "..") {
		return "", errclass.ErrNameInvalid.WithMessagef("name must not contain '..': %s", name)
	}
	if strings.HasPrefix(name, ".") {
		return "", errclass.ErrNameInvalid.WithMessagef("name must not start with '.': %s", name)
	}
	if strings.ContainsAny(name, "/\\:") {
		return "", errclass.ErrNameInvalid.WithMessagef("name must not contain separators: %s", name)
	}
	if len(name) > MaxNameLength {
		return "", errclass.ErrNameInvalid.WithMessagef("name longer than %d bytes", MaxNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return "", errclass.ErrNameInvalid.WithMessagef("name must not contain whitespace or control characters: %q", name)
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("._-+@", r) {
			return "", errclass.ErrNameInvalid.WithMessagef("name contains unsupported character %q: %s", r, name)
		}
	}

	return name, nil
}

// ValidateName checks name without returning the normalized form.
func ValidateName(name string) error {
	_, err := NormalizeName(name)
	return err
}
