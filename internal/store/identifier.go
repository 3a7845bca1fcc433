package store

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeID validates an identity id and returns its NFC form, so an id
// sent by a client and the same id read back from a filename (which some
// filesystems store decomposed) resolve to one catalog key.
func NormalizeID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if strings.ContainsAny(id, `/\`+"\x00") {
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidIdentifier, id)
	}
	if strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q starts with a dot", ErrInvalidIdentifier, id)
	}
	return norm.NFC.String(id), nil
}

// idFromFilename strips the extension from a stored file name.
func idFromFilename(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return norm.NFC.String(name)
}
