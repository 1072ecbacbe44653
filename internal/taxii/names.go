package taxii

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims and NFC normalizes a collection or service name so that
// visually identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
