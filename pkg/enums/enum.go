// Package enums holds the string-backed enumerations persisted in the
// database and carried on the wire.
package enums

import (
	"fmt"
	"slices"
)

func member[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

func parseMember[T ~string](raw string, kind string, set []T) (T, error) {
	if v := T(raw); member(v, set) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
