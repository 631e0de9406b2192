package util

import "github.com/oklog/ulid/v2"

// NewID returns a lexically sortable ULID, optionally prefixed.
func NewID(prefix string) string {
	id := ulid.Make().String()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
