package id

import (
	"github.com/oklog/ulid/v2"
)

// New returns a ULID string. ULIDs sort by creation time, so user ids and
// notification task ids stay roughly ordered in logs and table scans.
func New() string {
	return ulid.Make().String()
}

// Valid reports whether s is a well-formed ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
