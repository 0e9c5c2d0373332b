// Package ids issues the ULID primary keys used for users, roles and permissions.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable identifier. Identifiers minted in
// the same millisecond keep increasing.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Valid reports whether s is a well-formed identifier, as accepted in URL
// path parameters.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
