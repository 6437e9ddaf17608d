// Package ids provides identity ID primitives (e.g., ULID) used across stores.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULID timestamps have millisecond precision, so two IDs minted in the
// same millisecond would otherwise order randomly by entropy. Monotonic
// entropy keeps same-millisecond IDs strictly increasing, which the
// stores rely on when they order rows by ID.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable and work well in distributed systems.
// Within a process, IDs are strictly increasing even inside one millisecond.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
