package identity

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

// NewULID returns a 26-char ULID for now. IDs minted within the same
// millisecond stay strictly increasing, so users and sessions sort by creation.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now()
	}

	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(now.UTC()), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
