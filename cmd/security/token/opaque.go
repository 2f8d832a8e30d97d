package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionTokenBytes is the amount of random material mixed into a session token.
const SessionTokenBytes = 32

// NewSessionToken returns an opaque bearer token: the hex SHA-256 of random
// bytes, the current timestamp and a random UUID. The result is 64 hex chars.
func NewSessionToken(now time.Time) (string, error) {
	buf := make([]byte, SessionTokenBytes, SessionTokenBytes+8+16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}

	buf = binary.BigEndian.AppendUint64(buf, uint64(now.UnixNano())) // #nosec G115 -- bit pattern only.

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	buf = append(buf, id[:]...)

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}
