package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Version = 19 // argon2.Version is 0x13 (19)
)

// hashArgon2id encodes as:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func (c Config) hashArgon2id(password string) (string, error) {
	if c.Policy.MaxLength > 0 && utf8.RuneCountInString(password) > c.Policy.MaxLength {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, c.Argon2.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		c.Argon2.Iterations,
		c.Argon2.MemoryKiB,
		c.Argon2.Parallelism,
		c.Argon2.KeyLength,
	)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		c.Argon2.MemoryKiB,
		c.Argon2.Iterations,
		c.Argon2.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

func (c Config) verifyArgon2id(encodedHash, password string) (bool, error) {
	params, salt, expected, err := decodeArgon2id(encodedHash)
	if err != nil {
		return false, err
	}

	// Attacker-controlled hash strings must not drive pathological resource usage.
	if !withinReasonableBounds(params, c.argon2Limits()) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- expected length is bounded by decodeArgon2id(); safe conversion.
	)

	if subtle.ConstantTimeCompare(key, expected) == 1 {
		return true, nil
	}
	return false, nil
}

// argon2Limits falls back to the defaults when the caller configured bcrypt
// and left the Argon2 params zero.
func (c Config) argon2Limits() Argon2idParams {
	if c.Argon2.MemoryKiB == 0 || c.Argon2.Iterations == 0 || c.Argon2.Parallelism == 0 {
		return DefaultConfig().Argon2
	}
	return c.Argon2
}

func withinReasonableBounds(got Argon2idParams, limits Argon2idParams) bool {
	// Older/smaller settings verify; wildly larger settings do not.
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if int(got.Parallelism) > int(limits.Parallelism)*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v=19" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	if !strings.HasPrefix(parts[3], "m=") {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	hash, err := b64.DecodeString(parts[5])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	params := Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),        // #nosec G115 -- bounded to 255 above.
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by encoded length.
		KeyLength:   uint32(len(hash)), // #nosec G115 -- bounded by encoded length.
	}

	return params, salt, hash, nil
}
