package password

import (
	"strings"
)

// Hash returns an encoded, salted hash of password using the configured algorithm.
// It only fails on unusable input (empty, or longer than the algorithm accepts)
// or when the system random source fails.
func (c Config) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordEmpty
	}

	switch c.algorithm() {
	case AlgorithmArgon2id:
		return c.hashArgon2id(password)
	default:
		return c.hashBcrypt(password)
	}
}

// Verify checks whether password matches the given encoded hash.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed/unsupported hashes.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	switch {
	case isBcryptHash(encodedHash):
		return verifyBcrypt(encodedHash, password)
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return c.verifyArgon2id(encodedHash, password)
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether encodedHash was produced with a different
// algorithm or cost than the current configuration.
func (c Config) NeedsRehash(encodedHash string) bool {
	switch c.algorithm() {
	case AlgorithmArgon2id:
		params, _, _, err := decodeArgon2id(encodedHash)
		if err != nil {
			return true
		}
		return params.MemoryKiB != c.Argon2.MemoryKiB ||
			params.Iterations != c.Argon2.Iterations ||
			params.Parallelism != c.Argon2.Parallelism
	default:
		if !isBcryptHash(encodedHash) {
			return true
		}
		cost, err := bcryptCost(encodedHash)
		if err != nil {
			return true
		}
		return cost != c.bcryptCost()
	}
}

func (c Config) algorithm() Algorithm {
	if c.Algorithm == "" {
		return AlgorithmBcrypt
	}
	return c.Algorithm
}
