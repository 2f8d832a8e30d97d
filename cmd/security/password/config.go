package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm names the hashing scheme used for new hashes.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// bcryptMaxBytes is the input limit of bcrypt; longer inputs are rejected
// instead of silently truncated.
const bcryptMaxBytes = 72

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation at registration.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2idParams
	Policy     Policy
}

// DefaultConfig returns bcrypt at cost 10 with an 8..72 character policy.
func DefaultConfig() Config {
	// Clamp to [1..4] to keep resource usage predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: DefaultBcryptCost,
		Argon2: Argon2idParams{
			MemoryKiB:   64 * 1024,      // 64 MiB
			Iterations:  3,              // reasonable default for interactive logins
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      8,
			MaxLength:      bcryptMaxBytes,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - PARTSBIN_PASSWORD_ALGORITHM (bcrypt|argon2id)
// - PARTSBIN_BCRYPT_COST
// - PARTSBIN_PASSWORD_MIN_LEN
// - PARTSBIN_PASSWORD_MAX_LEN
// - PARTSBIN_PASSWORD_REJECT_VERY_WEAK (true/false)
// - PARTSBIN_ARGON2_MEMORY_KIB
// - PARTSBIN_ARGON2_ITERATIONS
// - PARTSBIN_ARGON2_PARALLELISM
// - PARTSBIN_ARGON2_SALT_LEN
// - PARTSBIN_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("PARTSBIN_PASSWORD_ALGORITHM"); ok {
		a, err := parseAlgorithm(v)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_PASSWORD_ALGORITHM: %w", err)
		}
		cfg.Algorithm = a
	}

	if v, ok := os.LookupEnv("PARTSBIN_BCRYPT_COST"); ok {
		n, err := atoiPositiveInt(v, bcrypt.MinCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = n
	}

	if v, ok := os.LookupEnv("PARTSBIN_PASSWORD_MIN_LEN"); ok {
		n, err := atoiPositiveInt(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("PARTSBIN_PASSWORD_MAX_LEN"); ok {
		n, err := atoiPositiveInt(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("PARTSBIN_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := parseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_PASSWORD_REJECT_VERY_WEAK: %w", err)
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if v, ok := os.LookupEnv("PARTSBIN_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Argon2.MemoryKiB = u
	}

	if v, ok := os.LookupEnv("PARTSBIN_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Argon2.Iterations = u
	}

	if v, ok := os.LookupEnv("PARTSBIN_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_ARGON2_PARALLELISM: %w", err)
		}
		p, err := u32ToU8(u)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Argon2.Parallelism = p
	}

	if v, ok := os.LookupEnv("PARTSBIN_ARGON2_SALT_LEN"); ok {
		u, err := atou32(v, 8, 64)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_ARGON2_SALT_LEN: %w", err)
		}
		cfg.Argon2.SaltLength = u
	}

	if v, ok := os.LookupEnv("PARTSBIN_ARGON2_KEY_LEN"); ok {
		u, err := atou32(v, 16, 64)
		if err != nil {
			return Config{}, fmt.Errorf("PARTSBIN_ARGON2_KEY_LEN: %w", err)
		}
		cfg.Argon2.KeyLength = u
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}
	if cfg.Algorithm == AlgorithmBcrypt && cfg.Policy.MaxLength > bcryptMaxBytes {
		return Config{}, fmt.Errorf(
			"password policy invalid: bcrypt accepts at most %d bytes, max_len=%d",
			bcryptMaxBytes,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func parseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case AlgorithmBcrypt:
		return AlgorithmBcrypt, nil
	case AlgorithmArgon2id:
		return AlgorithmArgon2id, nil
	default:
		return "", ErrUnknownAlgorithm
	}
}

func atoiPositiveInt(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	s = strings.TrimSpace(s)
	u64, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean")
	}
}
