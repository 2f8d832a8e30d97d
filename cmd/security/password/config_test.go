package password

import (
	"errors"
	"testing"
)

var passwordEnvKeys = []string{
	"PARTSBIN_PASSWORD_ALGORITHM",
	"PARTSBIN_BCRYPT_COST",
	"PARTSBIN_PASSWORD_MIN_LEN",
	"PARTSBIN_PASSWORD_MAX_LEN",
	"PARTSBIN_PASSWORD_REJECT_VERY_WEAK",
	"PARTSBIN_ARGON2_MEMORY_KIB",
	"PARTSBIN_ARGON2_ITERATIONS",
	"PARTSBIN_ARGON2_PARALLELISM",
	"PARTSBIN_ARGON2_SALT_LEN",
	"PARTSBIN_ARGON2_KEY_LEN",
}

func TestFromEnv_Defaults(t *testing.T) {
	unsetAll(t, passwordEnvKeys)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Algorithm != AlgorithmBcrypt || cfg.BcryptCost != 10 {
		t.Fatalf("unexpected hashing defaults: %+v", cfg)
	}
	if cfg.Policy.MinLength != def.Policy.MinLength {
		t.Fatalf("min length mismatch")
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("PARTSBIN_PASSWORD_ALGORITHM", "argon2id")
	t.Setenv("PARTSBIN_BCRYPT_COST", "12")
	t.Setenv("PARTSBIN_PASSWORD_MIN_LEN", "10")
	t.Setenv("PARTSBIN_PASSWORD_MAX_LEN", "200")
	t.Setenv("PARTSBIN_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("PARTSBIN_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("PARTSBIN_ARGON2_ITERATIONS", "4")
	t.Setenv("PARTSBIN_ARGON2_PARALLELISM", "2")
	t.Setenv("PARTSBIN_ARGON2_SALT_LEN", "24")
	t.Setenv("PARTSBIN_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Algorithm != AlgorithmArgon2id || cfg.BcryptCost != 12 {
		t.Fatalf("algorithm override failed: %+v", cfg)
	}
	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Argon2.MemoryKiB != 32768 || cfg.Argon2.Iterations != 4 || cfg.Argon2.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Argon2)
	}
	if cfg.Argon2.SaltLength != 24 || cfg.Argon2.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Argon2)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"min above max":       {"PARTSBIN_PASSWORD_MIN_LEN": "20", "PARTSBIN_PASSWORD_MAX_LEN": "10"},
		"bcrypt cost too low": {"PARTSBIN_BCRYPT_COST": "2"},
		"unknown algorithm":   {"PARTSBIN_PASSWORD_ALGORITHM": "md5"},
		"bcrypt max len":      {"PARTSBIN_PASSWORD_MAX_LEN": "100"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			unsetAll(t, passwordEnvKeys)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestFromEnv_UnknownAlgorithmIsTyped(t *testing.T) {
	unsetAll(t, passwordEnvKeys)
	t.Setenv("PARTSBIN_PASSWORD_ALGORITHM", "scrypt")

	_, err := FromEnv()
	if !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}
