package password

import (
	"os"
	"testing"
)

// unsetAll unsets keys for the duration of the test and restores them afterwards.
func unsetAll(t *testing.T, keys []string) {
	t.Helper()
	for _, k := range keys {
		prev, had := os.LookupEnv(k)
		_ = os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(k, prev)
			} else {
				_ = os.Unsetenv(k)
			}
		})
	}
}
