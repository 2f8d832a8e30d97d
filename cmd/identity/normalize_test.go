package identity

import "testing"

func TestNormalizeEmail_TrimsOnly(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM\t"); got != "Alice@Example.COM" {
		t.Fatalf("got %q", got)
	}
}

func TestValidEmail(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"alice@example.com", true},
		{"a.b+tag@sub.example.org", true},
		{"", false},
		{"no-at-sign", false},
		{"Bob <bob@example.com>", false},
		{"two@@example.com", false},
	}
	for _, tc := range cases {
		if got := ValidEmail(tc.in); got != tc.want {
			t.Fatalf("ValidEmail(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}
