package session

import (
	"strings"
	"testing"
)

func TestNormalizeJoinCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc234", "ABC234"},
		{"  ABC234  ", "ABC234"},
		{"aBc234", "ABC234"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeJoinCode(tc.in); got != tc.want {
			t.Fatalf("NormalizeJoinCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJoinCodeShape(t *testing.T) {
	svc := NewService(nil, nil)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := svc.newJoinCode()
		if len(code) != joinCodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), joinCodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(joinCodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected varied codes, got %d distinct", len(seen))
	}
}
