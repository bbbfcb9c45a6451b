package util

import (
	"strings"
	"testing"
)

func TestNewAPIKeyFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		k := NewAPIKey()
		if !ValidAPIKeyFormat(k) {
			t.Fatalf("minted key fails own format check: %q", k)
		}
		if seen[k] {
			t.Fatalf("duplicate key minted: %q", k)
		}
		seen[k] = true
	}
}

func TestValidAPIKeyFormat(t *testing.T) {
	good := NewAPIKey()

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"minted key", good, true},
		{"empty", "", false},
		{"wrong prefix", "xxx_" + good[4:], false},
		{"too short", good[:len(good)-1], false},
		{"too long", good + "A", false},
		{"lowercase body", strings.ToLower(good), false},
		{"excluded ulid letters", "nbk_" + strings.Repeat("I", 26), false},
		{"prefix only", "nbk_", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidAPIKeyFormat(tt.key); got != tt.want {
				t.Fatalf("ValidAPIKeyFormat(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestKeyPrefixTruncates(t *testing.T) {
	k := "nbk_01HZXY0123456789ABCDEFGH"
	if got := KeyPrefix(k); got != "nbk_01HZXY" {
		t.Fatalf("KeyPrefix = %q", got)
	}
	if got := KeyPrefix("short"); got != "short" {
		t.Fatalf("KeyPrefix(short) = %q", got)
	}
}
