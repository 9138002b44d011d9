package auth

import (
	"strings"
	"testing"
)

func TestGenerateKey_Format(t *testing.T) {
	for _, env := range []string{"prod", "staging", "dev"} {
		key, err := GenerateKey(env)
		if err != nil {
			t.Fatalf("GenerateKey(%q): %v", env, err)
		}
		want := "tf-" + env + "-"
		if !strings.HasPrefix(key, want) {
			t.Errorf("key %q should start with %q", key, want)
		}
		if len(key) != len(want)+32 {
			t.Errorf("key %q: expected %d chars, got %d", key, len(want)+32, len(key))
		}
		for _, c := range key[len(want):] {
			if !strings.ContainsRune(keyAlphabet, c) {
				t.Errorf("key tail contains %q, outside the alphabet", c)
			}
		}
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		key, err := GenerateKey("prod")
		if err != nil {
			t.Fatal(err)
		}
		if seen[key] {
			t.Fatalf("duplicate key after %d draws: %s", i, key)
		}
		seen[key] = true
	}
}

func TestHashKey(t *testing.T) {
	key := "tf-prod-abcdefghijklmnopqrstuvwxyz012345"
	hash := HashKey(key)

	if len(hash) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(hash))
	}
	if HashKey(key) != hash {
		t.Error("hashing is not deterministic")
	}
	if HashKey("tf-prod-different") == hash {
		t.Error("distinct keys should hash differently")
	}
}

func TestKeyPrefix(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"tf-prod-abcdefghijklmnopqrstuvwxyz012345", "tf-prod-abcdefgh"},
		{"tf-dev-12345678901234567890123456789012", "tf-dev-12345678"},
		{"short", "short"},
	}

	for _, tt := range tests {
		if got := KeyPrefix(tt.key); got != tt.expected {
			t.Errorf("KeyPrefix(%q) = %q, want %q", tt.key, got, tt.expected)
		}
	}
}

func TestKeyPrefix_NeverLeaksTail(t *testing.T) {
	key, err := GenerateKey("prod")
	if err != nil {
		t.Fatal(err)
	}
	prefix := KeyPrefix(key)
	if len(prefix) >= len(key) {
		t.Errorf("prefix %q does not truncate key %q", prefix, key)
	}
	if !strings.HasPrefix(key, prefix) {
		t.Errorf("prefix %q is not a prefix of %q", prefix, key)
	}
}
