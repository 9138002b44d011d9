package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// keyAlphabet deliberately omits uppercase so keys survive
// case-insensitive transports untouched.
const keyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateKey mints a key of the form tf-{env}-{32 random chars}. The
// env segment makes it obvious at a glance which deployment a leaked
// key belongs to.
func GenerateKey(env string) (string, error) {
	tail, err := randomToken(32)
	if err != nil {
		return "", fmt.Errorf("generate random: %w", err)
	}
	return fmt.Sprintf("tf-%s-%s", env, tail), nil
}

// HashKey returns the SHA-256 hex digest of an API key. Config files
// and logs only ever see the digest.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// KeyPrefix returns the loggable identity of a key: scheme, environment,
// and the first 8 characters of the random tail. Inputs that do not
// look like generated keys are truncated outright.
func KeyPrefix(key string) string {
	if scheme, rest, ok := strings.Cut(key, "-"); ok {
		if env, tail, ok := strings.Cut(rest, "-"); ok {
			if len(tail) > 8 {
				tail = tail[:8]
			}
			return scheme + "-" + env + "-" + tail
		}
	}
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// randomToken draws n characters from keyAlphabet with rejection
// sampling, keeping the distribution uniform.
func randomToken(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			// 252 is the largest multiple of len(keyAlphabet) below
			// 256; values past it would skew the draw.
			if b >= 252 {
				continue
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// KeyMetadata holds the metadata for an API key. Zero limits mean the
// platform defaults apply.
type KeyMetadata struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	RPMLimit           int    `json:"rpm_limit,omitempty"`
	DailyDispatchLimit int    `json:"daily_dispatch_limit,omitempty"`
}
