package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/hrygo/agentrouter/ai/internal/strutil"
)

// truncate truncates a string to maxLen characters (Unicode-safe).
func truncate(s string, maxLen int) string {
	return strutil.Truncate(s, maxLen)
}

// countContains returns how many of the needles occur in s.
func countContains(s string, needles []string) int {
	n := 0
	for _, p := range needles {
		if strings.Contains(s, p) {
			n++
		}
	}
	return n
}

// containsAny checks if s contains any of the patterns.
func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// MessageHash returns the content key of a message: hex SHA-256 of its NFC form.
func MessageHash(message string) string {
	sum := sha256.Sum256([]byte(strutil.NFC(message)))
	return hex.EncodeToString(sum[:])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
