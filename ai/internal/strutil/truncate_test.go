package strutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"empty string", "", 10, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 5, "hello..."},
		{"negative maxLen", "hello", -1, ""},
		{"zero maxLen", "hello", 0, ""},
		{"cyrillic exact", "общежитие", 9, "общежитие"},
		{"cyrillic truncated", "общежитие", 4, "обще..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		input    string
		n        int
		expected string
	}{
		{"расписание занятий", 10, "расписание"},
		{"абв", 5, "абв"},
		{"абв", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Prefix(tt.input, tt.n))
		})
	}
}

func TestFold(t *testing.T) {
	decomposed := "То\u0438\u0306"
	assert.Equal(t, "\u0442\u043e\u0439", Fold(decomposed))
	assert.Equal(t, "То\u0439", NFC(decomposed))
	assert.Equal(t, "где общежитие", Fold("ГДЕ Общежитие"))
}
