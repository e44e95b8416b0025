package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is too long", 10, "this is to..."},
		{"", 5, ""},
		{"где общежитие", 3, "где..."},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncate(tt.input, tt.maxLen))
		})
	}
}

func TestMessageHash(t *testing.T) {
	composed := "\u0439"
	decomposed := "\u0438\u0306"

	assert.Equal(t, MessageHash(composed), MessageHash(decomposed))
	assert.Len(t, MessageHash("где общежитие"), 64)
	assert.NotEqual(t, MessageHash("где общежитие"), MessageHash("Где общежитие"))
}

func TestContainsHelpers(t *testing.T) {
	needles := []string{"общежит", "комнат", "кампус"}

	assert.Equal(t, 2, countContains("комната в общежитии", needles))
	assert.Equal(t, 0, countContains("расписание", needles))
	assert.True(t, containsAny("новый кампус", needles))
	assert.False(t, containsAny("", needles))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 0.4, clamp01(0.4))
	assert.Equal(t, 1.0, clamp01(1.7))
}
