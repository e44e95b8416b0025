package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreCache(t *testing.T) {
	c := NewScoreCache(2, time.Minute)

	_, ok := c.Get("где общежитие", "ru")
	assert.False(t, ok)

	c.Set("где общежитие", "ru", map[string]float64{"uniroom": 0.9})
	got, ok := c.Get("Где ОБЩЕЖИТИЕ", "ru")
	require.True(t, ok)
	assert.Equal(t, 0.9, got["uniroom"])

	// Returned maps are copies.
	got["uniroom"] = 0
	again, _ := c.Get("где общежитие", "ru")
	assert.Equal(t, 0.9, again["uniroom"])

	_, ok = c.Get("где общежитие", "kz")
	assert.False(t, ok)

	stats := c.GetStats()
	assert.EqualValues(t, 2, stats.Hits)
	assert.EqualValues(t, 2, stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 2, stats.Capacity)

	c.ResetStats()
	assert.Zero(t, c.GetStats().Hits)
}

func TestScoreCacheEvictsAndPurges(t *testing.T) {
	c := NewScoreCache(2, time.Minute)
	c.Set("a", "ru", map[string]float64{"x": 1})
	c.Set("b", "ru", map[string]float64{"x": 2})
	c.Set("c", "ru", map[string]float64{"x": 3})

	_, ok := c.Get("a", "ru")
	assert.False(t, ok)
	assert.Equal(t, 2, c.GetStats().Size)

	c.Purge()
	assert.Equal(t, 0, c.GetStats().Size)
}
