package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hrygo/agentrouter/ai/internal/strutil"
)

// ScoreCache memoises classifier score maps keyed by the folded message and language.
// It must be purged whenever the classifier learns, since learned examples change scores.
type ScoreCache struct {
	lru      *expirable.LRU[string, map[string]float64]
	capacity int

	statsMu        sync.Mutex
	hitCount       int64
	missCount      int64
	lastStatsReset time.Time
}

// NewScoreCache creates a cache holding up to capacity entries for ttl each.
func NewScoreCache(capacity int, ttl time.Duration) *ScoreCache {
	return &ScoreCache{
		lru:            expirable.NewLRU[string, map[string]float64](capacity, nil, ttl),
		capacity:       capacity,
		lastStatsReset: time.Now(),
	}
}

// Get returns a copy of the cached scores.
func (c *ScoreCache) Get(message, language string) (map[string]float64, bool) {
	scores, ok := c.lru.Get(c.hashKey(message, language))
	c.statsMu.Lock()
	if ok {
		c.hitCount++
	} else {
		c.missCount++
	}
	c.statsMu.Unlock()
	if !ok {
		return nil, false
	}
	slog.Debug("classifier cache hit", "message", truncate(message, 50))
	return maps.Clone(scores), true
}

// Set stores a copy of scores.
func (c *ScoreCache) Set(message, language string, scores map[string]float64) {
	c.lru.Add(c.hashKey(message, language), maps.Clone(scores))
}

// Purge drops every entry. Counters are kept.
func (c *ScoreCache) Purge() {
	c.lru.Purge()
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	UptimeSec int64   `json:"uptime_sec"`
}

// GetStats returns current cache statistics.
func (c *ScoreCache) GetStats() CacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	total := c.hitCount + c.missCount
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hitCount) / float64(total)
	}
	return CacheStats{
		Hits:      c.hitCount,
		Misses:    c.missCount,
		HitRate:   hitRate,
		Size:      c.lru.Len(),
		Capacity:  c.capacity,
		UptimeSec: int64(time.Since(c.lastStatsReset).Seconds()),
	}
}

// ResetStats zeroes the hit/miss counters.
func (c *ScoreCache) ResetStats() {
	c.statsMu.Lock()
	c.hitCount = 0
	c.missCount = 0
	c.lastStatsReset = time.Now()
	c.statsMu.Unlock()
}

func (c *ScoreCache) hashKey(message, language string) string {
	hash := sha256.Sum256([]byte(language + "\x00" + strutil.Fold(message)))
	return "classify:" + hex.EncodeToString(hash[:16])
}
