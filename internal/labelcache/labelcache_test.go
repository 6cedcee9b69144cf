package labelcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur = f.cur.Add(d)
}

func newTestCache(ttl time.Duration, capacity int) (*Cache, *fakeClock) {
	c := New(ttl, capacity)
	clk := newFakeClock()
	c.now = clk.now
	return c, clk
}

func TestGet_Miss(t *testing.T) {
	c, _ := newTestCache(time.Hour, 10)

	_, ok := c.Get("Q42", "en")
	assert.False(t, ok)
}

func TestSetGet_Roundtrip(t *testing.T) {
	c, _ := newTestCache(time.Hour, 10)

	c.Set("Q42", "en", "Douglas Adams")
	v, ok := c.Get("Q42", "en")
	assert.True(t, ok)
	assert.Equal(t, "Douglas Adams", v)
}

func TestGet_LanguageIsPartOfKey(t *testing.T) {
	c, _ := newTestCache(time.Hour, 10)

	c.Set("Q146", "en", "house cat")
	c.Set("Q146", "de", "Hauskatze")

	en, ok := c.Get("Q146", "en")
	assert.True(t, ok)
	assert.Equal(t, "house cat", en)

	de, ok := c.Get("Q146", "de")
	assert.True(t, ok)
	assert.Equal(t, "Hauskatze", de)

	_, ok = c.Get("Q146", "fr")
	assert.False(t, ok)
}

func TestGet_TTLExpiry(t *testing.T) {
	c, clk := newTestCache(time.Hour, 10)

	c.Set("Q42", "en", "Douglas Adams")
	clk.advance(59 * time.Minute)

	v, ok := c.Get("Q42", "en")
	assert.True(t, ok)
	assert.Equal(t, "Douglas Adams", v)

	clk.advance(2 * time.Minute)

	_, ok = c.Get("Q42", "en")
	assert.False(t, ok, "entry past TTL must be treated as absent")
	assert.Equal(t, 0, c.Len(), "expired entry is purged on read")
}

func TestSet_RefreshesTimestamp(t *testing.T) {
	c, clk := newTestCache(time.Hour, 10)

	c.Set("Q42", "en", "Douglas Adams")
	clk.advance(50 * time.Minute)
	c.Set("Q42", "en", "Douglas Adams")
	clk.advance(50 * time.Minute)

	// 100 minutes since first insert, 50 since the overwrite.
	_, ok := c.Get("Q42", "en")
	assert.True(t, ok)
}

func TestEviction_LRUOrder(t *testing.T) {
	c, _ := newTestCache(time.Hour, 3)

	c.Set("A", "en", "a")
	c.Set("B", "en", "b")
	c.Set("C", "en", "c")

	// Touch A so B becomes the least recently used.
	_, ok := c.Get("A", "en")
	assert.True(t, ok)

	c.Set("D", "en", "d")

	_, ok = c.Get("B", "en")
	assert.False(t, ok, "B was least recently used and must be evicted")
	for _, id := range []string{"A", "C", "D"} {
		_, ok = c.Get(id, "en")
		assert.True(t, ok, "%s should survive eviction", id)
	}
	assert.Equal(t, 3, c.Len())
}

func TestEviction_NeverExceedsCapacity(t *testing.T) {
	c, _ := newTestCache(time.Hour, 5)

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("Q%d", i), "en", "label")
		assert.LessOrEqual(t, c.Len(), 5)
	}

	// Only the five most recent survive.
	for i := 45; i < 50; i++ {
		_, ok := c.Get(fmt.Sprintf("Q%d", i), "en")
		assert.True(t, ok)
	}
}

func TestSet_OverwriteDoesNotGrow(t *testing.T) {
	c, _ := newTestCache(time.Hour, 3)

	c.Set("Q1", "en", "one")
	c.Set("Q1", "en", "uno")
	assert.Equal(t, 1, c.Len())

	v, ok := c.Get("Q1", "en")
	assert.True(t, ok)
	assert.Equal(t, "uno", v)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(time.Hour, 100)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("Q%d", i%50)
				c.Set(id, "en", "label")
				c.Get(id, "en")
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 100)
}
