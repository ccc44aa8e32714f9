package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCacheExpiresEntries(t *testing.T) {
	c := NewEmbeddingCache(Config{TTL: time.Minute})
	current := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	key := c.BuildSignature("hash:384", "Analyse des risques")
	c.Set(key, Entry{Vector: []float32{0.1, 0.2}, Embedder: "hash:384"})

	entry, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, entry.Vector)

	current = current.Add(2 * time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestEmbeddingCacheSignatureIgnoresCaseAndSpaces(t *testing.T) {
	c := NewEmbeddingCache(Config{})
	assert.Equal(t, c.BuildSignature("e", "  Conclusion "), c.BuildSignature("e", "conclusion"))
	assert.NotEqual(t, c.BuildSignature("e1", "conclusion"), c.BuildSignature("e2", "conclusion"))
}

func TestEmbeddingCacheEvictsOldestWhenFull(t *testing.T) {
	c := NewEmbeddingCache(Config{MaxEntries: 2})
	current := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		current = current.Add(time.Second)
		return current
	}

	c.Set("a", Entry{Vector: []float32{1}})
	c.Set("b", Entry{Vector: []float32{2}})
	c.Set("c", Entry{Vector: []float32{3}})

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestEmbeddingCacheReturnsCopies(t *testing.T) {
	c := NewEmbeddingCache(Config{})
	vector := []float32{1, 2}
	c.Set("k", Entry{Vector: vector})
	vector[0] = 9

	entry, ok := c.Get("k")
	require.True(t, ok)
	entry.Vector[1] = 9

	again, _ := c.Get("k")
	assert.Equal(t, []float32{1, 2}, again.Vector)
}
