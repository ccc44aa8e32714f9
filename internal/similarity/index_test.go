package similarity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/ai"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
)

// lengthEmbedder maps a text to a 2-dim vector so distances are predictable.
type lengthEmbedder struct {
	mu    sync.Mutex
	calls int
	name  string
}

func (e *lengthEmbedder) Name() string {
	if e.name == "" {
		return "length"
	}
	return e.name
}

func (e *lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, []float32{float32(len(text)), 0})
	}
	return vectors, nil
}

func openTestIndex(t *testing.T, path string, embedder ai.Embedder) *Index {
	t.Helper()
	index, err := Open(context.Background(), Config{Path: path, Embedder: embedder})
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	return index
}

func TestSearchOrdersByDistanceThenInsertion(t *testing.T) {
	index := openTestIndex(t, filepath.Join(t.TempDir(), "idx.db"), &lengthEmbedder{})
	ctx := context.Background()

	require.NoError(t, index.AddBatch(ctx, []string{"aaaa", "bb", "cc", "dddddd"}))

	results, err := index.Search(ctx, "xx", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "bb", results[0].Text)
	assert.Equal(t, "cc", results[1].Text)
	assert.Equal(t, "aaaa", results[2].Text)
	assert.Equal(t, 0.0, results[0].Distance)
	assert.Equal(t, 4.0, results[2].Distance)
}

func TestSearchReturnsAtMostK(t *testing.T) {
	index := openTestIndex(t, filepath.Join(t.TempDir(), "idx.db"), &lengthEmbedder{})
	ctx := context.Background()
	require.NoError(t, index.AddBatch(ctx, []string{"a", "bb"}))

	results, err := index.Search(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = index.Search(ctx, "a", 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestAddThenSearchFindsText(t *testing.T) {
	index := openTestIndex(t, filepath.Join(t.TempDir(), "idx.db"), ai.NewHashEmbedder(0))
	ctx := context.Background()

	added, err := index.SeedIfEmpty(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultSections), added)

	text := "Budget prévisionnel : détaillez les dépenses et les recettes attendues."
	require.NoError(t, index.Add(ctx, text))

	results, err := index.Search(ctx, text, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, text, results[0].Text)
}

func TestIndexPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.db")
	ctx := context.Background()

	first, err := Open(ctx, Config{Path: path, Embedder: &lengthEmbedder{}})
	require.NoError(t, err)
	added, err := first.SeedIfEmpty(ctx, []string{"un", "deux"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	require.NoError(t, first.Close())

	second := openTestIndex(t, path, &lengthEmbedder{})
	assert.Equal(t, 2, second.Len())

	added, err = second.SeedIfEmpty(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	results, err := second.Search(ctx, "xx", 1)
	require.NoError(t, err)
	assert.Equal(t, "un", results[0].Text)
}

func TestSeedIfEmptySharedFileSeedsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.db")
	ctx := context.Background()

	api := openTestIndex(t, path, &lengthEmbedder{})
	cli := openTestIndex(t, path, &lengthEmbedder{})

	var wg sync.WaitGroup
	counts := make([]int, 2)
	errs := make([]error, 2)
	for n, index := range []*Index{api, cli} {
		wg.Add(1)
		go func(n int, index *Index) {
			defer wg.Done()
			counts[n], errs[n] = index.SeedIfEmpty(ctx, nil)
		}(n, index)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, len(DefaultSections), counts[0]+counts[1])
	assert.Equal(t, len(DefaultSections), api.Len())
	assert.Equal(t, len(DefaultSections), cli.Len())

	reopened := openTestIndex(t, path, &lengthEmbedder{})
	assert.Equal(t, len(DefaultSections), reopened.Len())
}

func TestOpenRejectsDifferentEmbedder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.db")
	first := openTestIndex(t, path, &lengthEmbedder{name: "one"})
	require.NoError(t, first.Close())

	_, err := Open(context.Background(), Config{Path: path, Embedder: &lengthEmbedder{name: "two"}})
	assert.True(t, errors.Is(err, ErrEmbedderMismatch))
}

func TestSearchCachesQueryEmbeddings(t *testing.T) {
	embedder := &lengthEmbedder{}
	index := openTestIndex(t, filepath.Join(t.TempDir(), "idx.db"), embedder)
	ctx := context.Background()
	require.NoError(t, index.Add(ctx, "abc"))

	_, err := index.Search(ctx, "Conclusion", 1)
	require.NoError(t, err)
	_, err = index.Search(ctx, "conclusion ", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, embedder.calls)
}

func TestAddRejectsEmptyText(t *testing.T) {
	index := openTestIndex(t, filepath.Join(t.TempDir(), "idx.db"), &lengthEmbedder{})
	err := index.Add(context.Background(), "   ")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Equal(t, 0, index.Len())
}

func TestConcurrentAddsKeepPairsAligned(t *testing.T) {
	index := openTestIndex(t, filepath.Join(t.TempDir(), "idx.db"), &lengthEmbedder{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for n := 1; n <= 20; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = index.Add(ctx, strings.Repeat("x", n))
		}(n)
	}
	wg.Wait()

	require.Equal(t, 20, index.Len())
	results, err := index.Search(ctx, strings.Repeat("y", 7), 1)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 7), results[0].Text)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := "sections:\n  - \"Introduction : contexte\"\n  - \"  \"\n  - \"Conclusion : synthèse\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sections, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Introduction : contexte", "Conclusion : synthèse"}, sections)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("sections: []\n"), 0o644))
	_, err = LoadSeedFile(empty)
	assert.Error(t, err)
}
