package contextbuilder

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxTokens = 600
	defaultMaxChunks = 3
	referenceHeader  = "Sections de référence :"
)

type BuildInput struct {
	Title     string
	MaxTokens int
	MaxChunks int
}

type BuildOutput struct {
	ContextText string
	Chunks      []Chunk
	TokenCount  int
}

// Builder assembles the reference block appended to report prompts.
// Results are cached per title for a short time.
type Builder struct {
	retriever Retriever
	cache     *buildCache
}

func NewBuilder(retriever Retriever) *Builder {
	return &Builder{
		retriever: retriever,
		cache:     newBuildCache(90*time.Second, 256),
	}
}

// Build returns an empty output when nothing relevant was retrieved.
func (b *Builder) Build(ctx context.Context, input BuildInput) (BuildOutput, error) {
	if b.retriever == nil {
		return BuildOutput{}, fmt.Errorf("retriever is required")
	}
	input = normalizeBuildInput(input)
	if input.Title == "" {
		return BuildOutput{}, nil
	}

	cacheKey := buildCacheKey(input)
	if cached, ok := b.cache.get(cacheKey, time.Now()); ok {
		return cloneBuildOutput(cached), nil
	}

	chunks, err := b.retriever.Retrieve(ctx, RetrievalInput{
		Query: input.Title,
		Limit: input.MaxChunks,
	})
	if err != nil {
		return BuildOutput{}, err
	}
	chunks = dedupeChunks(chunks)

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	selected := make([]Chunk, 0, len(chunks))
	totalTokens := 0
	for _, chunk := range chunks {
		estimatedTokens := estimateTokens(chunk.Text)
		if estimatedTokens <= 0 {
			continue
		}
		if totalTokens+estimatedTokens > input.MaxTokens {
			continue
		}
		selected = append(selected, chunk)
		totalTokens += estimatedTokens
		if len(selected) >= input.MaxChunks {
			break
		}
	}

	output := BuildOutput{Chunks: selected, TokenCount: totalTokens}
	if len(selected) > 0 {
		builder := strings.Builder{}
		builder.WriteString(referenceHeader)
		builder.WriteString("\n")
		for index, chunk := range selected {
			builder.WriteString(fmt.Sprintf("[%d] %s\n", index+1, chunk.Text))
		}
		output.ContextText = strings.TrimSpace(builder.String())
	}

	b.cache.put(cacheKey, cloneBuildOutput(output), time.Now())
	return cloneBuildOutput(output), nil
}

func normalizeBuildInput(input BuildInput) BuildInput {
	input.Title = strings.TrimSpace(input.Title)
	if input.MaxTokens <= 0 {
		input.MaxTokens = defaultMaxTokens
	}
	if input.MaxChunks <= 0 {
		input.MaxChunks = defaultMaxChunks
	}
	return input
}

func buildCacheKey(input BuildInput) uint64 {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(strings.ToLower(input.Title)))
	_, _ = hash.Write([]byte{0})
	_, _ = hash.Write([]byte(fmt.Sprintf("%d|%d", input.MaxTokens, input.MaxChunks)))
	return hash.Sum64()
}

type cachedBuild struct {
	output    BuildOutput
	expiresAt time.Time
}

// buildCache evicts in insertion order once full. Expired entries stay in
// place until overwritten or evicted.
type buildCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	limit   int
	entries map[uint64]cachedBuild
	order   []uint64
}

func newBuildCache(ttl time.Duration, limit int) *buildCache {
	return &buildCache{
		ttl:     ttl,
		limit:   limit,
		entries: make(map[uint64]cachedBuild, limit),
	}
}

func (c *buildCache) get(key uint64, now time.Time) (BuildOutput, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) {
		return BuildOutput{}, false
	}
	return entry.output, true
}

func (c *buildCache) put(key uint64, output BuildOutput, now time.Time) {
	if c.limit <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = cachedBuild{output: output, expiresAt: now.Add(c.ttl)}

	for len(c.order) > c.limit {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

func cloneBuildOutput(value BuildOutput) BuildOutput {
	cloned := value
	cloned.Chunks = append([]Chunk(nil), value.Chunks...)
	return cloned
}

func dedupeChunks(chunks []Chunk) []Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	seen := make(map[string]Chunk, len(chunks))
	order := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		key := fragmentFingerprint(chunk.Text)
		if key == "" {
			continue
		}
		existing, exists := seen[key]
		if !exists {
			seen[key] = chunk
			order = append(order, key)
			continue
		}
		if chunk.Score > existing.Score {
			seen[key] = chunk
		}
	}

	result := make([]Chunk, 0, len(order))
	for _, key := range order {
		result = append(result, seen[key])
	}
	return result
}

// estimateTokens approximates four characters per token.
func estimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	count := len([]rune(trimmed)) / 4
	if count < 1 {
		count = 1
	}
	return count
}
