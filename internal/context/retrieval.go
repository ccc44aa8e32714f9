package contextbuilder

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/similarity"
)

type RetrievalInput struct {
	Query string
	Limit int
}

type Chunk struct {
	ID    string
	Text  string
	Score float64
}

type Retriever interface {
	Retrieve(ctx context.Context, input RetrievalInput) ([]Chunk, error)
}

type SectionSearcher interface {
	Search(ctx context.Context, query string, k int) ([]similarity.Result, error)
}

// IndexRetriever reads reference sections from the similarity index.
// A nearer section scores higher: score = 1 / (1 + distance).
type IndexRetriever struct {
	index SectionSearcher
}

func NewIndexRetriever(index SectionSearcher) *IndexRetriever {
	return &IndexRetriever{index: index}
}

func (r *IndexRetriever) Retrieve(ctx context.Context, input RetrievalInput) ([]Chunk, error) {
	query := strings.TrimSpace(input.Query)
	if r.index == nil || query == "" {
		return nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = similarity.DefaultK
	}

	results, err := r.index.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search reference sections: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for index, result := range results {
		chunks = append(chunks, Chunk{
			ID:    fmt.Sprintf("section-%d", index+1),
			Text:  strings.TrimSpace(result.Text),
			Score: 1 / (1 + result.Distance),
		})
	}
	return chunks, nil
}

// KeywordRetriever scores a fixed list of sections by word overlap with the
// query. It stands in when no similarity index could be opened.
type KeywordRetriever struct {
	sections []string
}

func NewKeywordRetriever(sections []string) *KeywordRetriever {
	copied := make([]string, len(sections))
	copy(copied, sections)
	return &KeywordRetriever{sections: copied}
}

func (r *KeywordRetriever) Retrieve(_ context.Context, input RetrievalInput) ([]Chunk, error) {
	queryWords := wordSet(input.Query)
	if len(queryWords) == 0 {
		return nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = similarity.DefaultK
	}

	chunks := make([]Chunk, 0, len(r.sections))
	for index, section := range r.sections {
		trimmed := strings.TrimSpace(section)
		if trimmed == "" {
			continue
		}
		overlap := 0
		for word := range wordSet(trimmed) {
			if _, ok := queryWords[word]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:    fmt.Sprintf("keyword-%d", index+1),
			Text:  trimmed,
			Score: float64(overlap) / float64(len(queryWords)),
		})
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// wordSet keeps lower-cased words of three letters or more, which drops
// most French articles and prepositions.
func wordSet(text string) map[string]struct{} {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		if len([]rune(word)) < 3 {
			continue
		}
		set[word] = struct{}{}
	}
	return set
}

var repeatedSpacePattern = regexp.MustCompile(`\s+`)

func fragmentFingerprint(value string) string {
	return repeatedSpacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), " ")
}
