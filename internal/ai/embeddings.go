package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder maps texts to fixed-size vectors. Name identifies the vector space so
// vectors from different embedders are never compared.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

const defaultEmbeddingModel = "text-embedding-004"

type GeminiEmbedder struct {
	client *GeminiClient
	model  string
}

func NewGeminiEmbedder(client *GeminiClient, model string) *GeminiEmbedder {
	if strings.TrimSpace(model) == "" {
		model = defaultEmbeddingModel
	}
	return &GeminiEmbedder{client: client, model: strings.TrimPrefix(model, "models/")}
}

func (e *GeminiEmbedder) Name() string {
	return "gemini:" + e.model
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.client == nil || !e.client.Available() {
		return nil, ErrGeminiUnavailable
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	request := batchEmbedRequest{Requests: make([]embedContentRequest, 0, len(texts))}
	for _, text := range texts {
		request.Requests = append(request.Requests, embedContentRequest{
			Model:   "models/" + e.model,
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		})
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal embed payload: %w", err)
	}

	body, err := e.client.postWithRetry(ctx, e.client.modelURL(e.model, "batchEmbedContents"), encoded)
	if err != nil {
		return nil, err
	}

	var raw batchEmbedResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(raw.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed response size mismatch: got %d want %d", len(raw.Embeddings), len(texts))
	}

	vectors := make([][]float32, 0, len(raw.Embeddings))
	for _, embedding := range raw.Embeddings {
		if len(embedding.Values) == 0 {
			return nil, errors.New("embed response with empty vector")
		}
		vectors = append(vectors, embedding.Values)
	}
	return vectors, nil
}

type embedContentRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type batchEmbedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

const HashDimensions = 384

// HashEmbedder is a deterministic offline embedder: words and character
// trigrams are hashed into signed buckets and the vector is L2-normalized.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = HashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Name() string {
	return fmt.Sprintf("hash:%d", e.dimensions)
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors = append(vectors, e.embedOne(text))
	}
	return vectors, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vector := make([]float32, e.dimensions)
	for _, token := range tokenize(text) {
		e.addFeature(vector, "w:"+token, 1)
		runes := []rune("^" + token + "$")
		for i := 0; i+3 <= len(runes); i++ {
			e.addFeature(vector, "t:"+string(runes[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, value := range vector {
		norm += float64(value) * float64(value)
	}
	if norm == 0 {
		return vector
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector
}

func (e *HashEmbedder) addFeature(vector []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	bucket := int(sum % uint64(e.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vector[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
