package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGeminiClientGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-flash-lite-latest:generateContent" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found"}`))
			return
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		var payload generateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Contents) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if payload.SystemInstruction == nil || payload.SystemInstruction.Parts[0].Text != "Réponds en français" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"Introduction"},{"text":"Conclusion"}]}}],
			"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":30,"totalTokenCount":42},
			"modelVersion":"gemini-flash-lite-001"
		}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiClientConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 1,
	})

	result, err := client.Generate(context.Background(), GenerateRequest{
		Model:           "gemini-flash-lite-latest",
		Instructions:    "Réponds en français",
		Input:           "Rédige un rapport",
		Temperature:     0.3,
		MaxOutputTokens: 500,
	})
	if err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if result.Text != "Introduction\nConclusion" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.ModelID != "gemini-flash-lite-001" {
		t.Fatalf("unexpected model id: %q", result.ModelID)
	}
	if result.Usage.TotalTokens != 42 {
		t.Fatalf("expected total tokens 42, got %d", result.Usage.TotalTokens)
	}
}

func TestGeminiClientRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"overloaded"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiClientConfig{APIKey: "k", BaseURL: server.URL, MaxRetries: 2})
	result, err := client.Generate(context.Background(), GenerateRequest{Model: "m", Input: "x"})
	if err != nil {
		t.Fatalf("expected success after retry, got err=%v", err)
	}
	if result.Text != "ok" || result.ModelID != "m" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestGeminiClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiClientConfig{APIKey: "k", BaseURL: server.URL, MaxRetries: 3})
	_, err := client.Generate(context.Background(), GenerateRequest{Model: "m", Input: "x"})
	var httpErr *geminiHTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 http error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestGeminiClientUnavailableWithoutKey(t *testing.T) {
	client := NewGeminiClient(GeminiClientConfig{})
	_, err := client.Generate(context.Background(), GenerateRequest{Model: "m", Input: "x"})
	if !errors.Is(err, ErrGeminiUnavailable) {
		t.Fatalf("expected ErrGeminiUnavailable, got %v", err)
	}
}

func TestGeminiEmbedderBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-embedding-004:batchEmbedContents" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var payload batchEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if len(payload.Requests) != 2 || payload.Requests[0].Model != "models/text-embedding-004" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,0]},{"values":[0,1]}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiClientConfig{APIKey: "k", BaseURL: server.URL})
	embedder := NewGeminiEmbedder(client, "")
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
	if embedder.Name() != "gemini:text-embedding-004" {
		t.Fatalf("unexpected embedder name %q", embedder.Name())
	}
}

func TestHashEmbedderIsDeterministicAndNormalized(t *testing.T) {
	embedder := NewHashEmbedder(0)
	vectors, err := embedder.Embed(context.Background(), []string{
		"Analyse des risques : identifiez les menaces",
		"Analyse des risques : identifiez les menaces",
		"",
	})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors[0]) != HashDimensions {
		t.Fatalf("expected %d dims, got %d", HashDimensions, len(vectors[0]))
	}

	var norm float32
	for i := range vectors[0] {
		if vectors[0][i] != vectors[1][i] {
			t.Fatalf("vectors differ at %d", i)
		}
		norm += vectors[0][i] * vectors[0][i]
	}
	if norm < 0.999 || norm > 1.001 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
	for _, value := range vectors[2] {
		if value != 0 {
			t.Fatalf("expected zero vector for empty text")
		}
	}
}
