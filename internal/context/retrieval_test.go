package contextbuilder

import (
	"context"
	"errors"
	"testing"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/similarity"
)

type stubSearcher struct {
	results []similarity.Result
	err     error
	queries []string
	ks      []int
}

func (s *stubSearcher) Search(_ context.Context, query string, k int) ([]similarity.Result, error) {
	s.queries = append(s.queries, query)
	s.ks = append(s.ks, k)
	return s.results, s.err
}

func TestIndexRetrieverScoresByDistance(t *testing.T) {
	searcher := &stubSearcher{results: []similarity.Result{
		{Text: " Introduction ", Distance: 0},
		{Text: "Conclusion", Distance: 3},
	}}
	retriever := NewIndexRetriever(searcher)

	chunks, err := retriever.Retrieve(context.Background(), RetrievalInput{Query: " Budget ", Limit: 2})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "Introduction" || chunks[0].Score != 1 {
		t.Fatalf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[1].Score != 0.25 {
		t.Fatalf("unexpected second score: %v", chunks[1].Score)
	}
	if searcher.queries[0] != "Budget" || searcher.ks[0] != 2 {
		t.Fatalf("unexpected search call: %v %v", searcher.queries, searcher.ks)
	}
}

func TestIndexRetrieverDefaultsAndErrors(t *testing.T) {
	searcher := &stubSearcher{}
	retriever := NewIndexRetriever(searcher)

	if _, err := retriever.Retrieve(context.Background(), RetrievalInput{Query: "Budget"}); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if searcher.ks[0] != similarity.DefaultK {
		t.Fatalf("expected default k, got %d", searcher.ks[0])
	}

	chunks, err := retriever.Retrieve(context.Background(), RetrievalInput{Query: "  "})
	if err != nil || chunks != nil {
		t.Fatalf("expected empty query to skip search, got %v %v", chunks, err)
	}

	searcher.err = errors.New("sqlite locked")
	if _, err := retriever.Retrieve(context.Background(), RetrievalInput{Query: "Budget"}); !errors.Is(err, searcher.err) {
		t.Fatalf("expected wrapped search error, got %v", err)
	}
}

func TestKeywordRetrieverRanksByOverlap(t *testing.T) {
	retriever := NewKeywordRetriever([]string{
		"Introduction : présentation générale du projet.",
		"Analyse des risques climatiques et de leurs impacts.",
		"Risques financiers du projet.",
	})

	chunks, err := retriever.Retrieve(context.Background(), RetrievalInput{Query: "Risques climatiques du projet"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %+v", chunks)
	}
	if chunks[0].ID != "keyword-2" {
		t.Fatalf("expected climate section first, got %+v", chunks)
	}

	none, _ := retriever.Retrieve(context.Background(), RetrievalInput{Query: "météo"})
	if len(none) != 0 {
		t.Fatalf("expected no overlap, got %+v", none)
	}
}
