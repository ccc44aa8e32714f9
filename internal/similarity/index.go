// Package similarity keeps reference report sections with their embeddings
// and answers nearest-neighbour queries over them.
package similarity

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/ai"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/cache"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
)

var (
	ErrEmbedderMismatch  = errors.New("index was built with a different embedder")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

const DefaultK = 3

type Config struct {
	Path     string
	Embedder ai.Embedder
	Cache    *cache.EmbeddingCache
	Logger   *log.Logger
}

type Result struct {
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

type entry struct {
	seq    int64
	text   string
	vector []float32
}

// Index is an append-only list of (text, vector) pairs backed by SQLite.
// Each row stores both halves so the text list and the vectors cannot diverge.
type Index struct {
	db       *sql.DB
	embedder ai.Embedder
	cache    *cache.EmbeddingCache
	logger   *log.Logger

	mu      sync.RWMutex
	entries []entry
}

// Open opens or creates the index database and loads every stored pair.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("similarity index requires an embedder")
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = filepath.Join("vector_db", "sections.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if cfg.Cache == nil {
		cfg.Cache = cache.NewEmbeddingCache(cache.Config{})
	}
	index := &Index{
		db:       db,
		embedder: cfg.Embedder,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
	}

	if err := index.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	if err := index.checkEmbedder(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := index.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return index, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sections (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			vector BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := i.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (i *Index) checkEmbedder(ctx context.Context) error {
	var stored string
	err := i.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = 'embedder'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := i.db.ExecContext(ctx,
			`INSERT INTO index_meta (key, value) VALUES ('embedder', ?)`, i.embedder.Name()); err != nil {
			return fmt.Errorf("recording embedder: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading embedder: %w", err)
	case stored != i.embedder.Name():
		return fmt.Errorf("%w: stored=%s configured=%s", ErrEmbedderMismatch, stored, i.embedder.Name())
	default:
		return nil
	}
}

func (i *Index) load(ctx context.Context) error {
	rows, err := i.db.QueryContext(ctx, `SELECT seq, text, vector FROM sections ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("loading sections: %w", err)
	}
	defer rows.Close()

	entries := make([]entry, 0)
	for rows.Next() {
		var (
			item entry
			blob []byte
		)
		if err := rows.Scan(&item.seq, &item.text, &blob); err != nil {
			return fmt.Errorf("scanning section: %w", err)
		}
		item.vector, err = decodeVector(blob)
		if err != nil {
			return fmt.Errorf("decoding section %d: %w", item.seq, err)
		}
		entries = append(entries, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating sections: %w", err)
	}

	i.mu.Lock()
	i.entries = entries
	i.mu.Unlock()
	return nil
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Add embeds text and appends it. The pair is visible to Search only once the
// row is committed.
func (i *Index) Add(ctx context.Context, text string) error {
	return i.AddBatch(ctx, []string{text})
}

func (i *Index) AddBatch(ctx context.Context, texts []string) error {
	_, err := i.insert(ctx, texts, false)
	return err
}

// insert appends texts in one transaction. With onlyIfEmpty it counts the
// stored rows inside that transaction and adds nothing when any exist, which
// holds across processes sharing the database file.
func (i *Index) insert(ctx context.Context, texts []string, onlyIfEmpty bool) (int, error) {
	cleaned := make([]string, 0, len(texts))
	for _, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return 0, fmt.Errorf("%w: section text is required", domain.ErrInvalidInput)
		}
		cleaned = append(cleaned, trimmed)
	}
	if len(cleaned) == 0 {
		return 0, nil
	}

	vectors, err := i.embedder.Embed(ctx, cleaned)
	if err != nil {
		return 0, fmt.Errorf("embedding sections: %w", err)
	}
	if len(vectors) != len(cleaned) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(cleaned))
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.entries) > 0 {
		want := len(i.entries[0].vector)
		for _, vector := range vectors {
			if len(vector) != want {
				return 0, fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(vector), want)
			}
		}
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback()

	if onlyIfEmpty {
		var stored int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections`).Scan(&stored); err != nil {
			return 0, fmt.Errorf("counting sections: %w", err)
		}
		if stored > 0 {
			return 0, nil
		}
	}

	added := make([]entry, 0, len(cleaned))
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for idx, text := range cleaned {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO sections (text, vector, created_at) VALUES (?, ?, ?)`,
			text, encodeVector(vectors[idx]), now)
		if err != nil {
			return 0, fmt.Errorf("inserting section: %w", err)
		}
		seq, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading section id: %w", err)
		}
		added = append(added, entry{seq: seq, text: text, vector: vectors[idx]})
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing sections: %w", err)
	}

	i.entries = append(i.entries, added...)
	if i.logger != nil {
		i.logger.Printf("similarity index appended sections=%d total=%d", len(added), len(i.entries))
	}
	return len(added), nil
}

// Search returns at most k stored texts ordered by squared L2 distance to the
// query, ties broken by insertion order.
func (i *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", domain.ErrInvalidInput)
	}

	vector, err := i.queryVector(ctx, query)
	if err != nil {
		return nil, err
	}

	i.mu.RLock()
	type scored struct {
		position int
		distance float64
	}
	candidates := make([]scored, 0, len(i.entries))
	for position, item := range i.entries {
		if len(item.vector) != len(vector) {
			i.mu.RUnlock()
			return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(vector), len(item.vector))
		}
		candidates = append(candidates, scored{position: position, distance: squaredL2(vector, item.vector)})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].distance < candidates[b].distance
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	results := make([]Result, 0, len(candidates))
	for _, candidate := range candidates {
		results = append(results, Result{
			Text:     i.entries[candidate.position].text,
			Distance: candidate.distance,
		})
	}
	i.mu.RUnlock()

	return results, nil
}

func (i *Index) queryVector(ctx context.Context, query string) ([]float32, error) {
	signature := i.cache.BuildSignature(i.embedder.Name(), query)
	if cached, ok := i.cache.Get(signature); ok {
		return cached.Vector, nil
	}

	vectors, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	i.cache.Set(signature, cache.Entry{Vector: vectors[0], Embedder: i.embedder.Name()})
	return vectors[0], nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for idx := range a {
		delta := float64(a[idx]) - float64(b[idx])
		sum += delta * delta
	}
	return sum
}

func encodeVector(vector []float32) []byte {
	blob := make([]byte, 4*len(vector))
	for idx, value := range vector {
		binary.LittleEndian.PutUint32(blob[idx*4:], math.Float32bits(value))
	}
	return blob
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for idx := range vector {
		vector[idx] = math.Float32frombits(binary.LittleEndian.Uint32(blob[idx*4:]))
	}
	return vector, nil
}
