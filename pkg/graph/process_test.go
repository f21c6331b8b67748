package graph

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bookgraph/pkg/ai"
)

type stubAI struct {
	payload string
	err     error
	block   bool
	calls   atomic.Int32
}

func (s *stubAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.payload, s.err
}

func (s *stubAI) GenerateCompletionWithFormat(ctx context.Context, name string, description string, prompt string, out any, opts ...ai.GenerateOption) error {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.payload), out)
}

type stubBooks struct {
	book  *Book
	err   error
	calls atomic.Int32
}

func (s *stubBooks) Fetch(ctx context.Context, bookID string) (*Book, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.book, nil
}

type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) key(parts ...string) string {
	return strings.Join(parts, "/")
}

func (c *memCache) Load(out any, parts ...string) (bool, error) {
	raw, ok := c.entries[c.key(parts...)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (c *memCache) Save(v any, parts ...string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.entries[c.key(parts...)] = raw
	return nil
}

const extractionPayload = `{
	"characters": [{"name": "Alice", "mentions": 2}, {"name": "Bob", "mentions": 2}],
	"interactions": [{"from": "Alice", "to": "Bob", "sentiment": 1}]
}`

func newTestClient(t *testing.T, aiClient ai.CharacterAIClient, books BookSource, cache Cache, batchTimeout time.Duration) *GraphClient {
	t.Helper()
	client, err := NewGraphClient(NewGraphClientParams{
		AIClient:       aiClient,
		Books:          books,
		Cache:          cache,
		Models:         []string{"primary", "fallback"},
		TokenEncoder:   "",
		WindowTokens:   1000,
		OverlapTokens:  50,
		PerCallTimeout: 2 * time.Second,
		BatchTimeout:   batchTimeout,
	})
	if err != nil {
		t.Fatalf("NewGraphClient: %v", err)
	}
	return client
}

func TestAnalyzeBook_EndToEnd(t *testing.T) {
	aiClient := &stubAI{payload: extractionPayload}
	books := &stubBooks{book: &Book{ID: "11", Title: "Alice in Wonderland", Author: "Lewis Carroll", Text: "Alice met Bob. Bob was kind to Alice."}}
	cache := newMemCache()
	client := newTestClient(t, aiClient, books, cache, 0)

	graph, err := client.AnalyzeBook(context.Background(), "11", false)
	if err != nil {
		t.Fatalf("AnalyzeBook: %v", err)
	}
	if graph.BookID != "11" || graph.Title != "Alice in Wonderland" || graph.Author != "Lewis Carroll" {
		t.Fatalf("unexpected metadata: %+v", graph)
	}
	if graph.Partial {
		t.Fatal("expected complete graph")
	}
	if len(graph.Characters) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(graph.Characters))
	}
	if len(graph.Interactions) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(graph.Interactions))
	}
	edge := graph.Interactions[0]
	if edge.From != "Alice" || edge.To != "Bob" || edge.Count != 1 || edge.Strength != 1 {
		t.Fatalf("unexpected edge: %+v", edge)
	}

	if _, ok := cache.entries["graphs/11/all"]; !ok {
		t.Fatal("expected complete graph to be cached")
	}
	if _, ok := cache.entries["chunks/11"]; !ok {
		t.Fatal("expected chunks to be cached")
	}
}

func TestAnalyzeBook_CacheHitSkipsPipeline(t *testing.T) {
	aiClient := &stubAI{payload: extractionPayload}
	books := &stubBooks{book: &Book{ID: "11", Text: "irrelevant"}}
	cache := newMemCache()
	if err := cache.Save(Graph{BookID: "11", Title: "Cached"}, "graphs", "11", "all"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	client := newTestClient(t, aiClient, books, cache, 0)

	graph, err := client.AnalyzeBook(context.Background(), "11", false)
	if err != nil {
		t.Fatalf("AnalyzeBook: %v", err)
	}
	if graph.Title != "Cached" {
		t.Fatalf("expected cached graph, got %+v", graph)
	}
	if aiClient.calls.Load() != 0 {
		t.Fatalf("expected no AI calls on cache hit, got %d", aiClient.calls.Load())
	}
	if books.calls.Load() != 0 {
		t.Fatalf("expected no fetch on cache hit, got %d", books.calls.Load())
	}
}

func TestAnalyzeBook_ModesCacheSeparately(t *testing.T) {
	aiClient := &stubAI{payload: extractionPayload}
	books := &stubBooks{book: &Book{ID: "11", Text: "Alice met Bob."}}
	cache := newMemCache()
	client := newTestClient(t, aiClient, books, cache, 0)

	if _, err := client.AnalyzeBook(context.Background(), "11", true); err != nil {
		t.Fatalf("AnalyzeBook names-only: %v", err)
	}
	if _, ok := cache.entries["graphs/11/names"]; !ok {
		t.Fatal("expected names-only graph under its own key")
	}
	if _, ok := cache.entries["graphs/11/all"]; ok {
		t.Fatal("names-only analysis must not populate the full-graph key")
	}
}

func TestAnalyzeBook_FetchErrorPropagates(t *testing.T) {
	wantErr := errors.New("gutenberg unavailable")
	client := newTestClient(t, &stubAI{payload: extractionPayload}, &stubBooks{err: wantErr}, newMemCache(), 0)

	_, err := client.AnalyzeBook(context.Background(), "404", false)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestAnalyzeBook_DeadlineYieldsPartialUncached(t *testing.T) {
	aiClient := &stubAI{block: true}
	books := &stubBooks{book: &Book{ID: "11", Text: strings.Repeat("Alice and Bob. ", 500)}}
	cache := newMemCache()
	client := newTestClient(t, aiClient, books, cache, 30*time.Millisecond)

	graph, err := client.AnalyzeBook(context.Background(), "11", false)
	if err != nil {
		t.Fatalf("AnalyzeBook: %v", err)
	}
	if !graph.Partial {
		t.Fatal("expected partial graph after batch deadline")
	}
	if len(graph.Characters) != 0 {
		t.Fatalf("expected empty character table, got %d rows", len(graph.Characters))
	}
	if _, ok := cache.entries["graphs/11/all"]; ok {
		t.Fatal("partial graph must not be cached")
	}
}

func TestAnalyzeBook_ExhaustionDegradesToEmptyChunk(t *testing.T) {
	// Every model fails without blocking: the chunk contributes the empty
	// result and the graph is still complete (and cached).
	aiClient := &stubAI{err: errors.New("model overloaded")}
	books := &stubBooks{book: &Book{ID: "11", Text: "Alice met Bob."}}
	cache := newMemCache()
	client := newTestClient(t, aiClient, books, cache, 0)

	graph, err := client.AnalyzeBook(context.Background(), "11", false)
	if err != nil {
		t.Fatalf("AnalyzeBook: %v", err)
	}
	if graph.Partial {
		t.Fatal("expected complete graph when extraction degrades cleanly")
	}
	if len(graph.Characters) != 0 || len(graph.Interactions) != 0 {
		t.Fatalf("expected empty tables, got %+v", graph)
	}
	if _, ok := cache.entries["graphs/11/all"]; !ok {
		t.Fatal("expected degraded-but-complete graph to be cached")
	}
}

func TestBookChunks_CachesOnFirstUse(t *testing.T) {
	books := &stubBooks{book: &Book{ID: "11", Text: "Alice met Bob. Bob was kind to Alice."}}
	cache := newMemCache()
	client := newTestClient(t, &stubAI{payload: extractionPayload}, books, cache, 0)

	first, err := client.BookChunks(context.Background(), "11")
	if err != nil {
		t.Fatalf("BookChunks: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("expected at least one chunk")
	}

	second, err := client.BookChunks(context.Background(), "11")
	if err != nil {
		t.Fatalf("BookChunks (cached): %v", err)
	}
	if books.calls.Load() != 1 {
		t.Fatalf("expected a single fetch, got %d", books.calls.Load())
	}
	if len(second) != len(first) {
		t.Fatalf("cached chunk list differs: %d vs %d", len(second), len(first))
	}
}

func TestNewGraphClient_Validation(t *testing.T) {
	valid := NewGraphClientParams{
		AIClient:      &stubAI{},
		Books:         &stubBooks{},
		Cache:         newMemCache(),
		Models:        []string{"m"},
		WindowTokens:  100,
		OverlapTokens: 10,
	}

	tests := []struct {
		name   string
		mutate func(*NewGraphClientParams)
	}{
		{name: "missing AI client", mutate: func(p *NewGraphClientParams) { p.AIClient = nil }},
		{name: "missing book source", mutate: func(p *NewGraphClientParams) { p.Books = nil }},
		{name: "missing cache", mutate: func(p *NewGraphClientParams) { p.Cache = nil }},
		{name: "empty model list", mutate: func(p *NewGraphClientParams) { p.Models = nil }},
		{name: "zero window", mutate: func(p *NewGraphClientParams) { p.WindowTokens = 0 }},
		{name: "overlap >= window", mutate: func(p *NewGraphClientParams) { p.OverlapTokens = 100 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := valid
			tc.mutate(&params)
			if _, err := NewGraphClient(params); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if _, err := NewGraphClient(valid); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
}
