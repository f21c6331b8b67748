package graph

import (
	"context"

	"bookgraph/pkg/logger"
)

func graphMode(namesOnly bool) string {
	if namesOnly {
		return "names"
	}
	return "all"
}

// AnalyzeBook builds the character-interaction graph for one book. Cached
// graphs short-circuit the whole pipeline; otherwise the book text is
// fetched, chunked, fanned out to the extraction backend, and merged.
//
// Per-chunk extraction failures degrade the graph instead of failing the
// request. If the batch deadline fires first, the merge runs over whatever
// completed and the graph is returned with Partial set; partial graphs are
// not cached.
func (g *GraphClient) AnalyzeBook(ctx context.Context, bookID string, namesOnly bool) (*Graph, error) {
	mode := graphMode(namesOnly)

	var cached Graph
	if ok, err := g.cache.Load(&cached, "graphs", bookID, mode); err == nil && ok {
		logger.Debug("Graph cache hit", "book", bookID, "mode", mode)
		return &cached, nil
	}

	book, err := g.books.Fetch(ctx, bookID)
	if err != nil {
		return nil, err
	}

	chunks, err := g.chunkAndCache(bookID, book.Text)
	if err != nil {
		return nil, err
	}
	logger.Info("Starting extraction", "book", bookID, "mode", mode, "chunks", len(chunks))

	total := len(chunks)
	results, complete := RunAll(ctx, total, g.parallelRequests, g.batchTimeout,
		func(ctx context.Context, i int) (ExtractionResult, error) {
			return g.extractFromChunk(ctx, chunks[i], total, namesOnly)
		})

	extracted := make([]ExtractionResult, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("Chunk extraction did not complete", "book", bookID, "chunk", r.Index, "err", r.Err)
			continue
		}
		extracted = append(extracted, r.Value)
	}

	characters, interactions := Merge(extracted)
	graph := &Graph{
		BookID:       bookID,
		Title:        book.Title,
		Author:       book.Author,
		NamesOnly:    namesOnly,
		Partial:      !complete,
		Characters:   characters,
		Interactions: interactions,
	}

	if complete {
		if err := g.cache.Save(graph, "graphs", bookID, mode); err != nil {
			logger.Error("Failed to cache graph", "book", bookID, "mode", mode, "err", err)
		}
	} else {
		logger.Warn("Batch deadline elapsed, returning partial graph", "book", bookID, "chunks", total)
	}

	return graph, nil
}

// BookChunks returns the retained chunk list for a book, chunking and
// caching it on first use. The Q&A sampler draws from this list.
func (g *GraphClient) BookChunks(ctx context.Context, bookID string) ([]Chunk, error) {
	var chunks []Chunk
	if ok, err := g.cache.Load(&chunks, "chunks", bookID); err == nil && ok && len(chunks) > 0 {
		return chunks, nil
	}

	book, err := g.books.Fetch(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return g.chunkAndCache(bookID, book.Text)
}

func (g *GraphClient) chunkAndCache(bookID string, text string) ([]Chunk, error) {
	chunks, err := ChunkByTokens(text, g.tokenEncoder, g.windowTokens, g.overlapTokens, g.maxTotalTokens)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Save(chunks, "chunks", bookID); err != nil {
		logger.Error("Failed to cache chunks", "book", bookID, "err", err)
	}
	return chunks, nil
}
