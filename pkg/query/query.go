package query

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"bookgraph/pkg/ai"
	"bookgraph/pkg/graph"
	"bookgraph/pkg/logger"
)

// ErrInvalidSelection indicates malformed Q&A selection input: an unknown
// mode, an out-of-range index, or too many indices. The message carries the
// offending value so the request surface can return it verbatim.
var ErrInvalidSelection = errors.New("invalid chunk selection")

// SelectionMode says how the sampler picks chunks for a question.
type SelectionMode string

const (
	// SelectionRandom draws up to three distinct chunks uniformly at random.
	SelectionRandom SelectionMode = "random"
	// SelectionExplicit uses the caller-supplied chunk indices.
	SelectionExplicit SelectionMode = "explicit"
)

// maxSelectedChunks caps how many chunks one question may consult.
const maxSelectedChunks = 3

const notFoundAnswer = "The sampled parts of the book do not contain information relevant to this question. Try asking again; a different part of the book may be sampled."

const apologyAnswer = "Sorry, I could not produce an answer right now. Please try again in a moment."

// Client answers free-text questions about a book by sampling a few of its
// cached chunks, querying the backend once per chunk, and synthesizing the
// surviving snippets into one answer.
type Client struct {
	aiClient       ai.CharacterAIClient
	models         []string
	perCallTimeout time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewClientParams defines the configuration for creating a query Client.
// Rand is optional; tests inject a seeded source for deterministic sampling.
type NewClientParams struct {
	AIClient       ai.CharacterAIClient
	Models         []string
	PerCallTimeout time.Duration
	Rand           *rand.Rand
}

// NewClient creates a query Client configured with the provided params.
func NewClient(params NewClientParams) (*Client, error) {
	if params.AIClient == nil {
		return nil, fmt.Errorf("AI client is required")
	}
	if len(params.Models) == 0 {
		return nil, fmt.Errorf("at least one model is required")
	}
	perCall := params.PerCallTimeout
	if perCall <= 0 {
		perCall = 8 * time.Second
	}
	rng := params.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Client{
		aiClient:       params.AIClient,
		models:         params.Models,
		perCallTimeout: perCall,
		rng:            rng,
	}, nil
}

// Answer resolves a question against the given chunk list. Each selected
// chunk is queried independently under the fan-out discipline; responses
// carrying the no-answer sentinel are dropped, and the remainder is folded
// into a single reply by one final synthesis call.
//
// Backend trouble never fails the request: if all per-chunk calls come back
// empty the fixed not-found message is returned, and if the synthesis call
// exhausts its model list the fixed apology is returned. Only invalid
// selection input and context cancellation surface as errors.
func (c *Client) Answer(
	ctx context.Context,
	question string,
	chunks []graph.Chunk,
	mode SelectionMode,
	explicitIndices []int,
) (string, error) {
	selected, err := c.selectIndices(len(chunks), mode, explicitIndices)
	if err != nil {
		return "", err
	}
	logger.Debug("Answering question over sampled chunks", "chunks", selected, "mode", mode)

	results, _ := graph.RunAll(ctx, len(selected), maxSelectedChunks, 0,
		func(ctx context.Context, i int) (string, error) {
			prompt := ai.BuildChunkQuestionPrompt(question, chunks[selected[i]].Text)
			return ai.GenerateWithFallback(ctx, c.aiClient, c.models, c.perCallTimeout, prompt)
		})
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("Chunk question failed, dropping snippet", "chunk", selected[r.Index], "err", r.Err)
			continue
		}
		answer := strings.TrimSpace(r.Value)
		if answer == "" || strings.Contains(answer, ai.NoAnswerSentinel) {
			continue
		}
		snippets = append(snippets, answer)
	}
	if len(snippets) == 0 {
		return notFoundAnswer, nil
	}

	final, err := ai.GenerateWithFallback(ctx, c.aiClient, c.models, c.perCallTimeout,
		ai.BuildSynthesisPrompt(question, snippets))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		logger.Warn("Synthesis call failed, returning apology", "err", err)
		return apologyAnswer, nil
	}
	return strings.TrimSpace(final), nil
}

// selectIndices resolves the selection mode into concrete chunk indices.
func (c *Client) selectIndices(total int, mode SelectionMode, explicit []int) ([]int, error) {
	if total == 0 {
		return nil, fmt.Errorf("%w: book has no chunks to sample", ErrInvalidSelection)
	}

	switch mode {
	case SelectionRandom, "":
		count := maxSelectedChunks
		if total < count {
			count = total
		}
		c.rngMu.Lock()
		perm := c.rng.Perm(total)
		c.rngMu.Unlock()
		return perm[:count], nil

	case SelectionExplicit:
		if len(explicit) == 0 {
			return nil, fmt.Errorf("%w: explicit mode requires at least one index", ErrInvalidSelection)
		}
		if len(explicit) > maxSelectedChunks {
			return nil, fmt.Errorf("%w: at most %d indices allowed, got %d", ErrInvalidSelection, maxSelectedChunks, len(explicit))
		}
		seen := make(map[int]bool, len(explicit))
		selected := make([]int, 0, len(explicit))
		for _, idx := range explicit {
			if idx < 0 || idx >= total {
				return nil, fmt.Errorf("%w: index %d outside valid range [0,%d)", ErrInvalidSelection, idx, total)
			}
			if seen[idx] {
				continue
			}
			seen[idx] = true
			selected = append(selected, idx)
		}
		return selected, nil

	default:
		return nil, fmt.Errorf("%w: unknown selection mode %q", ErrInvalidSelection, mode)
	}
}
