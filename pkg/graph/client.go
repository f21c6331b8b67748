package graph

import (
	"context"
	"fmt"
	"time"

	"bookgraph/pkg/ai"
)

// BookSource supplies the raw text and display metadata for a book id.
// Retrieval mechanics (network, boilerplate stripping) are the
// implementation's concern.
type BookSource interface {
	Fetch(ctx context.Context, bookID string) (*Book, error)
}

// Cache is a content-addressed key-to-JSON blob store. Load reports whether
// the entry exists; absent entries are not errors. Keys are structured as
// path-like parts (category first) so ids never collide with delimiters.
type Cache interface {
	Load(out any, parts ...string) (bool, error)
	Save(v any, parts ...string) error
}

// GraphClient drives the chunked-extraction-and-merge pipeline for one
// configured model list and chunking scheme.
//
// A GraphClient should be created using NewGraphClient, which validates the
// chunking parameters once so a non-terminating configuration fails at
// startup rather than per request.
type GraphClient struct {
	aiClient ai.CharacterAIClient
	books    BookSource
	cache    Cache

	models              []string
	tokenEncoder        string
	windowTokens        int
	overlapTokens       int
	maxTotalTokens      int
	maxCompletionTokens int
	parallelRequests    int
	perCallTimeout      time.Duration
	batchTimeout        time.Duration
}

// NewGraphClientParams defines the configuration for creating a GraphClient.
//
// Models is the ranked backend list tried in order per call. WindowTokens
// and OverlapTokens control chunking; MaxTotalTokens caps the consumed
// input (0 = unlimited). ParallelRequests bounds in-flight backend calls.
// PerCallTimeout bounds one backend call, BatchTimeout the whole fan-out.
type NewGraphClientParams struct {
	AIClient ai.CharacterAIClient
	Books    BookSource
	Cache    Cache

	Models              []string
	TokenEncoder        string
	WindowTokens        int
	OverlapTokens       int
	MaxTotalTokens      int
	MaxCompletionTokens int
	ParallelRequests    int
	PerCallTimeout      time.Duration
	BatchTimeout        time.Duration
}

// NewGraphClient creates a GraphClient configured with the provided params.
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.AIClient == nil {
		return nil, fmt.Errorf("%w: AI client is required", ErrInvalidConfig)
	}
	if params.Books == nil {
		return nil, fmt.Errorf("%w: book source is required", ErrInvalidConfig)
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("%w: cache is required", ErrInvalidConfig)
	}
	if len(params.Models) == 0 {
		return nil, fmt.Errorf("%w: at least one model is required", ErrInvalidConfig)
	}
	if params.WindowTokens <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfig, params.WindowTokens)
	}
	if params.OverlapTokens < 0 || params.OverlapTokens >= params.WindowTokens {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, params.OverlapTokens, params.WindowTokens)
	}

	parallel := params.ParallelRequests
	if parallel <= 0 {
		parallel = 12
	}
	perCall := params.PerCallTimeout
	if perCall <= 0 {
		perCall = 8 * time.Second
	}
	maxCompletion := params.MaxCompletionTokens
	if maxCompletion <= 0 {
		maxCompletion = 1024
	}

	g := &GraphClient{
		aiClient: params.AIClient,
		books:    params.Books,
		cache:    params.Cache,

		models:              params.Models,
		tokenEncoder:        params.TokenEncoder,
		windowTokens:        params.WindowTokens,
		overlapTokens:       params.OverlapTokens,
		maxTotalTokens:      params.MaxTotalTokens,
		maxCompletionTokens: maxCompletion,
		parallelRequests:    parallel,
		perCallTimeout:      perCall,
		batchTimeout:        params.BatchTimeout,
	}

	return g, nil
}
