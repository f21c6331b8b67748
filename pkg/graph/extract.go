package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookgraph/pkg/ai"
	"bookgraph/pkg/logger"
)

// CharacterMention is one character observation local to a single chunk.
type CharacterMention struct {
	Name     string `json:"name" jsonschema_description:"Name of the character exactly as it appears in the text"`
	Mentions int    `json:"mentions" jsonschema_description:"Number of times the character is mentioned in this chunk"`
}

// Interaction is one directed observation of two characters interacting
// within a single chunk. Direction is collapsed during the merge.
type Interaction struct {
	From      string `json:"from" jsonschema_description:"Name of the first character in the interaction"`
	To        string `json:"to" jsonschema_description:"Name of the second character in the interaction"`
	Sentiment int    `json:"sentiment" jsonschema_description:"1 if positive/friendly, 0 if neutral/unclear, -1 if negative/hostile"`
}

// ExtractionResult is the atomic unit returned by one chunk's extraction
// call. A chunk whose extraction fails entirely contributes the canonical
// empty value, never a nil one.
type ExtractionResult struct {
	Characters   []CharacterMention `json:"characters" jsonschema_description:"Characters identified in this chunk"`
	Interactions []Interaction      `json:"interactions" jsonschema_description:"Pairwise interactions identified in this chunk"`
}

// EmptyExtractionResult returns the canonical empty result.
func EmptyExtractionResult() ExtractionResult {
	return ExtractionResult{
		Characters:   []CharacterMention{},
		Interactions: []Interaction{},
	}
}

func (r *ExtractionResult) validate() error {
	for _, c := range r.Characters {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("character entry with empty name")
		}
	}
	for _, in := range r.Interactions {
		if strings.TrimSpace(in.From) == "" || strings.TrimSpace(in.To) == "" {
			return fmt.Errorf("interaction entry with empty endpoint (%q -> %q)", in.From, in.To)
		}
	}
	return nil
}

// extractFromChunk runs one chunk through the ranked model list and returns
// its ExtractionResult. Model-list exhaustion is recovered as the empty
// result so a single bad chunk never fails the batch; only cancellation of
// the batch context is surfaced as an error.
func (g *GraphClient) extractFromChunk(
	ctx context.Context,
	chunk Chunk,
	total int,
	namesOnly bool,
) (ExtractionResult, error) {
	prompt := ai.BuildExtractPrompt(chunk.Index, total, namesOnly) + chunk.Text

	var res ExtractionResult
	err := ai.GenerateFormatWithFallback(
		ctx,
		g.aiClient,
		g.models,
		g.perCallTimeout,
		"extract_characters_and_interactions",
		"Extract named characters and their pairwise interactions from a book chunk.",
		prompt,
		&res,
		res.validate,
		ai.WithSystemPrompts(ai.ExtractSystemPrompt),
		ai.WithTemperature(0.1),
		ai.WithMaxTokens(g.maxCompletionTokens),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ExtractionResult{}, err
		}
		logger.Warn("Extraction failed for chunk, contributing empty result", "chunk", chunk.Index, "err", err)
		return EmptyExtractionResult(), nil
	}
	return res, nil
}
