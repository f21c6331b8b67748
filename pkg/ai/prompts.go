package ai

import (
	"fmt"
	"strings"
)

// NoAnswerSentinel is the reserved reply a per-chunk question call returns
// when the excerpt contains nothing relevant. Responses carrying it are
// dropped before synthesis.
const NoAnswerSentinel = "NO_RELEVANT_INFORMATION"

// ExtractSystemPrompt is the system prompt for structured extraction calls.
const ExtractSystemPrompt = "You are a literary analyst. Respond ONLY with JSON that follows the required schema, no extra commentary."

const extractPromptBase = `You are processing chunk %d/%d of a book.

Instructions:
- Extract all characters that appear in this chunk and how many times each is mentioned in this chunk.
- Detect every direct interaction (dialogue, confrontation, cooperation, etc.) between two characters.
- For each interaction add a sentiment score: 1 if positive/friendly, 0 if neutral/unclear, -1 if negative/hostile.
%s

Text:
`

const namesOnlyRule = `- names_only mode is ON: ignore entities that are not proper names (skip descriptors like "the red man", "the nurse", "God").`

const allEntitiesRule = `- Include any recurring character or well-defined entity (named or descriptive).`

// BuildExtractPrompt builds the user prompt for one chunk's structured
// extraction call. Index is zero-based; the prompt shows it one-based.
func BuildExtractPrompt(index int, total int, namesOnly bool) string {
	rule := allEntitiesRule
	if namesOnly {
		rule = namesOnlyRule
	}
	return fmt.Sprintf(extractPromptBase, index+1, total, rule)
}

const chunkQuestionPrompt = `Answer the question below using ONLY the book excerpt that follows. Do not use outside knowledge.
If the excerpt contains nothing relevant to the question, reply with exactly: %s

Question: %s

Excerpt:
%s`

// BuildChunkQuestionPrompt builds the free-text prompt asking the model to
// answer a question from a single chunk, or to return the no-answer sentinel.
func BuildChunkQuestionPrompt(question string, excerpt string) string {
	return fmt.Sprintf(chunkQuestionPrompt, NoAnswerSentinel, question, excerpt)
}

const synthesisPrompt = `The following answer fragments were extracted from different parts of the same book in response to one question. Combine them into a single coherent answer. Do not mention the fragments or the extraction process.

Question: %s

Fragments:
%s`

// BuildSynthesisPrompt builds the final prompt that folds the surviving
// per-chunk answers into one response.
func BuildSynthesisPrompt(question string, snippets []string) string {
	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(s))
	}
	return fmt.Sprintf(synthesisPrompt, question, b.String())
}
