package graph

import (
	"errors"
	"fmt"

	"bookgraph/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

// ErrInvalidConfig indicates chunking parameters that can never terminate.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// Chunk is one bounded token window of a book, possibly overlapping its
// neighbors. Index orders chunks for display and explicit Q&A selection;
// merge correctness does not depend on it.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// tokenCodec is a losslessly invertible encode/decode pair over the text.
type tokenCodec interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenCodec struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCodec) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

func (c tiktokenCodec) Decode(tokens []int) string {
	return c.enc.Decode(tokens)
}

// runeCodec maps each rune to one token. It is the degraded mode used when
// the BPE encoder cannot be loaded; windows are then rune-sized rather than
// subword-sized but the chunk sequence stays deterministic.
type runeCodec struct{}

func (runeCodec) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeCodec) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}

func newTokenCodec(encoder string) tokenCodec {
	if encoder == "" {
		return runeCodec{}
	}
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		logger.Warn("Token encoder unavailable, falling back to rune-level chunking", "encoder", encoder, "err", err)
		return runeCodec{}
	}
	return tiktokenCodec{enc: enc}
}

// ChunkByTokens splits text into windows of window tokens, each window
// starting window-overlap tokens after the previous one. When maxTotal is
// positive the token stream is truncated to maxTotal tokens first, so the
// final window is shortened rather than dropped. Empty text yields no
// chunks; text shorter than one window yields exactly one.
//
// The function is pure: identical inputs always produce the identical chunk
// sequence, which cache keys and tests rely on.
func ChunkByTokens(text string, encoder string, window int, overlap int, maxTotal int) ([]Chunk, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfig, window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, overlap, window)
	}

	codec := newTokenCodec(encoder)
	tokens := codec.Encode(text)
	if maxTotal > 0 && len(tokens) > maxTotal {
		tokens = tokens[:maxTotal]
	}

	step := window - overlap
	chunks := make([]Chunk, 0, (len(tokens)+step-1)/step)
	for i := 0; i < len(tokens); i += step {
		end := i + window
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  codec.Decode(tokens[i:end]),
		})
		if end == len(tokens) {
			break
		}
	}

	return chunks, nil
}
