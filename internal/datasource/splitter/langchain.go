// Package splitter adapts langchaingo's recursive-character text splitter
// to the data source core's pure, deterministic Splitter contract.
package splitter

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// RecursiveCharacter splits text on a cascade of separators (paragraph,
// line, sentence, word) while respecting a maximum chunk size, falling
// back to a hard character cut only when no separator fits.
type RecursiveCharacter struct {
	overlap int
}

// New constructs a RecursiveCharacter splitter. overlap is the number of
// characters repeated between adjacent chunks.
func New(overlap int) *RecursiveCharacter {
	return &RecursiveCharacter{overlap: overlap}
}

// Split divides text into chunks no larger than maxChunkSize. The same
// (maxChunkSize, text) pair always yields the same chunks.
func (s *RecursiveCharacter) Split(ctx context.Context, maxChunkSize int, text string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d", maxChunkSize)
	}
	overlap := s.overlap
	if overlap >= maxChunkSize {
		overlap = maxChunkSize - 1
	}

	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxChunkSize),
		textsplitter.WithChunkOverlap(overlap),
	)

	chunks, err := ts.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}
	return chunks, nil
}
