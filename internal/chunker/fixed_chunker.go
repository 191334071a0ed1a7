package chunker

import (
	"iter"
	"unicode/utf8"

	"supportrag/internal/domain"
)

// DefaultSize is the chunk length in characters.
const DefaultSize = 1000

// FixedChunker splits text into contiguous, non-overlapping chunks of Size
// characters. Boundaries ignore words and sentences; the last chunk may be shorter.
type FixedChunker struct {
	size int
}

func NewFixedChunker(size int) *FixedChunker {
	if size <= 0 {
		size = DefaultSize
	}
	return &FixedChunker{size: size}
}

// Size returns the configured chunk length in characters.
func (c *FixedChunker) Size() int { return c.size }

// Count returns how many chunks Chunks would yield for text.
func (c *FixedChunker) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + c.size - 1) / c.size
}

// Chunks returns a lazy sequence over the chunks of text. The sequence can be
// ranged over any number of times and always yields the same chunks.
func (c *FixedChunker) Chunks(text string) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		idx, start, chars := 0, 0, 0
		from := 0
		for pos := range text {
			if chars == c.size {
				if !yield(domain.Chunk{Index: idx, Start: start, End: start + chars, Text: text[from:pos]}) {
					return
				}
				idx++
				start += chars
				chars = 0
				from = pos
			}
			chars++
		}
		if chars > 0 {
			yield(domain.Chunk{Index: idx, Start: start, End: start + chars, Text: text[from:]})
		}
	}
}
