package indexer

import (
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize is the chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of runes repeated at the start of the next chunk.
	DefaultChunkOverlap = 200
)

// Splitter cuts text into fixed-size overlapping chunks.
// Sizes are measured in runes (not bytes) so multi-byte text is never split mid-character.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a Splitter. overlap must be smaller than size.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0")
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be between 0 and %d", size-1)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split returns the chunks of text in order. Each cut prefers a paragraph
// boundary, then a line break, then a sentence end, and otherwise falls at
// exactly size runes. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []Chunk {
	runes := []rune(text)
	var chunks []Chunk

	emit := func(seg []rune) {
		t := strings.TrimSpace(string(seg))
		if t == "" {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: t})
	}

	start := 0
	for start < len(runes) {
		end := start + s.size
		if end >= len(runes) {
			emit(runes[start:])
			break
		}

		cut := end
		if b := s.boundary(runes[start:end]); b > 0 {
			cut = start + b
		}
		emit(runes[start:cut])

		start = cut - s.overlap
	}

	return chunks
}

// boundary returns the rune offset just after the last preferred separator in
// window, or 0 when none lies beyond the overlap. Cutting inside the overlap
// would not move the next chunk forward.
func (s *Splitter) boundary(window []rune) int {
	for _, sep := range []string{"\n\n", "\n", ". "} {
		if i := lastIndexRunes(window, []rune(sep)); i >= 0 {
			if b := i + len([]rune(sep)); b > s.overlap {
				return b
			}
		}
	}
	return 0
}

func lastIndexRunes(haystack, needle []rune) int {
	for i := len(haystack) - len(needle); i >= 0; i-- {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// CleanText removes NUL characters, which PostgreSQL and some embedding APIs
// reject, and normalizes line endings.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}
