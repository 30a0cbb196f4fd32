package chunker

import (
	"regexp"
	"strings"
)

// Chunking constants. The overlap is budgeted in characters but applied
// as a word count, using ~6 characters per word; stored chunk boundaries
// depend on this approximation, so it must not be corrected to an exact
// character slice.
const (
	MaxChunkSize = 1000
	OverlapSize  = 200
	MinChunkSize = 100

	overlapWords = OverlapSize / 6
)

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

// Chunk is one retrieval-sized slice of a page's text.
type Chunk struct {
	Index     int
	Page      int
	Content   string
	WordCount int
	CharCount int
}

// ChunkPage splits one page's text into overlapping chunks. Sentences
// accumulate until the next one would push the chunk past MaxChunkSize;
// the chunk is then closed with a trailing period and the next chunk is
// seeded with the closing chunk's trailing words. A remainder below
// MinChunkSize is dropped, so a page can legitimately produce no chunks.
func ChunkPage(text string, page int) []Chunk {
	var sentences []string
	for _, candidate := range sentenceSplitRe.Split(text, -1) {
		if s := strings.TrimSpace(candidate); s != "" {
			sentences = append(sentences, s)
		}
	}

	var chunks []Chunk
	var current string
	for _, sentence := range sentences {
		prospective := sentence
		if current != "" {
			prospective = current + ". " + sentence
		}
		if len(prospective) > MaxChunkSize && len(current) >= MinChunkSize {
			chunks = append(chunks, newChunk(len(chunks), page, current))
			words := strings.Fields(current)
			if len(words) > overlapWords {
				words = words[len(words)-overlapWords:]
			}
			current = strings.Join(words, " ") + ". " + sentence
		} else {
			current = prospective
		}
	}
	if len(current) >= MinChunkSize {
		chunks = append(chunks, newChunk(len(chunks), page, current))
	}
	return chunks
}

func newChunk(index, page int, text string) Chunk {
	content := text + "."
	return Chunk{
		Index:     index,
		Page:      page,
		Content:   content,
		WordCount: len(strings.Fields(content)),
		CharCount: len(content),
	}
}
