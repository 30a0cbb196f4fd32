package chunker

import (
	"strings"
	"testing"
)

func TestChunkPageEmptyInput(t *testing.T) {
	if chunks := ChunkPage("", 1); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty input, got %d", len(chunks))
	}
	if chunks := ChunkPage("   \n  ", 1); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for whitespace input, got %d", len(chunks))
	}
}

func TestChunkPageDropsSubMinimumRemainder(t *testing.T) {
	// 99 characters of sentence text stays below MinChunkSize and is
	// dropped rather than emitted.
	text := strings.Repeat("short words here", 6) + "abc." // 99 chars before the period
	if len(text)-1 != 99 {
		t.Fatalf("fixture is %d chars, want 99", len(text)-1)
	}
	if chunks := ChunkPage(text, 1); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for 99-char page, got %d", len(chunks))
	}
}

func TestChunkPageSingleChunk(t *testing.T) {
	text := "This is a sentence that easily clears the minimum viable size for one chunk. It has a second sentence too."
	chunks := ChunkPage(text, 2)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Index != 0 || c.Page != 2 {
		t.Errorf("unexpected index/page: %+v", c)
	}
	if !strings.HasSuffix(c.Content, ".") {
		t.Errorf("content should end with a period: %q", c.Content)
	}
	if c.WordCount != len(strings.Fields(c.Content)) {
		t.Errorf("word count mismatch: %d", c.WordCount)
	}
	if c.CharCount != len(c.Content) {
		t.Errorf("char count mismatch: %d", c.CharCount)
	}
}

func longText(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		b.WriteString("The examiner reviewed the service treatment records and noted ongoing complaints of pain. ")
	}
	return b.String()
}

func TestChunkPageSplitsLongText(t *testing.T) {
	// ~1500+ chars of sentence text must produce at least two chunks.
	chunks := ChunkPage(longText(18), 1)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		// Closed chunks stay within the maximum (plus the trailing period).
		if i < len(chunks)-1 && c.CharCount > MaxChunkSize+1 {
			t.Errorf("chunk %d is %d chars", i, c.CharCount)
		}
		if c.CharCount < MinChunkSize {
			t.Errorf("chunk %d below minimum: %d chars", i, c.CharCount)
		}
	}
}

func TestChunkPageOverlap(t *testing.T) {
	chunks := ChunkPage(longText(18), 1)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	first := strings.Fields(strings.TrimSuffix(chunks[0].Content, "."))
	tail := first
	if len(tail) > overlapWords {
		tail = tail[len(tail)-overlapWords:]
	}
	overlap := strings.Join(tail, " ")
	if !strings.HasPrefix(chunks[1].Content, overlap) {
		t.Errorf("second chunk does not start with the first chunk's word tail\noverlap: %q\nsecond:  %q",
			overlap, chunks[1].Content[:min(len(chunks[1].Content), len(overlap)+20)])
	}
}

func TestChunkPageOversizedSentenceNotSplit(t *testing.T) {
	// A single sentence beyond MaxChunkSize cannot be split further and
	// is emitted whole.
	giant := strings.Repeat("word ", 300)
	chunks := ChunkPage(strings.TrimSpace(giant)+". Short tail sentence follows here with enough length to meet minimum viable chunk size", 1)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0].CharCount <= MaxChunkSize {
		t.Errorf("expected oversized first chunk, got %d chars", chunks[0].CharCount)
	}
}
