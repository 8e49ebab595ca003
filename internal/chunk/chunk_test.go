package chunk

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	chunks := Split("hello\nworld\n", 4000)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "hello\nworld" {
		t.Fatalf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplit_NineThousandCharsYieldsThreeChunks(t *testing.T) {
	line := strings.Repeat("x", 99)
	lines := make([]string, 90)
	for i := range lines {
		lines[i] = line
	}
	text := strings.Join(lines, "\n") + "\n"
	if len(text) != 9000 {
		t.Fatalf("fixture should be 9000 chars, got %d", len(text))
	}

	chunks := Split(text, 4000)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if Length(c) > 4000 {
			t.Errorf("chunk %d exceeds limit: %d", i, Length(c))
		}
	}
}

func TestSplit_RejoinPreservesLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "line%d:%s\n", i, strings.Repeat("y", i%37))
	}
	text := strings.TrimSpace(b.String())

	chunks := Split(text, 500)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if Length(c) > 500 {
			t.Errorf("chunk %d exceeds limit: %d", i, Length(c))
		}
	}
	if got := strings.Join(chunks, "\n"); got != text {
		t.Fatal("rejoined chunks do not reproduce the original lines")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("abc def\n", 1000)
	a := Split(text, 333)
	b := Split(text, 333)
	if len(a) != len(b) {
		t.Fatalf("chunk count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

func TestSplit_OversizedLineIsKeptWhole(t *testing.T) {
	long := strings.Repeat("z", 120)
	chunks := Split("head\n"+long+"\ntail", 50)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != "head" || chunks[1] != long || chunks[2] != "tail" {
		t.Fatalf("unexpected chunks: %q", chunks)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	if chunks := Split("", 100); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %q", chunks)
	}
	if chunks := Split(" \n\n \n", 100); len(chunks) != 0 {
		t.Fatalf("expected no chunks for whitespace, got %q", chunks)
	}
}

func TestSplit_BoundaryCountsLineFeed(t *testing.T) {
	// "aaaa\n" is 5 units: two lines fit exactly in 10, a third spills over.
	chunks := Split("aaaa\nbbbb\ncccc", 10)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != "aaaa\nbbbb" || chunks[1] != "cccc" {
		t.Fatalf("unexpected chunks: %q", chunks)
	}
}

func TestLength_CountsUTF16Units(t *testing.T) {
	if n := Length("héllo"); n != 5 {
		t.Fatalf("expected 5, got %d", n)
	}
	if n := Length("👋"); n != 2 {
		t.Fatalf("expected surrogate pair to count as 2, got %d", n)
	}
}
