package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/pagequery/pagequery/domain"
)

func TestSplitExactBoundaries(t *testing.T) {
	chunks, err := Split("AAAAABBBBBCCCCC", 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"AAAAA", "BBBBB", "CCCCC"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Content != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], chunk.Content)
		}
		if chunk.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, chunk.Index)
		}
	}
}

func TestSplitCountFormula(t *testing.T) {
	cases := []struct {
		length, size, overlap int
	}{
		{15, 5, 0},
		{100, 10, 3},
		{1000, 100, 20},
		{7, 5, 2},
		{5, 5, 2},
		{999, 250, 50},
	}

	for _, tc := range cases {
		text := strings.Repeat("x", tc.length)
		chunks, err := Split(text, tc.size, tc.overlap)
		if err != nil {
			t.Fatalf("L=%d S=%d O=%d: unexpected error: %v", tc.length, tc.size, tc.overlap, err)
		}

		stride := tc.size - tc.overlap
		want := (tc.length - tc.overlap + stride - 1) / stride
		if len(chunks) != want {
			t.Errorf("L=%d S=%d O=%d: expected %d chunks, got %d", tc.length, tc.size, tc.overlap, want, len(chunks))
		}
	}
}

func TestSplitOverlapSharesBoundary(t *testing.T) {
	chunks, err := Split("abcdefghij", 6, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "abcdef" || chunks[1].Content != "efghij" {
		t.Fatalf("unexpected chunk contents: %q, %q", chunks[0].Content, chunks[1].Content)
	}
	if chunks[1].StartOffset != chunks[0].EndOffset-2 {
		t.Errorf("expected 2-rune overlap, got start %d after end %d", chunks[1].StartOffset, chunks[0].EndOffset)
	}
}

func TestSplitRemainderKept(t *testing.T) {
	chunks, err := Split("abcdefg", 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Content != "fg" {
		t.Errorf("expected remainder chunk %q, got %q", "fg", chunks[1].Content)
	}
	for _, chunk := range chunks {
		if chunk.Content == "" {
			t.Error("zero-length chunk emitted")
		}
	}
}

func TestSplitCoversWholeText(t *testing.T) {
	text := strings.Repeat("paragraph of text ", 40)
	chunks, err := Split(text, 64, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runes := []rune(text)
	if chunks[0].StartOffset != 0 {
		t.Errorf("first chunk starts at %d", chunks[0].StartOffset)
	}
	if last := chunks[len(chunks)-1]; last.EndOffset != len(runes) {
		t.Errorf("last chunk ends at %d, text has %d runes", last.EndOffset, len(runes))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartOffset > chunks[i-1].EndOffset {
			t.Errorf("gap between chunk %d and %d", i-1, i)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("déjà vu über alles ", 30)
	first, err := Split(text, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Split(text, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitInvalidInput(t *testing.T) {
	cases := []struct {
		name          string
		text          string
		size, overlap int
	}{
		{"empty text", "", 10, 2},
		{"whitespace text", "   \n\t ", 10, 2},
		{"zero size", "hello", 0, 0},
		{"overlap equals size", "hello", 5, 5},
		{"overlap exceeds size", "hello", 5, 8},
		{"negative overlap", "hello", 5, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Split(tc.text, tc.size, tc.overlap); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
