package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortTextSingleSpan(t *testing.T) {
	s := NewSplitter(800, 150)
	spans := s.Split("short text")
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Text != "short text" || spans[0].Start != 0 {
		t.Fatalf("span = %+v", spans[0])
	}
}

func TestSplitOverlappingWindows(t *testing.T) {
	s := NewSplitter(10, 4)
	text := strings.Repeat("abcdefghij", 3)

	spans := s.Split(text)
	if len(spans) < 3 {
		t.Fatalf("got %d spans, want at least 3", len(spans))
	}
	if spans[0].Start != 0 || spans[1].Start != 6 || spans[2].Start != 12 {
		t.Fatalf("starts = %d, %d, %d, want 0, 6, 12", spans[0].Start, spans[1].Start, spans[2].Start)
	}
	if len(spans[0].Text) != 10 {
		t.Fatalf("first span length = %d, want 10", len(spans[0].Text))
	}
	// Consecutive spans share the overlap region.
	if spans[0].Text[6:] != spans[1].Text[:4] {
		t.Fatalf("overlap mismatch: %q vs %q", spans[0].Text[6:], spans[1].Text[:4])
	}
}

func TestSplitEmptyText(t *testing.T) {
	if spans := NewSplitter(800, 150).Split(""); spans != nil {
		t.Fatalf("got %d spans from empty text", len(spans))
	}
}

func TestSplitMultibyteRunes(t *testing.T) {
	s := NewSplitter(4, 0)
	spans := s.Split("日本語のテキスト")
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Text != "日本語の" || spans[1].Text != "テキスト" {
		t.Fatalf("spans = %q, %q", spans[0].Text, spans[1].Text)
	}
	if spans[1].Start != 4 {
		t.Fatalf("second start = %d, want rune offset 4", spans[1].Start)
	}
}

func TestNewSplitterNormalizesBadConfig(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 800 || s.Overlap != 0 {
		t.Fatalf("splitter = %+v", s)
	}
	s = NewSplitter(100, 200)
	if s.Overlap != 25 {
		t.Fatalf("overlap = %d, want 25", s.Overlap)
	}
}
