package vector

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	idx := NewMemoryIndex()
	err := idx.Add(
		[]string{"x", "y", "diag"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := idx.Search([]float32{10, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ChunkID != "x" {
		t.Fatalf("top hit = %q, want x", hits[0].ChunkID)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-6 {
		t.Fatalf("identical direction score = %f, want 1.0", hits[0].Score)
	}
	if hits[1].ChunkID != "diag" {
		t.Fatalf("second hit = %q, want diag", hits[1].ChunkID)
	}
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx := NewMemoryIndex()
	if err := idx.Add([]string{"a"}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add([]string{"b"}, [][]float32{{1, 0}}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := NewMemoryIndex()
	hits, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits from empty index", len(hits))
	}
}

func TestMergeCombinesIndexes(t *testing.T) {
	main := NewMemoryIndex()
	batch1 := NewMemoryIndex()
	batch2 := NewMemoryIndex()

	if err := batch1.Add([]string{"a"}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Add batch1: %v", err)
	}
	if err := batch2.Add([]string{"b"}, [][]float32{{0, 1}}); err != nil {
		t.Fatalf("Add batch2: %v", err)
	}

	if err := main.Merge(batch1); err != nil {
		t.Fatalf("Merge batch1: %v", err)
	}
	if err := main.Merge(batch2); err != nil {
		t.Fatalf("Merge batch2: %v", err)
	}

	if main.Count() != 2 {
		t.Fatalf("count = %d, want 2", main.Count())
	}
	hits, err := main.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].ChunkID != "b" {
		t.Fatalf("top hit = %q, want b", hits[0].ChunkID)
	}
}

func TestMergeRejectsDimensionMismatch(t *testing.T) {
	main := NewMemoryIndex()
	if err := main.Add([]string{"a"}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	other := NewMemoryIndex()
	if err := other.Add([]string{"b"}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := main.Merge(other); err == nil {
		t.Fatal("expected merge dimension mismatch error")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")

	idx := NewMemoryIndex()
	err := idx.Add(
		[]string{"chunk-1", "chunk-2"},
		[][]float32{{0.6, 0.8}, {1, 0}},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("loaded count = %d, want 2", loaded.Count())
	}

	hits, err := loaded.Search([]float32{0.6, 0.8}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].ChunkID != "chunk-1" {
		t.Fatalf("top hit = %q, want chunk-1", hits[0].ChunkID)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-6 {
		t.Fatalf("score = %f, want 1.0", hits[0].Score)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func TestLoadSnapshotRejectsCorruptHeader(t *testing.T) {
	writeSnapshot := func(t *testing.T, name string, fields ...uint32) string {
		t.Helper()
		var buf bytes.Buffer
		for _, v := range fields {
			if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			t.Fatalf("write snapshot: %v", err)
		}
		return path
	}

	t.Run("oversized dimensions", func(t *testing.T) {
		path := writeSnapshot(t, "dim.bin", 0xFFFFFFFF, 1)
		if _, err := LoadSnapshot(path); err == nil {
			t.Fatal("expected error for oversized dimensions")
		}
	})
	t.Run("zero dimensions with vectors", func(t *testing.T) {
		path := writeSnapshot(t, "zero.bin", 0, 5)
		if _, err := LoadSnapshot(path); err == nil {
			t.Fatal("expected error for zero dimensions with a nonzero count")
		}
	})
	t.Run("oversized id length", func(t *testing.T) {
		path := writeSnapshot(t, "idlen.bin", 2, 1, 0xFFFFFFFF)
		if _, err := LoadSnapshot(path); err == nil {
			t.Fatal("expected error for oversized id length")
		}
	})
	t.Run("huge count fails without huge allocation", func(t *testing.T) {
		// Truncated body: the loader must hit EOF, not allocate for the
		// claimed count up front.
		path := writeSnapshot(t, "count.bin", 2, 0xFFFFFFFF)
		if _, err := LoadSnapshot(path); err == nil {
			t.Fatal("expected error for truncated snapshot")
		}
	})
}
