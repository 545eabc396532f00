// Package vector provides a brute-force in-memory cosine index with a
// binary snapshot format for sharing between processes.
package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

// MemoryIndex stores normalized vectors and answers top-k queries by dot
// product, which equals cosine similarity for normalized vectors. The
// dimension is fixed by the first Add and every later vector must match.
type MemoryIndex struct {
	mu         sync.RWMutex
	dimensions int
	ids        []string
	vectors    [][]float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, id := range ids {
		vec := vectors[i]
		if len(vec) == 0 {
			return fmt.Errorf("empty vector for id %s", id)
		}
		if m.dimensions == 0 {
			m.dimensions = len(vec)
		}
		if len(vec) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
		}
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, normalize(vec))
	}
	return nil
}

func (m *MemoryIndex) Search(query []float32, k int) ([]ports.VectorHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}

	normalized := normalize(query)
	hits := make([]ports.VectorHit, len(m.ids))
	for i, vec := range m.vectors {
		var dot float64
		for j := range vec {
			dot += float64(normalized[j]) * float64(vec[j])
		}
		hits[i] = ports.VectorHit{ChunkID: m.ids[i], Score: dot}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Merge folds another MemoryIndex into this one. The receiver adopts the
// other index's dimension when it is still empty.
func (m *MemoryIndex) Merge(other ports.VectorIndex) error {
	o, ok := other.(*MemoryIndex)
	if !ok {
		return fmt.Errorf("cannot merge index of type %T", other)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(o.ids) == 0 {
		return nil
	}
	if m.dimensions == 0 {
		m.dimensions = o.dimensions
	}
	if o.dimensions != m.dimensions {
		return fmt.Errorf("merge dimension mismatch: got %d, expected %d", o.dimensions, m.dimensions)
	}

	m.ids = append(m.ids, o.ids...)
	// Vectors in the source are already normalized; copy so later mutations
	// of either index stay independent.
	for _, vec := range o.vectors {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		m.vectors = append(m.vectors, cp)
	}
	return nil
}

func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Save writes the snapshot: dimension (4), count (4), then per vector
// idLen (4), id bytes, dimension*4 vector bytes. Little endian throughout.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}

	if err := m.write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot file: %w", err)
	}
	// Readers in other processes must never see a half-written snapshot.
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

func (m *MemoryIndex) write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range m.ids {
		idBytes := []byte(id)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id length: %w", err)
		}
		if _, err := w.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, m.vectors[i]); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Header fields of a corrupt snapshot must not drive allocations; anything
// past these bounds is garbage, not a real index.
const (
	maxSnapshotDimensions = 1 << 16
	maxSnapshotIDLength   = 1 << 10
	snapshotAllocHint     = 1 << 16
)

// LoadSnapshot reads a snapshot written by Save into a fresh index.
func LoadSnapshot(path string) (*MemoryIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if n > 0 && (dim == 0 || dim > maxSnapshotDimensions) {
		return nil, fmt.Errorf("snapshot dimensions out of range: %d", dim)
	}

	hint := int(n)
	if hint > snapshotAllocHint {
		hint = snapshotAllocHint
	}
	idx := &MemoryIndex{
		dimensions: int(dim),
		ids:        make([]string, 0, hint),
		vectors:    make([][]float32, 0, hint),
	}
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("read id length: %w", err)
		}
		if idLen == 0 || idLen > maxSnapshotIDLength {
			return nil, fmt.Errorf("snapshot id length out of range: %d", idLen)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return nil, fmt.Errorf("read id: %w", err)
		}
		vec := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		idx.ids = append(idx.ids, string(idBytes))
		idx.vectors = append(idx.vectors, vec)
	}
	return idx, nil
}

// Factory creates and loads memory indexes behind the index ports.
type Factory struct{}

func (Factory) New() ports.VectorIndex {
	return NewMemoryIndex()
}

func (Factory) Load(path string) (ports.VectorIndex, error) {
	return LoadSnapshot(path)
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	if norm == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
