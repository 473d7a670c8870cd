// Package vector provides an in-memory brute-force vector index.
package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type entry struct {
	id  string
	vec []float32
}

// MemoryIndex is an in-memory vector index using brute-force inner product
// search. The corpus here is query documents (tens of thousands at most),
// for which a linear scan is well within budget.
type MemoryIndex struct {
	dimensions int
	entries    []entry
	lookup     map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		lookup:     make(map[string]int),
	}, nil
}

// Add upserts vectors by ID: an existing ID is replaced in place so
// re-indexing a document does not duplicate it.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		if at, ok := m.lookup[id]; ok {
			m.entries[at].vec = vec
			continue
		}
		m.lookup[id] = len(m.entries)
		m.entries = append(m.entries, entry{id: id, vec: vec})
	}
	return nil
}

// Search returns the top-k vectors by inner product (cosine similarity for
// normalized vectors). It checks ctx before the scan so a timed-out caller
// does not wait for the full pass.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]*VectorResult, len(m.entries))
	for i := range m.entries {
		e := &m.entries[i]
		var dot float64
		for j, q := range query {
			dot += float64(q) * float64(e.vec[j])
		}
		results[i] = &VectorResult{ID: e.id, Score: dot}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Remove removes vectors by ID, rebuilding the backing slice and lookup.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !drop[e.id] {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	m.lookup = make(map[string]int, len(kept))
	for i, e := range kept {
		m.lookup[e.id] = i
	}
	return nil
}

// Save persists the index to path. The parent directory is created if
// needed. Format: dimensions (u32), count (u32), then per entry: id length
// (u32), id bytes, dimensions float32 values, all little-endian.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeU32(w, uint32(m.dimensions)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(m.entries))); err != nil {
		return err
	}
	for _, e := range m.entries {
		if err := writeU32(w, uint32(len(e.id))); err != nil {
			return err
		}
		if _, err := w.WriteString(e.id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		for _, v := range e.vec {
			if err := writeU32(w, math.Float32bits(v)); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. A missing file is not an error; the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	dim, err := readU32(r)
	if err != nil {
		return err
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	n, err := readU32(r)
	if err != nil {
		return err
	}

	entries := make([]entry, 0, n)
	lookup := make(map[string]int, n)
	for i := uint32(0); i < n; i++ {
		idLen, err := readU32(r)
		if err != nil {
			return err
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		vec := make([]float32, m.dimensions)
		for j := range vec {
			bits, err := readU32(r)
			if err != nil {
				return err
			}
			vec[j] = math.Float32frombits(bits)
		}
		lookup[string(idBytes)] = len(entries)
		entries = append(entries, entry{id: string(idBytes), vec: vec})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	m.lookup = lookup
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write index data: %w", err)
	}
	return nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read index data: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
