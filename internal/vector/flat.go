package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// flatMagic identifies the FlatIndex file format.
var flatMagic = [8]byte{'S', 'H', 'R', 'F', 'L', 'A', 'T', '1'}

// ErrCorruptIndex is returned when an index file cannot be decoded.
var ErrCorruptIndex = errors.New("corrupt index file")

// FlatIndex is an exact brute-force index using squared Euclidean distance.
// Vectors are kept in insertion order; a vector's position never changes.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Add appends vectors. Either all vectors are added or none are.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) error {
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(vec), f.dimensions)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vec := range vectors {
		v := make([]float32, f.dimensions)
		copy(v, vec)
		f.vectors = append(f.vectors, v)
	}
	return nil
}

// Search returns the k nearest vectors ordered by ascending squared distance.
// Ties are broken by lower position so results are deterministic.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	neighbors := make([]Neighbor, len(f.vectors))
	for i, vec := range f.vectors {
		neighbors[i] = Neighbor{Position: i, Distance: SquaredL2(query, vec)}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Position < neighbors[j].Position
	})
	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k], nil
}

// Vector returns a copy of the vector at position p.
func (f *FlatIndex) Vector(p int) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if p < 0 || p >= len(f.vectors) {
		return nil, false
	}
	out := make([]float32, f.dimensions)
	copy(out, f.vectors[p])
	return out, true
}

// Save writes the index to path, creating the directory if needed.
// Format: magic (8), dimension (4), n (4), then n*dimension little-endian float32.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("index path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(16 + len(f.vectors)*f.dimensions*4)
	buf.Write(flatMagic[:])
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.dimensions))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(f.vectors)))
	for _, vec := range f.vectors {
		buf.Write(float32SliceToBytes(vec))
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		return fmt.Errorf("write index file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	return file.Close()
}

// Load replaces the index contents with the file at path. The file's dimension must
// match the index. A missing file is an error that wraps os.ErrNotExist.
func (f *FlatIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read index file: %w", err)
	}
	vectors, err := decodeFlat(data, f.dimensions)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = vectors
	return nil
}

func decodeFlat(data []byte, dimensions int) ([][]float32, error) {
	if len(data) < 16 || !bytes.Equal(data[:8], flatMagic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptIndex)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	n := int(binary.LittleEndian.Uint32(data[12:16]))
	if dim != dimensions {
		return nil, fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, dimensions)
	}
	body := data[16:]
	if len(body) != n*dim*4 {
		return nil, fmt.Errorf("%w: expected %d vector bytes, got %d", ErrCorruptIndex, n*dim*4, len(body))
	}
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		vectors[i] = bytesToFloat32Slice(body[i*dim*4 : (i+1)*dim*4])
	}
	return vectors, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
