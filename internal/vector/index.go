// Package vector provides positional nearest-neighbor indexes over embedding vectors.
package vector

import "context"

// Index stores vectors by insertion position and answers nearest-neighbor queries by
// squared Euclidean distance. It never stores chunk identity: position p refers to the
// p-th vector ever added, and callers keep their own metadata aligned to it.
type Index interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Neighbor is a single search hit. Search returns neighbors in non-decreasing Distance order.
type Neighbor struct {
	Position int
	Distance float64 // squared L2
}
