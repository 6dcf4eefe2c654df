package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat uses exact in-process brute-force search. Good for small corpora.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeFAISS uses a FAISS IndexFlatL2 (still exact, native code).
	// Requires FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewIndex creates an empty vector index of the specified type.
// Supported types: "flat" (default), "faiss".
func NewIndex(indexType IndexType, dimensions int) (Index, error) {
	switch indexType {
	case IndexTypeFlat, "":
		idx, err := NewFlatIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case IndexTypeFAISS:
		idx, err := NewFAISSIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}

// Factory returns a constructor for empty indexes of the given type and dimension.
func Factory(indexType IndexType, dimensions int) func() (Index, error) {
	return func() (Index, error) {
		return NewIndex(indexType, dimensions)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
