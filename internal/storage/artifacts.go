package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/vector"
)

var (
	// ErrArtifactsMissing is returned when the index or metadata file does not exist.
	ErrArtifactsMissing = errors.New("index artifacts missing")
	// ErrMisaligned is returned when the index size and metadata length differ.
	ErrMisaligned = errors.New("index and metadata are misaligned")
)

// ArtifactStore reads and writes the vector index and its metadata sequence as a pair.
type ArtifactStore struct {
	IndexPath    string
	MetadataPath string
}

// NewArtifactStore returns a store for the given index and metadata paths.
func NewArtifactStore(indexPath, metadataPath string) *ArtifactStore {
	return &ArtifactStore{IndexPath: indexPath, MetadataPath: metadataPath}
}

// Exists reports whether both artifacts are present.
func (s *ArtifactStore) Exists() bool {
	return fileExists(s.IndexPath) && fileExists(s.MetadataPath)
}

// Save writes idx and chunks so that both files are replaced together or not at all.
// Both are first written and synced to temporary files next to their targets; the
// index is then renamed into place followed by the metadata. If the metadata rename
// fails, the previous index is restored from its backup.
func (s *ArtifactStore) Save(idx vector.Index, chunks []models.Chunk) (err error) {
	if idx.Size() != len(chunks) {
		return fmt.Errorf("%w: index has %d vectors, metadata has %d chunks", ErrMisaligned, idx.Size(), len(chunks))
	}
	for _, p := range []string{s.IndexPath, s.MetadataPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("create artifact directory: %w", err)
		}
	}

	run := uuid.NewString()
	indexTmp := s.IndexPath + ".tmp-" + run
	metaTmp := s.MetadataPath + ".tmp-" + run
	backup := s.IndexPath + ".bak"
	defer func() {
		if err != nil {
			_ = os.Remove(indexTmp)
			_ = os.Remove(metaTmp)
		}
	}()

	if err := idx.Save(indexTmp); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := syncFile(indexTmp); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	if err := writeMetadata(metaTmp, chunks); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	hadIndex := fileExists(s.IndexPath)
	if hadIndex {
		if err := os.Rename(s.IndexPath, backup); err != nil {
			return fmt.Errorf("back up index: %w", err)
		}
	}
	if err := os.Rename(indexTmp, s.IndexPath); err != nil {
		if hadIndex {
			_ = os.Rename(backup, s.IndexPath)
		}
		return fmt.Errorf("install index: %w", err)
	}
	if err := os.Rename(metaTmp, s.MetadataPath); err != nil {
		if hadIndex {
			_ = os.Rename(backup, s.IndexPath)
		} else {
			_ = os.Remove(s.IndexPath)
		}
		return fmt.Errorf("install metadata: %w", err)
	}
	if hadIndex {
		_ = os.Remove(backup)
	}
	syncDir(filepath.Dir(s.IndexPath))
	syncDir(filepath.Dir(s.MetadataPath))
	return nil
}

// Load reads the pair back. newIndex creates the empty index the stored vectors are
// loaded into. The pair must be positionally aligned.
func (s *ArtifactStore) Load(newIndex func() (vector.Index, error)) (vector.Index, []models.Chunk, error) {
	for _, p := range []string{s.IndexPath, s.MetadataPath} {
		if !fileExists(p) {
			return nil, nil, fmt.Errorf("%w: %s", ErrArtifactsMissing, p)
		}
	}

	chunks, err := ReadMetadata(s.MetadataPath)
	if err != nil {
		return nil, nil, err
	}

	idx, err := newIndex()
	if err != nil {
		return nil, nil, fmt.Errorf("create vector index: %w", err)
	}
	if err := idx.Load(s.IndexPath); err != nil {
		_ = idx.Close()
		return nil, nil, fmt.Errorf("load index %s: %w", s.IndexPath, err)
	}
	if idx.Size() != len(chunks) {
		_ = idx.Close()
		return nil, nil, fmt.Errorf("%w: index has %d vectors, metadata has %d chunks", ErrMisaligned, idx.Size(), len(chunks))
	}
	return idx, chunks, nil
}

// ReadMetadata decodes a metadata file: a JSON array of chunk records in index order.
func ReadMetadata(path string) ([]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return chunks, nil
}

func writeMetadata(path string, chunks []models.Chunk) error {
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// syncDir persists renames; some filesystems do not support it, so errors are ignored.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
