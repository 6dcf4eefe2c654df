package indexer

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/shiraberu/internal/extract"
	"github.com/hyperjump/shiraberu/internal/models"
	"go.uber.org/zap"
)

// Loader turns source directories and raw document dumps into Documents.
type Loader struct {
	extractor *extract.Extractor
	logger    *zap.Logger
}

// NewLoader returns a loader that extracts file text with extractor.
func NewLoader(extractor *extract.Extractor, logger *zap.Logger) *Loader {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{extractor: extractor, logger: logger}
}

// LoadDirectory walks dir in lexical order and extracts every regular file whose
// extension is in exts (every supported extension when exts is empty). Source is
// the slash-separated path relative to dir. Files that fail to extract or yield
// no text are logged and skipped.
func (l *Loader) LoadDirectory(dir string, exts []string) ([]models.Document, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var docs []models.Document
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !l.wantExtension(ext, exts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(absDir, path)
		if relErr != nil {
			return relErr
		}
		text, extractErr := l.extractor.Extract(path)
		if extractErr != nil {
			l.logger.Warn("skipping file", zap.String("path", path), zap.Error(extractErr))
			return nil
		}
		if strings.TrimSpace(text) == "" {
			l.logger.Debug("skipping file with no text", zap.String("path", path))
			return nil
		}
		docs = append(docs, models.Document{
			Source:  filepath.ToSlash(rel),
			Content: text,
			Type:    extract.DocTypeFor(ext),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("loaded directory", zap.String("dir", absDir), zap.Int("documents", len(docs)))
	return docs, nil
}

func (l *Loader) wantExtension(ext string, exts []string) bool {
	if len(exts) == 0 {
		return extract.Supported(ext)
	}
	return extensionAllowed(ext, exts)
}

// LoadRawDocuments reads a JSON array of {source, content, type} records, the
// format produced by earlier extraction runs. Records without a type are PDF text.
func (l *Loader) LoadRawDocuments(path string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw documents: %w", err)
	}
	var docs []models.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse raw documents %s: %w", path, err)
	}
	out := docs[:0]
	for i, d := range docs {
		if d.Source == "" {
			return nil, fmt.Errorf("raw document %d has no source", i)
		}
		if d.Type == "" {
			d.Type = models.DocTypePDF
		}
		if !d.Type.Valid() {
			return nil, fmt.Errorf("raw document %d (%s) has unknown type %q", i, d.Source, d.Type)
		}
		if strings.TrimSpace(d.Content) == "" {
			l.logger.Debug("skipping empty raw document", zap.String("source", d.Source))
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
