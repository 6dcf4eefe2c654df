// Package models defines core data structures for documents, chunks, queries, and retrieval results.
package models

import "fmt"

// DocType identifies where a document's text came from.
type DocType string

const (
	DocTypePDF      DocType = "pdf"
	DocTypeWeb      DocType = "web"
	DocTypeText     DocType = "text"
	DocTypeMarkdown DocType = "markdown"
	DocTypeHTML     DocType = "html"
	DocTypeDOCX     DocType = "docx"
	DocTypeXLSX     DocType = "xlsx"
)

// Valid reports whether t is one of the known document types.
func (t DocType) Valid() bool {
	switch t {
	case DocTypePDF, DocTypeWeb, DocTypeText, DocTypeMarkdown, DocTypeHTML, DocTypeDOCX, DocTypeXLSX:
		return true
	}
	return false
}

// Document is a raw ingested document. It is produced by extraction and never modified afterwards.
type Document struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Type    DocType `json:"type"`
}

// QualifiedSource returns the source prefixed with its type, e.g. "pdf:policy.pdf".
// Chunks carry this form so sources of different types never collide.
func (d Document) QualifiedSource() string {
	if d.Type == "" {
		return d.Source
	}
	return fmt.Sprintf("%s:%s", d.Type, d.Source)
}

// Chunk is one text window of a document and the unit of indexing and retrieval.
// The persisted metadata sequence is an ordered list of these records.
type Chunk struct {
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	DocType    DocType `json:"doc_type"`
	ChunkIndex int     `json:"chunk_index"`
}
