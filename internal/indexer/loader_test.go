package indexer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/shiraberu/internal/models"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".pdf", []string{"pdf"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		if got := extensionAllowed(tt.ext, tt.allowed); got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func TestLoader_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "z.txt"), "last")
	writeFile(t, filepath.Join(dir, "a.md"), "# first")
	writeFile(t, filepath.Join(dir, "sub", "m.html"), "<html><body><main>nested page</main></body></html>")
	writeFile(t, filepath.Join(dir, "empty.txt"), "   \n")
	writeFile(t, filepath.Join(dir, "code.go"), "package main")
	writeFile(t, filepath.Join(dir, "broken.pdf"), "not a pdf")

	docs, err := NewLoader(nil, nil).LoadDirectory(dir, nil)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	want := []models.Document{
		{Source: "a.md", Content: "# first", Type: models.DocTypeMarkdown},
		{Source: "sub/m.html", Content: "nested page", Type: models.DocTypeHTML},
		{Source: "z.txt", Content: "last", Type: models.DocTypeText},
	}
	if len(docs) != len(want) {
		t.Fatalf("got %d docs: %+v", len(docs), docs)
	}
	for i := range want {
		if docs[i] != want[i] {
			t.Errorf("doc %d = %+v, want %+v", i, docs[i], want[i])
		}
	}
}

func TestLoader_LoadDirectoryExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "markdown")
	writeFile(t, filepath.Join(dir, "b.txt"), "text")

	docs, err := NewLoader(nil, nil).LoadDirectory(dir, []string{".txt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Source != "b.txt" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestLoader_LoadDirectoryErrors(t *testing.T) {
	l := NewLoader(nil, nil)
	if _, err := l.LoadDirectory(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("expected error for missing directory")
	}
	file := filepath.Join(t.TempDir(), "f.txt")
	writeFile(t, file, "x")
	if _, err := l.LoadDirectory(file, nil); err == nil {
		t.Error("expected error for non-directory")
	}
}

func TestLoader_LoadRawDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.json")
	writeFile(t, path, `[
		{"source": "policy.pdf", "content": "policy text"},
		{"source": "page.html", "content": "page text", "type": "web"},
		{"source": "blank.pdf", "content": "  "}
	]`)
	docs, err := NewLoader(nil, nil).LoadRawDocuments(path)
	if err != nil {
		t.Fatalf("LoadRawDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %+v", docs)
	}
	if docs[0].Type != models.DocTypePDF || docs[0].QualifiedSource() != "pdf:policy.pdf" {
		t.Errorf("doc 0 = %+v", docs[0])
	}
	if docs[1].Type != models.DocTypeWeb {
		t.Errorf("doc 1 = %+v", docs[1])
	}
}

func TestLoader_LoadRawDocumentsErrors(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(nil, nil)
	if _, err := l.LoadRawDocuments(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadRawDocuments(bad); err == nil {
		t.Error("expected parse error")
	}
	noSource := filepath.Join(dir, "nosource.json")
	writeFile(t, noSource, `[{"content": "orphan"}]`)
	if _, err := l.LoadRawDocuments(noSource); err == nil {
		t.Error("expected error for record without source")
	}
	badType := filepath.Join(dir, "badtype.json")
	writeFile(t, badType, `[{"source": "x.pdf", "content": "text", "type": "spreadsheet"}]`)
	if _, err := l.LoadRawDocuments(badType); err == nil || !strings.Contains(err.Error(), `unknown type "spreadsheet"`) {
		t.Errorf("expected unknown type error, got %v", err)
	}
}
