// Package docs provides the automation documents trigger matching scans.
package docs

import (
	"context"
	"sync"
)

// Article types
const (
	ArticleTypeDefault     = "default"
	ArticleTypeJolliScript = "jolliscript" // Executable: a match queues a script run
)

// Document is a markdown document with optional front matter
type Document struct {
	ID          string `json:"id"`
	JRN         string `json:"jrn"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ArticleType string `json:"articleType"`
}

// Executable reports whether a trigger match should queue a script run
func (d Document) Executable() bool {
	return d.ArticleType == ArticleTypeJolliScript
}

// Source lists the documents of one tenant
type Source interface {
	ListDocuments(ctx context.Context) ([]Document, error)
}

// StaticSource serves a fixed set of documents
type StaticSource struct {
	mu   sync.RWMutex
	docs []Document
}

// NewStaticSource creates a source over docs
func NewStaticSource(docs ...Document) *StaticSource {
	return &StaticSource{docs: append([]Document(nil), docs...)}
}

// ListDocuments implements Source
func (s *StaticSource) ListDocuments(_ context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Document(nil), s.docs...), nil
}

// Add appends a document
func (s *StaticSource) Add(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
}
