package docs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
)

// DocsJRNPrefix heads the JRN of every document loaded from disk
const DocsJRNPrefix = "jrn::path:/home/global/docs"

// DirSource reads *.md documents under a directory.
// Documents are cached until Invalidate is called or Watch sees a change.
type DirSource struct {
	dir    string
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	cache  []Document
	cached bool
	loads  atomic.Int64
}

// NewDirSource creates a source over dir
func NewDirSource(dir string, log *zap.SugaredLogger) *DirSource {
	return &DirSource{
		dir:    dir,
		logger: logger.OrDefault(log).Named("docs"),
	}
}

// Dir returns the watched directory
func (s *DirSource) Dir() string { return s.dir }

// Loads counts how many times documents were read from disk
func (s *DirSource) Loads() int64 { return s.loads.Load() }

// ListDocuments implements Source
func (s *DirSource) ListDocuments(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	if s.cached {
		docs := append([]Document(nil), s.cache...)
		s.mu.RUnlock()
		return docs, nil
	}
	s.mu.RUnlock()

	docs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache = docs
	s.cached = true
	s.mu.Unlock()
	return append([]Document(nil), docs...), nil
}

// Invalidate drops the cache
func (s *DirSource) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.cached = false
	s.mu.Unlock()
}

func (s *DirSource) load(ctx context.Context) ([]Document, error) {
	s.loads.Add(1)
	var docs []Document
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read document %s", path)
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		docs = append(docs, s.document(filepath.ToSlash(rel), string(raw)))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load documents from %s", s.dir)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	s.logger.Debugw("Loaded documents", "dir", s.dir, logger.FieldCount, len(docs))
	return docs, nil
}

// document builds a Document. Front matter that fails to parse leaves the
// default type; the trigger scan reports the parse error itself.
func (s *DirSource) document(id, content string) Document {
	name := strings.TrimSuffix(id, filepath.Ext(id))
	doc := Document{
		ID:          id,
		JRN:         DocsJRNPrefix + "/" + name,
		Title:       filepath.Base(name),
		Content:     content,
		ArticleType: ArticleTypeDefault,
	}
	fm, err := ParseFrontMatter(content)
	if err != nil {
		return doc
	}
	doc.ArticleType = fm.ArticleTypeOf()
	if fm.Title != "" {
		doc.Title = fm.Title
	}
	return doc
}

// Watch invalidates the cache whenever a file under the directory changes.
// It blocks until ctx is done. ready, if non-nil, is closed once watching.
func (s *DirSource) Watch(ctx context.Context, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	defer watcher.Close()

	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to watch %s", s.dir)
	}
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						s.logger.Warnw("Failed to watch new directory", "dir", event.Name, logger.FieldError, err)
					}
				}
			}
			s.logger.Debugw("Documents changed", "file", event.Name, "op", event.Op.String())
			s.Invalidate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warnw("Document watcher error", logger.FieldError, err)
		}
	}
}
