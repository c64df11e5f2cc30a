package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.CorpusLoader = (*Loader)(nil)

// Loader reads document text from files under a corpus directory.
type Loader struct {
	baseDir string
}

// NewLoader creates a loader rooted at baseDir.
func NewLoader(baseDir string) (*Loader, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: corpus directory is required", domain.ErrConfiguration)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving corpus directory: %w", err)
	}
	return &Loader{baseDir: abs}, nil
}

// BaseDir returns the absolute corpus directory.
func (l *Loader) BaseDir() string {
	return l.baseDir
}

// Resolve returns the absolute path of the document's backing file.
// Paths escaping the corpus directory are rejected.
func (l *Loader) Resolve(doc *domain.Document) (string, error) {
	if doc.StoragePath == "" {
		return "", fmt.Errorf("%w: document %q has no storage path", domain.ErrConfiguration, doc.Slug)
	}

	full := filepath.Join(l.baseDir, doc.StoragePath)
	if !strings.HasPrefix(full, l.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: storage path %q escapes the corpus directory", domain.ErrInvalidInput, doc.StoragePath)
	}
	return full, nil
}

// Load reads and cleans the document's text.
func (l *Loader) Load(_ context.Context, doc *domain.Document) (string, error) {
	path, err := l.Resolve(doc)
	if err != nil {
		return "", err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("document %q: %w", doc.Slug, domain.ErrNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	return Clean(string(raw)), nil
}
