package driving

import (
	"context"

	"github.com/nephrag/nephrag/internal/core/domain"
)

// IngestService runs the offline chunk + embed + store pipeline.
// Operator-invoked, never on the request path.
type IngestService interface {
	// Ingest fully replaces the stored chunk set for a registered
	// document and reports what happened. Safe to re-run.
	Ingest(ctx context.Context, documentSlug string) (*domain.IngestSummary, error)
}

// Registry provides read access to the document registry.
type Registry interface {
	// GetActive returns all active documents.
	GetActive(ctx context.Context) ([]domain.Document, error)

	// GetBySlug returns the document with the given slug, or
	// domain.ErrNotFound.
	GetBySlug(ctx context.Context, slug string) (*domain.Document, error)

	// Refresh reloads the registry from the backing store. When force
	// is false a fresh cached snapshot is returned as-is.
	Refresh(ctx context.Context, force bool) ([]domain.Document, error)

	// IsValid reports whether slug names an active document.
	IsValid(ctx context.Context, slug string) (bool, error)
}
