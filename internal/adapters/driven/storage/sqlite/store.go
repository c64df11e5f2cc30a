// Package sqlite provides the durable store for the document registry
// and the chunk/embedding rows, including brute-force cosine similarity
// search. The corpus is a fixed set of reference documents with a few
// hundred chunks each, so a full scan per (document, space) pair is
// cheap and keeps the store dependency-free of vector extensions.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nephrag/nephrag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
)

// insertBatchSize is the number of chunk rows written per statement batch
// inside the replacement transaction.
const insertBatchSize = 50

// Store is a unified SQLite-based storage that provides access to the
// registry and chunk store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.nephrag/data/retrieval.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".nephrag", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "retrieval.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// RegistryStore returns a RegistryStore interface backed by this store.
func (s *Store) RegistryStore() driven.RegistryStore {
	return &registryStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Registry Store ====================

// registryStore implements driven.RegistryStore.
type registryStore struct {
	store *Store
}

var _ driven.RegistryStore = (*registryStore)(nil)

// SaveDocument stores or updates a document record.
func (s *registryStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc.Slug == "" {
		return fmt.Errorf("%w: document slug is required", domain.ErrInvalidInput)
	}
	if !doc.EmbeddingSpace.Valid() {
		return fmt.Errorf("%w: unknown embedding space %q", domain.ErrInvalidInput, doc.EmbeddingSpace)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (slug, title, storage_path, embedding_space, active, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title = excluded.title,
			storage_path = excluded.storage_path,
			embedding_space = excluded.embedding_space,
			active = excluded.active,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, doc.Slug, doc.Title, doc.StoragePath, string(doc.EmbeddingSpace),
		boolToInt(doc.Active), string(metadataJSON), doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("%w: saving document: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetDocument retrieves a document by slug.
func (s *registryStore) GetDocument(ctx context.Context, slug string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT slug, title, storage_path, embedding_space, active, metadata, created_at, updated_at
		FROM documents WHERE slug = ?
	`, slug)

	doc, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning document: %v", domain.ErrStorage, err)
	}
	return doc, nil
}

// ListActive returns all active documents ordered by creation time.
func (s *registryStore) ListActive(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT slug, title, storage_path, embedding_space, active, metadata, created_at, updated_at
		FROM documents WHERE active = 1
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying documents: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning document: %v", domain.ErrStorage, err)
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating documents: %v", domain.ErrStorage, err)
	}

	return docs, nil
}

// scanDocument scans a document row via the given scan function.
func scanDocument(scan func(...any) error) (*domain.Document, error) {
	var doc domain.Document
	var space string
	var active int
	var metadataJSON string

	if err := scan(&doc.Slug, &doc.Title, &doc.StoragePath, &space, &active,
		&metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}

	doc.EmbeddingSpace = domain.EmbeddingSpace(space)
	doc.Active = active != 0
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}

	return &doc, nil
}

// ==================== Chunk Store ====================

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// UpsertChunks replaces all prior chunks for (documentSlug, space) inside
// one transaction, inserting in fixed-size batches. A failure rolls the
// whole replacement back, so the store never holds a partial or
// duplicate-index set.
func (s *chunkStore) UpsertChunks(ctx context.Context, documentSlug string, space domain.EmbeddingSpace, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrInvalidInput, len(chunks), len(vectors))
	}

	for i, vec := range vectors {
		if len(vec) == 0 {
			return fmt.Errorf("%w: chunk %d has an empty vector", domain.ErrInvalidInput, i)
		}
		if len(vec) != len(vectors[0]) {
			return fmt.Errorf("chunk %d: %w: got %d, want %d",
				i, domain.ErrDimensionMismatch, len(vec), len(vectors[0]))
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_slug = ? AND embedding_space = ?",
		documentSlug, string(space)); err != nil {
		return fmt.Errorf("%w: clearing prior chunks: %v", domain.ErrStorage, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_slug, chunk_index, embedding_space,
			content, char_start, char_end, token_estimate, content_hash, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing statement: %v", domain.ErrStorage, err)
	}
	defer stmt.Close()

	for start := 0; start < len(chunks); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		for i := start; i < end; i++ {
			chunk := chunks[i]
			if _, err := stmt.ExecContext(ctx, chunk.ID, documentSlug, chunk.Index,
				string(space), chunk.Content, chunk.CharStart, chunk.CharEnd,
				chunk.TokenEstimate, chunk.ContentHash,
				float32SliceToBytes(vectors[i])); err != nil {
				return fmt.Errorf("%w: inserting chunk %d: %v", domain.ErrStorage, chunk.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", domain.ErrStorage, err)
	}
	return nil
}

// Search scans the (documentSlug, space) rows and ranks them by cosine
// similarity to the query vector. An unknown pair yields an empty result.
func (s *chunkStore) Search(ctx context.Context, query []float32, documentSlug string, space domain.EmbeddingSpace, topK int, minSimilarity float64) ([]domain.RetrievedChunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_index, content, char_start, char_end, embedding
		FROM chunks
		WHERE document_slug = ? AND embedding_space = ?
	`, documentSlug, string(space))
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var results []domain.RetrievedChunk
	for rows.Next() {
		var rc domain.RetrievedChunk
		var blob []byte
		if err := rows.Scan(&rc.Index, &rc.Content, &rc.CharStart, &rc.CharEnd, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %v", domain.ErrStorage, err)
		}

		vec := bytesToFloat32Slice(blob)
		if len(vec) != len(query) {
			return nil, fmt.Errorf("chunk %d: %w: stored %d, query %d",
				rc.Index, domain.ErrDimensionMismatch, len(vec), len(query))
		}

		rc.Similarity = cosineSimilarity(query, vec)
		if rc.Similarity >= minSimilarity {
			results = append(results, rc)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating chunks: %v", domain.ErrStorage, err)
	}

	// Descending by similarity, ties broken by ascending chunk index for
	// reproducible ordering.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Index < results[j].Index
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// CountChunks returns the number of stored chunks for the pair.
func (s *chunkStore) CountChunks(ctx context.Context, documentSlug string, space domain.EmbeddingSpace) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE document_slug = ? AND embedding_space = ?",
		documentSlug, string(space)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %v", domain.ErrStorage, err)
	}
	return count, nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
