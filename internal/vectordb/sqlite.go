package vectordb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps documents in SQLite and vectors in a sqlite-vec vec0 table.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	dimension int
}

// NewSQLiteStore opens or creates the database at dbPath. A database created
// with a different dimension is rejected with ErrDimensionMismatch.
func NewSQLiteStore(ctx context.Context, dbPath string, dimension int) (*SQLiteStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection serializes writers from concurrent indexing tasks
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:        db,
		dbPath:    dbPath,
		dimension: dimension,
	}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&version); err != nil {
		return fmt.Errorf("sqlite-vec not available: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			content TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS document_vectors USING vec0(
			doc_id TEXT PRIMARY KEY,
			embedding float[%d]
		)`, s.dimension),
		"CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path)",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	var stored string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'dimension'").Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES ('dimension', ?)", strconv.Itoa(s.dimension))
		if err != nil {
			return fmt.Errorf("failed to record dimension: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read dimension: %w", err)
	case stored != strconv.Itoa(s.dimension):
		return fmt.Errorf("%w: %s was built with %s, embedder produces %d (delete it to reindex)",
			ErrDimensionMismatch, s.dbPath, stored, s.dimension)
	}
	return nil
}

// Store saves a document with its embedding
func (s *SQLiteStore) Store(ctx context.Context, doc Document) error {
	return s.StoreBatch(ctx, []Document{doc})
}

// StoreBatch saves multiple documents in one transaction.
func (s *SQLiteStore) StoreBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if err := checkDocument(doc, s.dimension); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmtDoc, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents (
			id, path, content, updated_at, chunk_index, start_line, end_line
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document statement: %w", err)
	}
	defer stmtDoc.Close()

	// vec0 has no upsert, so replace is delete then insert
	stmtVecDel, err := tx.PrepareContext(ctx, "DELETE FROM document_vectors WHERE doc_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare vector delete: %w", err)
	}
	defer stmtVecDel.Close()

	stmtVec, err := tx.PrepareContext(ctx, "INSERT INTO document_vectors (doc_id, embedding) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare vector statement: %w", err)
	}
	defer stmtVec.Close()

	for _, doc := range docs {
		updated := doc.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		if _, err := stmtDoc.ExecContext(ctx,
			doc.ID, doc.Path, doc.Content, updated.Unix(),
			doc.ChunkIndex, doc.StartLine, doc.EndLine); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
		}

		blob, err := sqlite_vec.SerializeFloat32(doc.Embedding)
		if err != nil {
			return fmt.Errorf("failed to serialize embedding for %s: %w", doc.ID, err)
		}
		if _, err := stmtVecDel.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to replace vector for %s: %w", doc.ID, err)
		}
		if _, err := stmtVec.ExecContext(ctx, doc.ID, blob); err != nil {
			return fmt.Errorf("failed to insert vector for %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Query finds k most similar documents using sqlite-vec cosine distance.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int) ([]SimilarDocument, error) {
	if k <= 0 {
		return []SimilarDocument{}, nil
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, store expects %d", ErrDimensionMismatch, len(embedding), s.dimension)
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT
		d.id, d.path, d.content, d.updated_at,
		d.chunk_index, d.start_line, d.end_line,
		vec_distance_cosine(v.embedding, ?) AS distance
	FROM document_vectors v
	JOIN documents d ON v.doc_id = d.id
	ORDER BY distance, d.id
	LIMIT ?`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	results := []SimilarDocument{}
	for rows.Next() {
		var (
			doc       Document
			updatedAt int64
			distance  float64
		)
		if err := rows.Scan(
			&doc.ID, &doc.Path, &doc.Content, &updatedAt,
			&doc.ChunkIndex, &doc.StartLine, &doc.EndLine,
			&distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc.UpdatedAt = time.Unix(updatedAt, 0)

		// cosine distance runs 0 (identical) to 2 (opposite)
		similarity := float32(1.0 - distance/2.0)
		if similarity < 0 {
			similarity = 0
		}
		results = append(results, SimilarDocument{Document: doc, Score: similarity})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// All returns every document without its embedding.
func (s *SQLiteStore) All(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, content, updated_at, chunk_index, start_line, end_line
		FROM documents
		ORDER BY path, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var doc Document
		var updatedAt int64
		if err := rows.Scan(&doc.ID, &doc.Path, &doc.Content, &updatedAt,
			&doc.ChunkIndex, &doc.StartLine, &doc.EndLine); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc.UpdatedAt = time.Unix(updatedAt, 0)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes documents by path
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM document_vectors WHERE doc_id IN (SELECT id FROM documents WHERE path = ?)", path); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return tx.Commit()
}

// Clear removes all documents
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_vectors"); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}

	return tx.Commit()
}

// Count returns total number of documents
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Dimension returns the accepted vector length.
func (s *SQLiteStore) Dimension() int {
	return s.dimension
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
