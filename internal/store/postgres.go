package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Use advisory lock to prevent concurrent migrations from the gateway
	// and the workers starting together.
	const lockID = 735201446

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another service is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			source TEXT,
			status TEXT,
			content TEXT,
			metadata JSONB,
			chunk_header TEXT,
			error TEXT,
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID REFERENCES documents(id) ON DELETE CASCADE,
			ord INT,
			content TEXT,
			token_count INT,
			start_offset INT,
			end_offset INT
		);`,
		`CREATE INDEX IF NOT EXISTS chunks_document_ord_idx ON chunks (document_id, ord);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return Document{}, err
	}
	doc.ID = uuid.New()
	doc.Status = StatusProcessing
	doc.CreatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents(id, source, status, content, metadata, chunk_header, error, created_at)
		VALUES($1,$2,$3,$4,$5::jsonb,$6,'',$7)`,
		doc.ID, doc.Source, doc.Status, doc.Content, meta, doc.ChunkHeader, doc.CreatedAt)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	var (
		doc  Document
		meta []byte
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, status, content, metadata, chunk_header, COALESCE(error, ''), created_at
		FROM documents WHERE id=$1`, id)
	err := row.Scan(&doc.ID, &doc.Source, &doc.Status, &doc.Content, &meta, &doc.ChunkHeader, &doc.Error, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	if doc.Metadata, err = decodeMetadata(meta); err != nil {
		return Document{}, fmt.Errorf("failed to decode metadata for document %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET status=$1, error=$2 WHERE id=$3`, status, errMsg, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// SaveChunks inserts every chunk in a single statement over parallel arrays.
func (s *PostgresStore) SaveChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) ([]Chunk, error) {
	out, cols := chunkColumns(docID, chunks)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id=$1`, docID); err != nil {
		return nil, err
	}
	if len(out) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks(id, document_id, ord, content, token_count, start_offset, end_offset)
			SELECT unnest($1::uuid[]), $2, unnest($3::int[]), unnest($4::text[]),
				unnest($5::int[]), unnest($6::int[]), unnest($7::int[])`,
			pq.Array(cols.ids), docID, pq.Array(cols.ords), pq.Array(cols.contents),
			pq.Array(cols.tokens), pq.Array(cols.starts), pq.Array(cols.ends))
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunks for doc %s: %w", docID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListChunks(ctx context.Context, docID uuid.UUID) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ord, content, token_count, start_offset, end_offset
		FROM chunks WHERE document_id=$1 ORDER BY ord`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Index, &c.Content, &c.TokenCount, &c.StartOffset, &c.EndOffset); err != nil {
			return nil, err
		}
		c.DocumentID = docID
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type chunkArrays struct {
	ids      []string
	ords     []int64
	contents []string
	tokens   []int64
	starts   []int64
	ends     []int64
}

// chunkColumns assigns chunk IDs and splits chunks into column arrays.
func chunkColumns(docID uuid.UUID, chunks []Chunk) ([]Chunk, chunkArrays) {
	out := make([]Chunk, len(chunks))
	cols := chunkArrays{
		ids:      make([]string, len(chunks)),
		ords:     make([]int64, len(chunks)),
		contents: make([]string, len(chunks)),
		tokens:   make([]int64, len(chunks)),
		starts:   make([]int64, len(chunks)),
		ends:     make([]int64, len(chunks)),
	}
	for i, c := range chunks {
		c.ID = uuid.New()
		c.DocumentID = docID
		out[i] = c

		cols.ids[i] = c.ID.String()
		cols.ords[i] = int64(c.Index)
		cols.contents[i] = c.Content
		cols.tokens[i] = int64(c.TokenCount)
		cols.starts[i] = int64(c.StartOffset)
		cols.ends[i] = int64(c.EndOffset)
	}
	return out, cols
}

func encodeMetadata(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return meta, nil
}
