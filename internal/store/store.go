package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"semantic-slicer/internal/slicer"
)

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document is a text submitted for asynchronous slicing.
type Document struct {
	ID          uuid.UUID      `json:"id"`
	Source      string         `json:"source,omitempty"`
	Status      DocumentStatus `json:"status"`
	Content     string         `json:"-"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ChunkHeader string         `json:"chunk_header,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Chunk is a persisted slice of a document.
type Chunk struct {
	ID          uuid.UUID `json:"id"`
	DocumentID  uuid.UUID `json:"document_id"`
	Index       int       `json:"index"`
	Content     string    `json:"content"`
	TokenCount  int       `json:"token_count"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	// Metadata is copied from the owning document when chunks are served;
	// it is not stored per row.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChunksFrom converts slicer output into rows for docID.
func ChunksFrom(docID uuid.UUID, chunks []slicer.Chunk) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = Chunk{
			DocumentID:  docID,
			Index:       c.Index,
			Content:     c.Content,
			TokenCount:  c.TokenCount,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
		}
	}
	return out
}

// Store defines persistence contract; an external DB implementation can replace this.
type Store interface {
	CreateDocument(ctx context.Context, doc Document) (Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus, errMsg string) error
	// SaveChunks replaces every chunk of the document.
	SaveChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) ([]Chunk, error)
	ListChunks(ctx context.Context, docID uuid.UUID) ([]Chunk, error)
	Close() error
}
