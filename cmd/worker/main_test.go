package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"semantic-slicer/internal/app"
	"semantic-slicer/internal/queue"
	"semantic-slicer/internal/slicer"
	"semantic-slicer/internal/store"
	"semantic-slicer/internal/tokens"
)

func newTestDeps(t *testing.T, st store.Store) app.Deps {
	t.Helper()
	s, err := slicer.New(slicer.Options{
		MaxChunkTokenCount: 4,
		Separators:         slicer.TextSeparators,
		Counter:            tokens.WordCounter{},
	})
	require.NoError(t, err)
	return app.Deps{
		Store:  st,
		Slicer: s,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func sliceTask(t *testing.T, docID uuid.UUID) queue.Task {
	t.Helper()
	task, err := queue.NewSliceTask(docID)
	require.NoError(t, err)
	return task
}

func TestHandleSlice(t *testing.T) {
	docID := uuid.New()
	doc := store.Document{
		ID:          docID,
		Status:      store.StatusProcessing,
		Content:     "one two three.\n\nfour five six.",
		Metadata:    map[string]any{"source": "a.txt"},
		ChunkHeader: "",
	}

	tests := []struct {
		name          string
		task          func(*testing.T) queue.Task
		setup         func(*store.MockStore)
		wantErr       bool
		wantPermanent bool
	}{
		{
			name: "successful slice",
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, docID).Return(doc, nil).Once()
				s.On("SaveChunks", mock.Anything, docID, mock.MatchedBy(func(chunks []store.Chunk) bool {
					return len(chunks) == 2 &&
						chunks[0].Content == "one two three." &&
						chunks[1].Content == "four five six." &&
						chunks[1].Index == 1 && chunks[1].DocumentID == docID
				})).Return([]store.Chunk{{ID: uuid.New()}, {ID: uuid.New()}}, nil).Once()
				s.On("UpdateDocumentStatus", mock.Anything, docID, store.StatusReady, "").Return(nil).Once()
			},
		},
		{
			name: "already ready",
			setup: func(s *store.MockStore) {
				ready := doc
				ready.Status = store.StatusReady
				s.On("GetDocument", mock.Anything, docID).Return(ready, nil).Once()
			},
		},
		{
			name: "invalid payload",
			task: func(*testing.T) queue.Task {
				return queue.Task{Type: queue.TaskTypeSlice, Payload: []byte("{")}
			},
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name: "document missing",
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, docID).Return(store.Document{}, store.ErrDocumentNotFound).Once()
			},
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name: "store unavailable is retried",
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, docID).Return(store.Document{}, errors.New("db down")).Once()
			},
			wantErr: true,
		},
		{
			name: "header too large fails the document",
			setup: func(s *store.MockStore) {
				bad := doc
				bad.ChunkHeader = "a b c d"
				s.On("GetDocument", mock.Anything, docID).Return(bad, nil).Once()
				s.On("UpdateDocumentStatus", mock.Anything, docID, store.StatusFailed, mock.MatchedBy(func(msg string) bool {
					return strings.Contains(msg, "header")
				})).Return(nil).Once()
			},
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name: "save failure is retried",
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, docID).Return(doc, nil).Once()
				s.On("SaveChunks", mock.Anything, docID, mock.Anything).Return(nil, errors.New("db down")).Once()
			},
			wantErr: true,
		},
		{
			name: "save failure on last attempt fails the document",
			task: func(t *testing.T) queue.Task {
				task := sliceTask(t, docID)
				task.Attempts = queue.DefaultMaxAttempts - 1
				return task
			},
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, docID).Return(doc, nil).Once()
				s.On("SaveChunks", mock.Anything, docID, mock.Anything).Return(nil, errors.New("db down")).Once()
				s.On("UpdateDocumentStatus", mock.Anything, docID, store.StatusFailed, "db down").Return(nil).Once()
			},
			wantErr:       true,
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			if tt.setup != nil {
				tt.setup(mockStore)
			}
			task := sliceTask(t, docID)
			if tt.task != nil {
				task = tt.task(t)
			}

			err := handleSlice(context.Background(), newTestDeps(t, mockStore), task)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantPermanent, queue.IsPermanent(err))
			} else {
				assert.NoError(t, err)
			}
			mockStore.AssertExpectations(t)
		})
	}
}
