package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"semantic-slicer/internal/app"
	"semantic-slicer/internal/cache"
	"semantic-slicer/internal/extract"
	"semantic-slicer/internal/httputil"
	"semantic-slicer/internal/queue"
	"semantic-slicer/internal/slicer"
	"semantic-slicer/internal/store"
)

type sliceRequest struct {
	Content     string         `json:"content" validate:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ChunkHeader string         `json:"chunkHeader,omitempty"`
}

type documentRequest struct {
	Source      string         `json:"source,omitempty" validate:"omitempty,max=1024"`
	Content     string         `json:"content" validate:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ChunkHeader string         `json:"chunkHeader,omitempty"`
}

// slicers pairs the configured slicer with a markdown variant used for
// markdown uploads.
type slicers struct {
	text     *slicer.Slicer
	markdown *slicer.Slicer
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	sl, err := newSlicers(deps)
	if err != nil {
		deps.Log.Error("failed to build markdown slicer", "err", err)
		os.Exit(1)
	}

	r := httputil.NewRouter(deps.Log)
	r.Post("/slice", sliceHandler(deps))
	r.Post("/slice/upload", uploadHandler(deps, sl))
	r.Post("/api/documents", createDocumentHandler(deps))
	r.Get("/api/documents/{id}", documentHandler(deps))
	r.Get("/api/documents/{id}/chunks", chunksHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

func newSlicers(deps app.Deps) (slicers, error) {
	opts := deps.Slicer.Options()
	opts.Separators = slicer.MarkdownSeparators
	md, err := slicer.New(opts)
	if err != nil {
		return slicers{}, err
	}
	return slicers{text: deps.Slicer, markdown: md}, nil
}

func (s slicers) forKind(kind extract.Kind) (*slicer.Slicer, string) {
	if kind == extract.KindMarkdown {
		return s.markdown, "markdown"
	}
	return s.text, "configured"
}

func sliceHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sliceRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(deps.Log, w, err)
			return
		}
		chunks, err := sliceCached(r.Context(), deps, deps.Slicer, deps.Config.Fingerprint(), req.Content, req.Metadata, req.ChunkHeader)
		if err != nil {
			writeSliceError(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, chunks)
	}
}

func uploadHandler(deps app.Deps, sl slicers) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		// Validate file size before parsing
		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}
		// Bodies without a declared length are capped while parsing. The
		// multipart framing shares the budget with the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize)

		file, header, err := r.FormFile("file")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		text, kind, err := extract.Text(header.Filename, header.Header.Get("Content-Type"), content)
		if errors.Is(err, extract.ErrUnsupportedType) {
			httputil.Fail(deps.Log, w, err.Error(), nil, http.StatusBadRequest)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to extract text", err, http.StatusUnprocessableEntity)
			return
		}

		s, set := sl.forKind(kind)
		metadata := map[string]any{"filename": header.Filename, "kind": string(kind)}
		chunks, err := sliceCached(r.Context(), deps, s, deps.Config.Fingerprint()+"|"+set, text, metadata, r.FormValue("chunkHeader"))
		if err != nil {
			writeSliceError(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, chunks)
	}
}

// sliceCached serves repeated requests from the cache. Cache failures are
// logged and never fail the request.
func sliceCached(ctx context.Context, deps app.Deps, s *slicer.Slicer, fingerprint, content string, metadata map[string]any, header string) ([]slicer.Chunk, error) {
	key := cache.Key(fingerprint, header, content)
	if deps.Cache != nil {
		cached, ok, err := deps.Cache.Get(ctx, key)
		if err != nil {
			deps.Log.Warn("cache read failed", "err", err)
		} else if ok {
			for i := range cached {
				cached[i].Metadata = metadata
			}
			return cached, nil
		}
	}

	chunks, err := s.Slice(content, metadata, header)
	if err != nil {
		return nil, err
	}
	if deps.Cache != nil {
		if err := deps.Cache.Set(ctx, key, chunks, deps.Config.CacheTTL); err != nil {
			deps.Log.Warn("cache write failed", "err", err)
		}
	}
	return chunks, nil
}

func writeSliceError(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slicer.ErrInvalidConfig):
		httputil.BadRequest(log, w, err)
	case errors.Is(err, slicer.ErrIrreducibleChunk):
		httputil.Fail(log, w, "content cannot be split within the token limit", err, http.StatusUnprocessableEntity)
	default:
		httputil.Fail(log, w, "failed to slice content", err, http.StatusInternalServerError)
	}
}

func createDocumentHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if deps.Store == nil || deps.Queue == nil {
			httputil.Fail(deps.Log, w, "asynchronous slicing is disabled", nil, http.StatusServiceUnavailable)
			return
		}

		var req documentRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(deps.Log, w, err)
			return
		}

		doc, err := deps.Store.CreateDocument(ctx, store.Document{
			Source:      req.Source,
			Content:     req.Content,
			Metadata:    req.Metadata,
			ChunkHeader: req.ChunkHeader,
		})
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to persist document", err, http.StatusInternalServerError)
			return
		}

		task, err := queue.NewSliceTask(doc.ID)
		if err != nil {
			fail(deps, ctx, w, "marshal payload failed", err, doc.ID, http.StatusInternalServerError, true)
			return
		}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			fail(deps, ctx, w, "failed to enqueue document; please retry", err, doc.ID, http.StatusInternalServerError, true)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"document_id": doc.ID.String(),
			"status":      doc.Status,
		})
	}
}

// fail is gateway-specific error handler that can mark documents as failed
func fail(deps app.Deps, ctx context.Context, w http.ResponseWriter, message string, err error, docID uuid.UUID, status int, markFailed bool) {
	log := deps.Log.With("document_id", docID)
	if markFailed && docID != uuid.Nil {
		if upErr := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusFailed, message); upErr != nil {
			log.Error("failed to mark document failed", "err", upErr)
		}
	}

	httputil.Fail(log, w, message, err, status)
}

// documentID parses the {id} route parameter, writing a 400 on failure.
func documentID(deps app.Deps, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if deps.Store == nil {
		httputil.Fail(deps.Log, w, "document store is disabled", nil, http.StatusServiceUnavailable)
		return uuid.Nil, false
	}
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return docID, true
}

func documentHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, ok := documentID(deps, w, r)
		if !ok {
			return
		}
		doc, err := deps.Store.GetDocument(r.Context(), docID)
		if errors.Is(err, store.ErrDocumentNotFound) {
			fail(deps, r.Context(), w, "document not found", err, docID, http.StatusNotFound, false)
			return
		}
		if err != nil {
			fail(deps, r.Context(), w, "failed to load document", err, docID, http.StatusInternalServerError, false)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, doc)
	}
}

func chunksHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, ok := documentID(deps, w, r)
		if !ok {
			return
		}
		doc, err := deps.Store.GetDocument(r.Context(), docID)
		if errors.Is(err, store.ErrDocumentNotFound) {
			fail(deps, r.Context(), w, "document not found", err, docID, http.StatusNotFound, false)
			return
		}
		if err != nil {
			fail(deps, r.Context(), w, "failed to load document", err, docID, http.StatusInternalServerError, false)
			return
		}
		if doc.Status != store.StatusReady {
			httputil.WriteJSON(w, http.StatusConflict, map[string]any{
				"document_id": doc.ID.String(),
				"status":      doc.Status,
				"error":       doc.Error,
			})
			return
		}

		chunks, err := deps.Store.ListChunks(r.Context(), docID)
		if err != nil {
			fail(deps, r.Context(), w, "failed to list chunks", err, docID, http.StatusInternalServerError, false)
			return
		}
		if chunks == nil {
			chunks = []store.Chunk{}
		}
		for i := range chunks {
			chunks[i].Metadata = doc.Metadata
		}
		httputil.WriteJSON(w, http.StatusOK, chunks)
	}
}
