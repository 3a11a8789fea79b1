package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"semantic-slicer/internal/app"
	"semantic-slicer/internal/httputil"
	"semantic-slicer/internal/queue"
	"semantic-slicer/internal/store"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	if deps.Store == nil || deps.Queue == nil {
		deps.Log.Error("slice worker needs STORE_PROVIDER and QUEUE_PROVIDER")
		os.Exit(1)
	}
	deps.Log.Info("slice worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// Run queue worker
	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeSlice, func(ctx context.Context, task queue.Task) error {
			return handleSlice(ctx, deps, task)
		})
	})

	// Run health check server
	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps, "worker")
	})

	// Wait for either to fail
	if err := g.Wait(); err != nil {
		deps.Log.Error("slice worker stopped", "err", err)
	}
}

// handleSlice slices a stored document and saves its chunks. Failures that
// a retry cannot fix are returned as permanent and mark the document failed;
// so does a transient failure on the task's last attempt.
func handleSlice(ctx context.Context, deps app.Deps, task queue.Task) error {
	var payload queue.SlicePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("decode payload: %w", err))
	}
	log := deps.Log.With("document_id", payload.DocumentID, "task_id", task.ID)

	doc, err := deps.Store.GetDocument(ctx, payload.DocumentID)
	if errors.Is(err, store.ErrDocumentNotFound) {
		return queue.Permanent(err)
	}
	if err != nil {
		return giveUpIfLast(ctx, deps, task, payload, err)
	}
	if doc.Status == store.StatusReady {
		log.Info("document already sliced; skipping redelivery")
		return nil
	}

	chunks, err := deps.Slicer.Slice(doc.Content, doc.Metadata, doc.ChunkHeader)
	if err != nil {
		markFailed(ctx, deps, log, doc.ID, err)
		return queue.Permanent(err)
	}

	if _, err := deps.Store.SaveChunks(ctx, doc.ID, store.ChunksFrom(doc.ID, chunks)); err != nil {
		return giveUpIfLast(ctx, deps, task, payload, err)
	}
	if err := deps.Store.UpdateDocumentStatus(ctx, doc.ID, store.StatusReady, ""); err != nil {
		return giveUpIfLast(ctx, deps, task, payload, err)
	}
	log.Info("document sliced", "chunks", len(chunks))
	return nil
}

func giveUpIfLast(ctx context.Context, deps app.Deps, task queue.Task, payload queue.SlicePayload, err error) error {
	if !task.LastAttempt() {
		return err
	}
	log := deps.Log.With("document_id", payload.DocumentID, "task_id", task.ID)
	markFailed(ctx, deps, log, payload.DocumentID, err)
	return queue.Permanent(err)
}

func markFailed(ctx context.Context, deps app.Deps, log *slog.Logger, id uuid.UUID, cause error) {
	if err := deps.Store.UpdateDocumentStatus(ctx, id, store.StatusFailed, cause.Error()); err != nil {
		log.Error("failed to mark document failed", "err", err, "cause", cause)
		return
	}
	log.Warn("document failed", "err", cause)
}
