package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"semantic-slicer/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

const (
	TaskTypeSlice TaskType = "slice"
)

// Task represents a unit of work passed from the gateway to the workers.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

// DefaultMaxAttempts applies to tasks that leave MaxAttempts unset.
const DefaultMaxAttempts = 5

// LastAttempt reports whether a failure of this delivery exhausts the task.
func (t Task) LastAttempt() bool {
	limit := t.MaxAttempts
	if limit == 0 {
		limit = DefaultMaxAttempts
	}
	return t.Attempts+1 >= limit
}

// SlicePayload asks a worker to slice a stored document.
type SlicePayload struct {
	DocumentID uuid.UUID `json:"document_id"`
}

// NewSliceTask builds a slice task for docID.
func NewSliceTask(docID uuid.UUID) (Task, error) {
	body, err := json.Marshal(SlicePayload{DocumentID: docID})
	if err != nil {
		return Task{}, err
	}
	return Task{ID: uuid.New(), Type: TaskTypeSlice, Payload: body}, nil
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := q.Enqueue(ctx, task); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}
