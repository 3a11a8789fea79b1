package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	task    Task
}

func newTestQueue(t *testing.T) (*natsQueue, *[]published) {
	t.Helper()
	var sent []published
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := &natsQueue{
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		publish: func(subject string, data []byte) error {
			var task Task
			require.NoError(t, json.Unmarshal(data, &task))
			sent = append(sent, published{subject: subject, task: task})
			return nil
		},
		now: func() time.Time { return now },
	}
	return q, &sent
}

func encode(t *testing.T, task Task) []byte {
	t.Helper()
	body, err := json.Marshal(task)
	require.NoError(t, err)
	return body
}

func TestNewSliceTask(t *testing.T) {
	docID := uuid.New()
	task, err := NewSliceTask(docID)
	require.NoError(t, err)

	assert.Equal(t, TaskTypeSlice, task.Type)
	assert.NotEqual(t, uuid.Nil, task.ID)

	var payload SlicePayload
	require.NoError(t, json.Unmarshal(task.Payload, &payload))
	assert.Equal(t, docID, payload.DocumentID)
}

func TestLastAttempt(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"first of default", Task{}, false},
		{"last of default", Task{Attempts: DefaultMaxAttempts - 1}, true},
		{"single attempt", Task{MaxAttempts: 1}, true},
		{"middle", Task{Attempts: 1, MaxAttempts: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.LastAttempt())
		})
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("irreducible")

	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(base))

	err := fmt.Errorf("slice failed: %w", Permanent(base))
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "slice failed: irreducible", err.Error())
}

func TestEnqueueAssignsID(t *testing.T) {
	q, sent := newTestQueue(t)

	require.NoError(t, q.Enqueue(context.Background(), Task{Type: TaskTypeSlice}))
	require.Len(t, *sent, 1)
	assert.Equal(t, "tasks.slice", (*sent)[0].subject)
	assert.NotEqual(t, uuid.Nil, (*sent)[0].task.ID)

	assert.Error(t, q.Enqueue(context.Background(), Task{}))
}

func TestHandleMessageRetriesTransientFailure(t *testing.T) {
	q, sent := newTestQueue(t)
	task := Task{ID: uuid.New(), Type: TaskTypeSlice}

	q.handleMessage(context.Background(), encode(t, task), func(context.Context, Task) error {
		return errors.New("db down")
	})

	require.Len(t, *sent, 1)
	retried := (*sent)[0].task
	assert.Equal(t, 1, retried.Attempts)
	assert.Equal(t, DefaultMaxAttempts, retried.MaxAttempts)
	assert.Equal(t, q.now().Add(2*time.Second), retried.NotBefore)
}

func TestHandleMessageSkipsPermanentFailure(t *testing.T) {
	q, sent := newTestQueue(t)
	task := Task{ID: uuid.New(), Type: TaskTypeSlice}

	q.handleMessage(context.Background(), encode(t, task), func(context.Context, Task) error {
		return Permanent(errors.New("bad input"))
	})

	assert.Empty(t, *sent)
}

func TestHandleMessageGivesUpAfterMaxAttempts(t *testing.T) {
	q, sent := newTestQueue(t)
	task := Task{ID: uuid.New(), Type: TaskTypeSlice, Attempts: 2, MaxAttempts: 3}

	q.handleMessage(context.Background(), encode(t, task), func(context.Context, Task) error {
		return errors.New("still down")
	})

	assert.Empty(t, *sent)
}

func TestHandleMessageIgnoresGarbage(t *testing.T) {
	q, sent := newTestQueue(t)
	called := false

	q.handleMessage(context.Background(), []byte("{"), func(context.Context, Task) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.Empty(t, *sent)
}

func TestHandleMessageStopsWaitingOnCancel(t *testing.T) {
	q, _ := newTestQueue(t)
	task := Task{ID: uuid.New(), Type: TaskTypeSlice, NotBefore: q.now().Add(time.Hour)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	q.handleMessage(ctx, encode(t, task), func(context.Context, Task) error {
		called = true
		return nil
	})
	assert.False(t, called)
}

func TestEnqueueWithRetry(t *testing.T) {
	task := Task{Type: TaskTypeSlice}

	t.Run("succeeds after failures", func(t *testing.T) {
		q := new(MockQueue)
		q.On("Enqueue", mock.Anything, task).Return(errors.New("broker down")).Once()
		q.On("Enqueue", mock.Anything, task).Return(nil).Once()

		err := EnqueueWithRetry(context.Background(), q, task, 3, time.Millisecond)
		assert.NoError(t, err)
		q.AssertExpectations(t)
	})

	t.Run("returns last error", func(t *testing.T) {
		q := new(MockQueue)
		q.On("Enqueue", mock.Anything, task).Return(errors.New("broker down")).Twice()

		err := EnqueueWithRetry(context.Background(), q, task, 2, time.Millisecond)
		assert.EqualError(t, err, "broker down")
		q.AssertExpectations(t)
	})

	t.Run("zero attempts tries once", func(t *testing.T) {
		q := new(MockQueue)
		q.On("Enqueue", mock.Anything, task).Return(nil).Once()

		assert.NoError(t, EnqueueWithRetry(context.Background(), q, task, 0, time.Millisecond))
		q.AssertExpectations(t)
	})
}
