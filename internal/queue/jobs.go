package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// ReviewDocumentsTask is scheduled each time an application registers
	// with at least one document.
	ReviewDocumentsTask = "application:review-documents"
)

// ReviewPayload tells the reviewer which stored artifacts belong to which
// application.
type ReviewPayload struct {
	ApplicationID int64             `json:"application_id"`
	Files         map[string]string `json:"files"`
}

// Dispatcher hands review work to whatever runs it.
type Dispatcher interface {
	DispatchReview(ctx context.Context, payload ReviewPayload) error
}

// AsynqDispatcher enqueues review tasks on Redis for cmd/worker.
type AsynqDispatcher struct {
	client *asynq.Client
}

// NewAsynqDispatcher wraps an asynq client.
func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

// DispatchReview enqueues a document review job.
func (d *AsynqDispatcher) DispatchReview(ctx context.Context, payload ReviewPayload) error {
	task, err := NewReviewTask(payload)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.TaskID(uuid.NewString())); err != nil {
		return fmt.Errorf("enqueue review task: %w", err)
	}
	return nil
}

// NewReviewTask encodes payload into an asynq task.
func NewReviewTask(payload ReviewPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ReviewDocumentsTask, data), nil
}

// DecodeReviewPayload is the inverse of NewReviewTask.
func DecodeReviewPayload(task *asynq.Task) (ReviewPayload, error) {
	var payload ReviewPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReviewPayload{}, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
