package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ArchiveSummaryTask is scheduled after each successful summarization so
	// the artifacts survive the next invocation overwriting them.
	ArchiveSummaryTask = "summary:archive"
)

// ArchivePayload is serialized into the task payload so the worker knows which
// artifacts to mirror into object storage.
type ArchivePayload struct {
	Stored       string `json:"stored"`
	OriginalName string `json:"original_name"`
	ContentHash  string `json:"content_hash"`
	OutputDir    string `json:"output_dir"`
}

// Enqueuer adapts an asynq client to the enqueue surface the API layer wants.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// Enqueue schedules an archival job for one completed summary.
func (e *Enqueuer) Enqueue(ctx context.Context, payload ArchivePayload) error {
	return EnqueueArchive(ctx, e.client, payload)
}

// EnqueueArchive enqueues an artifact archival job.
func EnqueueArchive(ctx context.Context, client *asynq.Client, payload ArchivePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ArchiveSummaryTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue archive task: %w", err)
	}
	return nil
}
