// Package worker consumes archival jobs emitted by the upload pipeline.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/dverbeek/lecturecast/internal/archive"
	"github.com/dverbeek/lecturecast/internal/queue"
)

// artifactFiles lists the fixed-path outputs one invocation produces, with the
// content type each is archived under.
var artifactFiles = []struct {
	name        string
	contentType string
}{
	{"summary.json", "application/json"},
	{"summary.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	{"summary.tex", "application/x-tex"},
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	store *archive.Storage
	log   *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(store *archive.Storage, log *slog.Logger) *Processor {
	return &Processor{store: store, log: log}
}

// Handler registers the archive job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ArchiveSummaryTask, p.handleArchive)
	return mux
}

func (p *Processor) handleArchive(ctx context.Context, task *asynq.Task) error {
	var payload queue.ArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	archived := 0
	for _, file := range artifactFiles {
		localPath := filepath.Join(payload.OutputDir, file.name)
		if !archive.Exists(localPath) {
			// The tex/docx companions are optional per invocation.
			continue
		}
		key := archive.ObjectKey(payload.Stored, file.name)
		if err := p.store.UploadFile(ctx, key, localPath, file.contentType); err != nil {
			p.log.Error("archive upload failed", "stored", payload.Stored, "file", file.name, "error", err)
			return err
		}
		archived++
	}
	p.log.Info("summary archived", "stored", payload.Stored, "files", archived)
	return nil
}
