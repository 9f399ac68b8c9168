package nats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

// processJob is the message body published for every stored upload.
type processJob struct {
	DocumentID string    `json:"document_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func newProcessJob(documentID string, now time.Time) processJob {
	return processJob{DocumentID: documentID, EnqueuedAt: now.UTC()}
}

func encodeJob(job processJob) ([]byte, error) {
	if strings.TrimSpace(job.DocumentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode process job", fmt.Errorf("document id is empty"))
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal process job: %w", err)
	}
	return raw, nil
}

// decodeJob also accepts a bare document id, the format older publishers used.
func decodeJob(data []byte) (processJob, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return processJob{}, fmt.Errorf("empty process job")
	}
	if trimmed[0] != '{' {
		return processJob{DocumentID: string(trimmed)}, nil
	}

	var job processJob
	if err := json.Unmarshal(trimmed, &job); err != nil {
		return processJob{}, fmt.Errorf("unmarshal process job: %w", err)
	}
	if strings.TrimSpace(job.DocumentID) == "" {
		return processJob{}, fmt.Errorf("process job without document_id")
	}
	return job, nil
}
