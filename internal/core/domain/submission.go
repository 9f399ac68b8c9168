package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded source file together with the record the pipeline produced for it.
type Document struct {
	ID          string         `json:"id"`
	ClientID    string         `json:"client_id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Phase       Phase          `json:"phase"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	Record      Record         `json:"record,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
