package domain

import "time"

type IngestKind string

const (
	IngestLog           IngestKind = "log"
	IngestManual        IngestKind = "manual"
	IngestKnowledgeBase IngestKind = "knowledge_base"
)

// IngestJob asks a worker to turn one stored file into chunks.
type IngestJob struct {
	ID         string     `json:"id"`
	Kind       IngestKind `json:"kind"`
	Filename   string     `json:"filename"`
	StorageKey string     `json:"storage_key"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IngestReport summarizes one ingested batch.
type IngestReport struct {
	Filename string `json:"filename,omitempty"`
	Chunks   int    `json:"count"`
	Skipped  int    `json:"skipped,omitempty"`
	Message  string `json:"message"`
}

// StoredFile describes an uploaded file in object storage.
type StoredFile struct {
	Filename   string     `json:"filename"`
	Size       int64      `json:"size"`
	UploadedAt *time.Time `json:"upload_timestamp"`
}
