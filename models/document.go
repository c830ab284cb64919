package models

import (
	"time"
)

// Document is an uploaded contract PDF and its processing state.
// Pages, extracted fields and audit findings are owned by the document and
// removed with it.
type Document struct {
	ID           string           `bson:"_id" json:"id"`
	Filename     string           `bson:"filename" json:"filename"`
	FilePath     string           `bson:"file_path" json:"-"`
	PageCount    int              `bson:"page_count" json:"page_count"`
	Status       string           `bson:"status" json:"status"` // pending, processing, completed, failed
	Progress     int              `bson:"progress" json:"progress"`
	ErrorMessage string           `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Metadata     DocumentMetadata `bson:"metadata" json:"metadata"`
	UploadedAt   time.Time        `bson:"uploaded_at" json:"uploaded_at"`
	UpdatedAt    time.Time        `bson:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time       `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// DocumentMetadata contains upload and extraction metadata
type DocumentMetadata struct {
	Size        int64             `bson:"size" json:"size"`
	ContentType string            `bson:"content_type,omitempty" json:"content_type,omitempty"`
	PDFInfo     map[string]string `bson:"pdf_info,omitempty" json:"pdf_info,omitempty"`
	ChunkCount  int               `bson:"chunk_count" json:"chunk_count"`
	Error       string            `bson:"error,omitempty" json:"error,omitempty"`
}

// Page is the extracted text of one PDF page together with its indexed chunks.
// A page is written once, in a single insert, after chunking and embedding.
type Page struct {
	ID         string          `bson:"_id" json:"id"`
	DocumentID string          `bson:"document_id" json:"document_id"`
	PageNumber int             `bson:"page_number" json:"page_number"` // 1-based
	Text       string          `bson:"text" json:"text"`
	Chunks     []EmbeddedChunk `bson:"chunks" json:"chunks"`
	CreatedAt  time.Time       `bson:"created_at" json:"created_at"`
}

// UploadResponse represents one accepted file of an upload request
type UploadResponse struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Status   string    `json:"status"`
	TaskID   string    `json:"task_id,omitempty"`
	Uploaded time.Time `json:"uploaded_at"`
}

// Document processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
