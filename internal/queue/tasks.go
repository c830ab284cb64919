package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/pdf"
	"contract-qa-platform/internal/telemetry"
	"contract-qa-platform/models"

	"github.com/hibiken/asynq"
)

const (
	TaskProcessDocument = "document:process"

	QueueCritical = "critical"
)

type DocumentProcessPayload struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
}

// Task creators
func NewDocumentProcessTask(documentID, filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentProcessPayload{
		DocumentID: documentID,
		FilePath:   filePath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// Enqueuer submits document processing tasks
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueDocument schedules processing and returns the task id
func (e *Enqueuer) EnqueueDocument(ctx context.Context, documentID, filePath string) (string, error) {
	task, err := NewDocumentProcessTask(documentID, filePath)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue document %s: %w", documentID, err)
	}
	return info.ID, nil
}

// DocumentRepository is the part of the store the processor writes to
type DocumentRepository interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateStatus(ctx context.Context, id, status string, progress int, message string) error
	SetMetadata(ctx context.Context, id string, pageCount int, meta models.DocumentMetadata) error
	SavePage(ctx context.Context, page models.Page) error
}

// PageIndexer chunks and embeds one page
type PageIndexer interface {
	IndexPage(ctx context.Context, documentID string, pageNumber int, text string) (models.Page, error)
}

type ExtractFunc func(ctx context.Context, filePath string) (*pdf.Result, error)

// Task handlers
type TaskProcessor struct {
	repo    DocumentRepository
	indexer PageIndexer
	extract ExtractFunc
	metrics *telemetry.Metrics
}

func NewTaskProcessor(repo DocumentRepository, indexer PageIndexer, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{
		repo:    repo,
		indexer: indexer,
		extract: pdf.Extract,
		metrics: metrics,
	}
}

// ProcessDocument extracts, chunks, embeds and stores every page of an
// uploaded document. Each page is stored as soon as it is complete.
func (p *TaskProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.DocumentID == "" || payload.FilePath == "" {
		return fmt.Errorf("incomplete payload: %w", asynq.SkipRetry)
	}

	start := time.Now()
	logger.Info("Processing document", "document_id", payload.DocumentID)

	if _, err := p.repo.GetDocument(ctx, payload.DocumentID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// deleted before the task ran
			return fmt.Errorf("document %s: %w", payload.DocumentID, asynq.SkipRetry)
		}
		return err
	}

	if err := p.repo.UpdateStatus(ctx, payload.DocumentID, models.StatusProcessing, 0, ""); err != nil {
		return err
	}

	chunkCount, err := p.process(ctx, payload)
	if err != nil {
		logger.Error("Document processing failed", "document_id", payload.DocumentID, "error", err)
		if uerr := p.repo.UpdateStatus(context.Background(), payload.DocumentID, models.StatusFailed, 0, err.Error()); uerr != nil {
			logger.Error("Failed to record processing failure", "document_id", payload.DocumentID, "error", uerr)
		}
		p.metrics.RecordDocumentProcessing(time.Since(start).Seconds(), models.StatusFailed)
		if errors.Is(err, pdf.ErrNotPDF) || errors.Is(err, pdf.ErrTooLarge) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if err := p.repo.UpdateStatus(ctx, payload.DocumentID, models.StatusCompleted, 100, ""); err != nil {
		return err
	}
	p.metrics.RecordDocumentProcessing(time.Since(start).Seconds(), models.StatusCompleted)

	logger.Info("Document processed successfully",
		"document_id", payload.DocumentID,
		"chunks", chunkCount,
		"duration", time.Since(start).String(),
	)
	return nil
}

func (p *TaskProcessor) process(ctx context.Context, payload DocumentProcessPayload) (int, error) {
	result, err := p.extract(ctx, payload.FilePath)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	total := len(result.Pages)
	chunkCount := 0
	for i, pt := range result.Pages {
		page, err := p.indexer.IndexPage(ctx, payload.DocumentID, pt.Number, pt.Text)
		if err != nil {
			return 0, err
		}
		if err := p.repo.SavePage(ctx, page); err != nil {
			return 0, err
		}
		chunkCount += len(page.Chunks)

		progress := (i + 1) * 100 / total
		if progress < 100 {
			if err := p.repo.UpdateStatus(ctx, payload.DocumentID, models.StatusProcessing, progress, ""); err != nil {
				return 0, err
			}
		}
	}

	meta := models.DocumentMetadata{
		Size:        result.Size,
		ContentType: "application/pdf",
		PDFInfo:     result.Info,
		ChunkCount:  chunkCount,
	}
	if len(result.FailedPages) > 0 {
		meta.Error = fmt.Sprintf("text extraction failed on pages %v", result.FailedPages)
	}
	if err := p.repo.SetMetadata(ctx, payload.DocumentID, total, meta); err != nil {
		return 0, err
	}
	return chunkCount, nil
}
