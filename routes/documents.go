package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/pdf"
	"contract-qa-platform/models"
	"contract-qa-platform/services"
	"contract-qa-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentStore is the part of the store used by the document endpoints
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit int64) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	GetExtractedFields(ctx context.Context, documentID string) (*models.ExtractedFields, error)
	ListAuditFindings(ctx context.Context, documentID string) ([]models.AuditFinding, error)
}

type DocumentQueue interface {
	EnqueueDocument(ctx context.Context, documentID, filePath string) (string, error)
}

type FieldExtractor interface {
	Extract(ctx context.Context, documentID string) (*models.ExtractedFields, error)
}

type ContractAuditor interface {
	Audit(ctx context.Context, documentID string) ([]models.AuditFinding, error)
}

type DocumentHandler struct {
	cfg       *config.Config
	store     DocumentStore
	queue     DocumentQueue
	extractor FieldExtractor
	auditor   ContractAuditor
}

func NewDocumentHandler(cfg *config.Config, store DocumentStore, queue DocumentQueue, extractor FieldExtractor, auditor ContractAuditor) *DocumentHandler {
	return &DocumentHandler{
		cfg:       cfg,
		store:     store,
		queue:     queue,
		extractor: extractor,
		auditor:   auditor,
	}
}

func SetupDocumentRoutes(router *gin.Engine, h *DocumentHandler, requireAuth gin.HandlerFunc) {
	docs := router.Group("/api/documents")
	docs.Use(requireAuth)
	{
		docs.POST("", h.Upload)
		docs.GET("", h.List)
		docs.GET("/:id", h.Get)
		docs.DELETE("/:id", h.Delete)
		docs.POST("/:id/extract", h.Extract)
		docs.GET("/:id/fields", h.GetFields)
		docs.POST("/:id/audit", h.Audit)
		docs.GET("/:id/findings", h.ListFindings)
		docs.GET("/:id/export", h.Export)
	}
}

// Upload accepts 1 to MaxUploadFiles PDFs under the "files" form field.
// Every file is validated before any is stored.
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid multipart form", err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No PDF files provided", nil)
		return
	}
	if len(files) > h.cfg.MaxUploadFiles {
		utils.RespondWithError(c, http.StatusBadRequest, "too_many_files",
			fmt.Sprintf("At most %d files per upload", h.cfg.MaxUploadFiles), nil)
		return
	}

	for _, fh := range files {
		if err := h.validateUpload(fh); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_pdf", err.Error(), gin.H{"filename": fh.Filename})
			return
		}
	}

	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	uploaded := make([]models.UploadResponse, 0, len(files))
	for _, fh := range files {
		resp, err := h.storeUpload(ctx, fh)
		if err != nil {
			logger.Error("Upload failed", "filename", fh.Filename, "error", err)
			utils.RespondWithInternalError(c, "Failed to store upload", gin.H{
				"filename": fh.Filename,
				"uploaded": uploaded,
			})
			return
		}
		uploaded = append(uploaded, *resp)
	}

	ids := make([]string, len(uploaded))
	for i, u := range uploaded {
		ids[i] = u.ID
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Files uploaded successfully. Text extraction in progress.",
		"document_ids": ids,
		"documents":    uploaded,
	})
}

func (h *DocumentHandler) validateUpload(fh *multipart.FileHeader) error {
	if fh.Size == 0 {
		return fmt.Errorf("%s is empty", fh.Filename)
	}
	if fh.Size > h.cfg.MaxFileSize {
		return fmt.Errorf("%s exceeds the %d MB limit", fh.Filename, h.cfg.MaxFileSize/(1024*1024))
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") &&
		!strings.Contains(fh.Header.Get("Content-Type"), "pdf") {
		return fmt.Errorf("%s is not a PDF", fh.Filename)
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("cannot read %s", fh.Filename)
	}
	defer f.Close()

	if err := pdf.ValidateHeader(f); err != nil {
		return fmt.Errorf("%s does not appear to be a valid PDF", fh.Filename)
	}
	return nil
}

// storeUpload saves the file, records the document and enqueues processing.
// Partial state is removed when a later step fails.
func (h *DocumentHandler) storeUpload(ctx context.Context, fh *multipart.FileHeader) (*models.UploadResponse, error) {
	id := uuid.NewString()

	dir := filepath.Join(h.cfg.FileStorageDir, "contracts", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	filePath := filepath.Join(dir, sanitizeFilename(fh.Filename))
	if err := saveFile(fh, filePath, h.cfg.MaxFileSize); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	doc := &models.Document{
		ID:       id,
		Filename: fh.Filename,
		FilePath: filePath,
		Status:   models.StatusPending,
		Metadata: models.DocumentMetadata{
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
		},
	}
	if err := h.store.CreateDocument(ctx, doc); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	taskID, err := h.queue.EnqueueDocument(ctx, id, filePath)
	if err != nil {
		os.RemoveAll(dir)
		if derr := h.store.DeleteDocument(context.Background(), id); derr != nil {
			logger.Error("Failed to roll back document", "document_id", id, "error", derr)
		}
		return nil, err
	}

	return &models.UploadResponse{
		ID:       id,
		Filename: fh.Filename,
		Status:   doc.Status,
		TaskID:   taskID,
		Uploaded: doc.UploadedAt,
	}, nil
}

func saveFile(fh *multipart.FileHeader, dst string, limit int64) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(src, limit)); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document.pdf"
	}
	return name
}

func (h *DocumentHandler) List(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	docs, err := h.store.ListDocuments(ctx, 100)
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	doc, err := h.store.GetDocument(ctx, c.Param("id"))
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	id := c.Param("id")
	doc, err := h.store.GetDocument(ctx, id)
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	if err := h.store.DeleteDocument(ctx, id); err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	if doc.FilePath != "" {
		if err := os.RemoveAll(filepath.Dir(doc.FilePath)); err != nil {
			logger.Warn("Failed to remove stored file", "document_id", id, "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) Extract(c *gin.Context) {
	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	fields, err := h.extractor.Extract(ctx, c.Param("id"))
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": fields.DocumentID, "extracted_fields": fields})
}

func (h *DocumentHandler) GetFields(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	fields, err := h.store.GetExtractedFields(ctx, c.Param("id"))
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fields)
}

func (h *DocumentHandler) Audit(c *gin.Context) {
	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	findings, err := h.auditor.Audit(ctx, c.Param("id"))
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings, "count": len(findings)})
}

func (h *DocumentHandler) ListFindings(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	id := c.Param("id")
	if _, err := h.store.GetDocument(ctx, id); err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	findings, err := h.store.ListAuditFindings(ctx, id)
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings, "count": len(findings)})
}

// Export streams the extracted fields and audit findings as an xlsx workbook.
// Missing fields or findings produce empty sheets.
func (h *DocumentHandler) Export(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	id := c.Param("id")
	doc, err := h.store.GetDocument(ctx, id)
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}

	fields, err := h.store.GetExtractedFields(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		utils.RespondWithServiceError(c, err)
		return
	}
	findings, err := h.store.ListAuditFindings(ctx, id)
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}

	f, err := services.ExportDocumentReport(doc, fields, findings)
	if err != nil {
		logger.Error("Failed to build export", "document_id", id, "error", err)
		utils.RespondWithInternalError(c, "Failed to build export", nil)
		return
	}
	defer f.Close()

	name := strings.TrimSuffix(sanitizeFilename(doc.Filename), filepath.Ext(doc.Filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-report-%s.xlsx"`, name, time.Now().Format("20060102")))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		logger.Error("Failed to write export", "document_id", id, "error", err)
	}
}
