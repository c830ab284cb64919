package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"contract-qa-platform/internal/config"
	"contract-qa-platform/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

type documentFixture struct {
	router    *gin.Engine
	store     *fakeStore
	queue     *fakeQueue
	extractor *fakeExtractor
	auditor   *fakeAuditor
	dir       string
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	fx := &documentFixture{
		store:     newFakeStore(),
		queue:     &fakeQueue{},
		extractor: &fakeExtractor{fields: &models.ExtractedFields{Parties: []string{"Acme", "Globex"}}},
		auditor:   &fakeAuditor{},
		dir:       t.TempDir(),
	}
	cfg := &config.Config{
		FileStorageDir: fx.dir,
		MaxFileSize:    1 << 20,
		MaxUploadFiles: 2,
	}
	fx.router = gin.New()
	SetupDocumentRoutes(fx.router, NewDocumentHandler(cfg, fx.store, fx.queue, fx.extractor, fx.auditor), noAuth)
	return fx
}

func (fx *documentFixture) addDocument(t *testing.T, id string) string {
	t.Helper()
	dir := filepath.Join(fx.dir, "contracts", id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "msa.pdf")
	require.NoError(t, os.WriteFile(path, samplePDF, 0o600))
	fx.store.docs[id] = &models.Document{ID: id, Filename: "msa.pdf", FilePath: path, Status: models.StatusCompleted}
	return path
}

func TestUploadStoresAndEnqueues(t *testing.T) {
	fx := newDocumentFixture(t)

	w := serve(fx.router, multipartRequest(t, "/api/documents",
		uploadFile{name: "a.pdf", content: samplePDF},
		uploadFile{name: "b.pdf", content: samplePDF},
	))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		DocumentIDs []string                `json:"document_ids"`
		Documents   []models.UploadResponse `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.DocumentIDs, 2)
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "a.pdf", resp.Documents[0].Filename)
	assert.Equal(t, models.StatusPending, resp.Documents[0].Status)
	assert.Equal(t, "task-"+resp.DocumentIDs[0], resp.Documents[0].TaskID)

	for _, id := range resp.DocumentIDs {
		doc, err := fx.store.GetDocument(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, fx.queue.enqueued[id], doc.FilePath)

		data, err := os.ReadFile(doc.FilePath)
		require.NoError(t, err)
		assert.Equal(t, samplePDF, data)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		files []uploadFile
		code  string
	}{
		{"no files", nil, "no_file"},
		{"too many files", []uploadFile{{"a.pdf", samplePDF}, {"b.pdf", samplePDF}, {"c.pdf", samplePDF}}, "too_many_files"},
		{"not a pdf", []uploadFile{{"notes.pdf", []byte("plain text")}}, "invalid_pdf"},
		{"one bad file fails the batch", []uploadFile{{"a.pdf", samplePDF}, {"b.pdf", []byte("GIF89a")}}, "invalid_pdf"},
		{"empty file", []uploadFile{{"a.pdf", nil}}, "invalid_pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newDocumentFixture(t)

			w := serve(fx.router, multipartRequest(t, "/api/documents", tt.files...))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.Empty(t, fx.store.docs)
			assert.Empty(t, fx.queue.enqueued)
		})
	}
}

func TestUploadRollsBackWhenEnqueueFails(t *testing.T) {
	fx := newDocumentFixture(t)
	fx.queue.err = errBoom

	w := serve(fx.router, multipartRequest(t, "/api/documents", uploadFile{name: "a.pdf", content: samplePDF}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, fx.store.docs)
	assert.Len(t, fx.store.deleted, 1)

	entries, err := os.ReadDir(filepath.Join(fx.dir, "contracts"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetDocument(t *testing.T) {
	fx := newDocumentFixture(t)
	fx.addDocument(t, "doc-1")

	w := serve(fx.router, httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"doc-1"`)
	assert.NotContains(t, w.Body.String(), "file_path")

	w = serve(fx.router, httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDocumentRemovesFile(t *testing.T) {
	fx := newDocumentFixture(t)
	path := fx.addDocument(t, "doc-1")

	w := serve(fx.router, httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	w = serve(fx.router, httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtractMapsServiceErrors(t *testing.T) {
	fx := newDocumentFixture(t)

	w := serve(fx.router, httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/extract", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"document_id":"doc-1"`)
	assert.Contains(t, w.Body.String(), "Globex")

	fx.extractor.err = models.ErrNotProcessed
	w = serve(fx.router, httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/extract", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	fx.extractor.err = models.ErrGeneration
	w = serve(fx.router, httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/extract", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAuditAndFindings(t *testing.T) {
	fx := newDocumentFixture(t)
	fx.addDocument(t, "doc-1")
	finding := models.AuditFinding{ID: "f1", DocumentID: "doc-1", Title: "Unlimited liability", Severity: models.SeverityHigh}
	fx.auditor.findings = []models.AuditFinding{finding}
	fx.store.findings["doc-1"] = []models.AuditFinding{finding}

	w := serve(fx.router, httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/audit", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = serve(fx.router, httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/findings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Unlimited liability")

	w = serve(fx.router, httptest.NewRequest(http.MethodGet, "/api/documents/missing/findings", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportWorkbook(t *testing.T) {
	fx := newDocumentFixture(t)
	fx.addDocument(t, "doc-1")
	fx.store.findings["doc-1"] = []models.AuditFinding{{Title: "Auto renewal", Severity: models.SeverityMedium, PageNumber: 3}}

	w := serve(fx.router, httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="msa-report-`)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Findings")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Auto renewal", rows[1][3])
}
