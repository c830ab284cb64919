package routes

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"contract-qa-platform/internal/rag"
	"contract-qa-platform/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func noAuth(c *gin.Context) { c.Next() }

type fakeStore struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	fields    map[string]*models.ExtractedFields
	findings  map[string][]models.AuditFinding
	createErr error
	deleted   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:     map[string]*models.Document{},
		fields:   map[string]*models.ExtractedFields{},
		findings: map[string][]models.AuditFinding{},
	}
}

func (s *fakeStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	doc.UploadedAt = time.Now()
	d := *doc
	s.docs[doc.ID] = &d
	return nil
}

func (s *fakeStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) ListDocuments(ctx context.Context, limit int64) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (s *fakeStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.docs, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) GetExtractedFields(ctx context.Context, documentID string) (*models.ExtractedFields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fields[documentID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return f, nil
}

func (s *fakeStore) ListAuditFindings(ctx context.Context, documentID string) ([]models.AuditFinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditFinding{}, s.findings[documentID]...), nil
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued map[string]string
	err      error
}

func (q *fakeQueue) EnqueueDocument(ctx context.Context, documentID, filePath string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	if q.enqueued == nil {
		q.enqueued = map[string]string{}
	}
	q.enqueued[documentID] = filePath
	return "task-" + documentID, nil
}

type fakeExtractor struct {
	fields *models.ExtractedFields
	err    error
}

func (e *fakeExtractor) Extract(ctx context.Context, documentID string) (*models.ExtractedFields, error) {
	if e.err != nil {
		return nil, e.err
	}
	f := *e.fields
	f.DocumentID = documentID
	return &f, nil
}

type fakeAuditor struct {
	findings []models.AuditFinding
	err      error
}

func (a *fakeAuditor) Audit(ctx context.Context, documentID string) ([]models.AuditFinding, error) {
	return a.findings, a.err
}

type fakeAsker struct {
	answer    *models.Answer
	err       error
	events    []rag.Event
	streamErr error
	got       rag.AskRequest
}

func (a *fakeAsker) Ask(ctx context.Context, req rag.AskRequest) (*models.Answer, error) {
	a.got = req
	return a.answer, a.err
}

func (a *fakeAsker) AskStream(ctx context.Context, req rag.AskRequest) (iter.Seq[rag.Event], error) {
	a.got = req
	if a.streamErr != nil {
		return nil, a.streamErr
	}
	return func(yield func(rag.Event) bool) {
		for _, ev := range a.events {
			if !yield(ev) {
				return
			}
		}
	}, nil
}

var errBoom = errors.New("boom")

type uploadFile struct {
	name    string
	content []byte
}

func multipartRequest(t *testing.T, path string, files ...uploadFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
