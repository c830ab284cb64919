package services

import (
	"context"
	"errors"
	"time"

	"contract-qa-platform/models"
)

type fakeStore struct {
	docs     map[string]*models.Document
	pages    map[string][]models.Page
	fields   *models.ExtractedFields
	findings []models.AuditFinding
	replaced bool
	stale    int64
	staleErr error
	staleArg time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:  map[string]*models.Document{},
		pages: map[string][]models.Page{},
	}
}

func (s *fakeStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return doc, nil
}

func (s *fakeStore) GetPages(_ context.Context, documentID string) ([]models.Page, error) {
	return s.pages[documentID], nil
}

func (s *fakeStore) SaveExtractedFields(_ context.Context, fields *models.ExtractedFields) error {
	s.fields = fields
	return nil
}

func (s *fakeStore) ReplaceAuditFindings(_ context.Context, _ string, findings []models.AuditFinding) error {
	s.replaced = true
	s.findings = findings
	return nil
}

func (s *fakeStore) MarkStaleProcessing(_ context.Context, olderThan time.Duration) (int64, error) {
	s.staleArg = olderThan
	return s.stale, s.staleErr
}

type fakeJSONGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *fakeJSONGenerator) GenerateJSON(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.response, g.err
}

var errModel = errors.New("model unavailable")
