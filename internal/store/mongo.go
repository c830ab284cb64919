package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contract-qa-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	documentsCollection = "documents"
	pagesCollection     = "document_pages"
	fieldsCollection    = "extracted_fields"
	findingsCollection  = "audit_findings"
)

// Store persists documents, their pages and everything derived from them
type Store struct {
	documents *mongo.Collection
	pages     *mongo.Collection
	fields    *mongo.Collection
	findings  *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		documents: db.Collection(documentsCollection),
		pages:     db.Collection(pagesCollection),
		fields:    db.Collection(fieldsCollection),
		findings:  db.Collection(findingsCollection),
	}
}

// EnsureIndexes creates the indexes the queries below rely on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.pages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "document_id", Value: 1}, {Key: "page_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create pages index: %w", err)
	}

	if _, err := s.fields.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "document_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create fields index: %w", err)
	}

	if _, err := s.findings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "risk_score", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create findings index: %w", err)
	}

	if _, err := s.documents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create documents index: %w", err)
	}
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}

	if _, err := s.documents.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument returns models.ErrNotFound for unknown ids
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns documents newest first
func (s *Store) ListDocuments(ctx context.Context, limit int64) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.M{"uploaded_at": -1})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.documents.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

// UpdateStatus sets status and progress. Completing a document records the
// processing time.
func (s *Store) UpdateStatus(ctx context.Context, id, status string, progress int, message string) error {
	now := time.Now()
	set := bson.M{
		"status":        status,
		"progress":      progress,
		"error_message": message,
		"updated_at":    now,
	}
	if status == models.StatusCompleted {
		set["processed_at"] = now
	}

	res, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetMetadata stores the extraction results on the document
func (s *Store) SetMetadata(ctx context.Context, id string, pageCount int, meta models.DocumentMetadata) error {
	res, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"page_count": pageCount,
		"metadata":   meta,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("set metadata: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SavePage writes a page together with all of its chunks in one insert, so
// retrieval never observes a partially indexed page. Re-processing a page
// replaces it.
func (s *Store) SavePage(ctx context.Context, page models.Page) error {
	for i := range page.Chunks {
		if page.Chunks[i].PageNumber == 0 {
			page.Chunks[i].PageNumber = page.PageNumber
		}
	}
	if page.Chunks == nil {
		page.Chunks = []models.EmbeddedChunk{}
	}

	filter := bson.M{"document_id": page.DocumentID, "page_number": page.PageNumber}
	if _, err := s.pages.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("clear page %d: %w", page.PageNumber, err)
	}
	if _, err := s.pages.InsertOne(ctx, page); err != nil {
		return fmt.Errorf("insert page %d: %w", page.PageNumber, err)
	}
	return nil
}

// GetPages returns the pages of a document in ascending page order
func (s *Store) GetPages(ctx context.Context, documentID string) ([]models.Page, error) {
	cursor, err := s.pages.Find(ctx,
		bson.M{"document_id": documentID},
		options.Find().SetSort(bson.M{"page_number": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find pages: %w", err)
	}
	defer cursor.Close(ctx)

	pages := []models.Page{}
	if err := cursor.All(ctx, &pages); err != nil {
		return nil, fmt.Errorf("decode pages: %w", err)
	}
	return pages, nil
}

// DeleteDocument removes the document and everything it owns
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.GetDocument(ctx, id); err != nil {
		return err
	}

	for _, col := range []*mongo.Collection{s.pages, s.fields, s.findings} {
		if _, err := col.DeleteMany(ctx, bson.M{"document_id": id}); err != nil {
			return fmt.Errorf("delete from %s: %w", col.Name(), err)
		}
	}

	if _, err := s.documents.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *Store) SaveExtractedFields(ctx context.Context, fields *models.ExtractedFields) error {
	_, err := s.fields.ReplaceOne(ctx,
		bson.M{"document_id": fields.DocumentID},
		fields,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save extracted fields: %w", err)
	}
	return nil
}

func (s *Store) GetExtractedFields(ctx context.Context, documentID string) (*models.ExtractedFields, error) {
	var fields models.ExtractedFields
	err := s.fields.FindOne(ctx, bson.M{"document_id": documentID}).Decode(&fields)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find extracted fields: %w", err)
	}
	return &fields, nil
}

// ReplaceAuditFindings drops earlier findings of the document before storing new ones
func (s *Store) ReplaceAuditFindings(ctx context.Context, documentID string, findings []models.AuditFinding) error {
	if _, err := s.findings.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return fmt.Errorf("clear findings: %w", err)
	}
	if len(findings) == 0 {
		return nil
	}

	docs := make([]interface{}, len(findings))
	for i := range findings {
		docs[i] = findings[i]
	}
	if _, err := s.findings.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert findings: %w", err)
	}
	return nil
}

// ListAuditFindings returns findings with the highest risk first
func (s *Store) ListAuditFindings(ctx context.Context, documentID string) ([]models.AuditFinding, error) {
	cursor, err := s.findings.Find(ctx,
		bson.M{"document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "risk_score", Value: -1}, {Key: "page_number", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find findings: %w", err)
	}
	defer cursor.Close(ctx)

	findings := []models.AuditFinding{}
	if err := cursor.All(ctx, &findings); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}
	return findings, nil
}

// MarkStaleProcessing fails documents that have been processing for longer
// than olderThan and returns how many were updated.
func (s *Store) MarkStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.documents.UpdateMany(ctx,
		bson.M{
			"status":     models.StatusProcessing,
			"updated_at": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": "processing timed out",
			"updated_at":    time.Now(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale documents: %w", err)
	}
	return res.ModifiedCount, nil
}
