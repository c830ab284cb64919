package rag

import (
	"context"
	"fmt"
	"math"
	"sort"

	"contract-qa-platform/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultTopK is used when a request does not ask for a positive result count
const DefaultTopK = 5

// CosineSimilarity returns dot(a,b) / (|a|*|b|). Vectors of different
// lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every chunk of every page against the query and returns the
// best topK. Pages are visited in ascending page number and chunks in stored
// order; equal scores keep that order.
func Rank(query []float32, pages []models.Page, topK int) []models.RetrievalResult {
	if topK <= 0 {
		topK = DefaultTopK
	}

	ordered := make([]models.Page, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PageNumber < ordered[j].PageNumber
	})

	var results []models.RetrievalResult
	for _, page := range ordered {
		for _, ch := range page.Chunks {
			pageNumber := ch.PageNumber
			if pageNumber == 0 {
				pageNumber = page.PageNumber
			}
			results = append(results, models.RetrievalResult{
				Text:       ch.Text,
				Start:      ch.Start,
				End:        ch.End,
				PageNumber: pageNumber,
				Score:      CosineSimilarity(query, ch.Embedding),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// DocumentStore is the read side of the document store used for retrieval
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetPages(ctx context.Context, documentID string) ([]models.Page, error)
}

// Retriever finds the chunks of one document most similar to a query
type Retriever struct {
	store   DocumentStore
	gateway *Gateway
}

func NewRetriever(store DocumentStore, gateway *Gateway) *Retriever {
	return &Retriever{store: store, gateway: gateway}
}

// Retrieve scans all pages of the document. An unknown document returns
// models.ErrNotFound; a document without pages yields no results.
func (r *Retriever) Retrieve(ctx context.Context, documentID, query string, topK int) ([]models.RetrievalResult, error) {
	ctx, span := otel.Tracer("rag").Start(ctx, "rag.retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	if _, err := r.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}

	pages, err := r.store.GetPages(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}

	queryVector := r.gateway.EmbedQuery(ctx, query)
	results := Rank(queryVector, pages, topK)

	span.SetAttributes(
		attribute.Int("rag.pages", len(pages)),
		attribute.Int("rag.results", len(results)),
	)
	return results, nil
}
