package rag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"contract-qa-platform/models"

	"github.com/google/uuid"
)

// AskRequest is a question about one document
type AskRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
	Query      string `json:"query" binding:"required"`
	TopK       int    `json:"top_k"`
}

func (r AskRequest) validate() error {
	if strings.TrimSpace(r.DocumentID) == "" {
		return fmt.Errorf("%w: document_id is required", models.ErrInvalidInput)
	}
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is required", models.ErrInvalidInput)
	}
	return nil
}

// Service answers questions about indexed documents. The blocking and the
// streaming path share retrieval and citation building, so both report the
// same citations for the same request.
type Service struct {
	retriever   *Retriever
	synthesizer *Synthesizer
	defaultTopK int
}

func NewService(retriever *Retriever, synthesizer *Synthesizer, defaultTopK int) *Service {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Service{
		retriever:   retriever,
		synthesizer: synthesizer,
		defaultTopK: defaultTopK,
	}
}

func (s *Service) prepare(ctx context.Context, req AskRequest) (string, []models.Citation, error) {
	if err := req.validate(); err != nil {
		return "", nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	results, err := s.retriever.Retrieve(ctx, req.DocumentID, req.Query, topK)
	if err != nil {
		return "", nil, err
	}
	return BuildPrompt(req.Query, results), Citations(results), nil
}

// Ask returns the full answer with its citations
func (s *Service) Ask(ctx context.Context, req AskRequest) (*models.Answer, error) {
	prompt, citations, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.synthesizer.Answer(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &models.Answer{Answer: answer, Citations: citations}, nil
}

// AskStream returns the event stream for a question. Unknown documents and
// invalid requests are reported before streaming starts; any other failure
// while preparing becomes a stream holding one error event.
func (s *Service) AskStream(ctx context.Context, req AskRequest) (iter.Seq[Event], error) {
	prompt, citations, err := s.prepare(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidInput) {
			return nil, err
		}
		return ErrorStream(err), nil
	}
	return s.synthesizer.Stream(ctx, prompt, citations), nil
}

// Indexer turns extracted page text into a storable page
type Indexer struct {
	gateway      *Gateway
	maxChunkSize int
}

func NewIndexer(gateway *Gateway, maxChunkSize int) *Indexer {
	return &Indexer{gateway: gateway, maxChunkSize: maxChunkSize}
}

// IndexPage chunks and embeds one page. Each chunk is paired with its own
// vector, so the page is complete when returned.
func (ix *Indexer) IndexPage(ctx context.Context, documentID string, pageNumber int, text string) (models.Page, error) {
	chunks := ChunkPage(text, pageNumber, ix.maxChunkSize)

	embedded, err := ix.gateway.EmbedChunks(ctx, chunks)
	if err != nil {
		return models.Page{}, fmt.Errorf("embed page %d: %w", pageNumber, err)
	}
	if embedded == nil {
		embedded = []models.EmbeddedChunk{}
	}

	return models.Page{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		PageNumber: pageNumber,
		Text:       text,
		Chunks:     embedded,
		CreatedAt:  time.Now(),
	}, nil
}
