package ai

import (
	"context"
	"errors"

	"contract-qa-platform/internal/rag"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GeminiEmbedder embeds text with a Google embedding model. Documents and
// queries use the same model; only the task type differs.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

var errNoEmbedding = errors.New("no embedding returned")

func taskType(purpose rag.Purpose) genai.TaskType {
	if purpose == rag.PurposeQuery {
		return genai.TaskTypeRetrievalQuery
	}
	return genai.TaskTypeRetrievalDocument
}

// Embed returns the embedding vector for text
func (e *GeminiEmbedder) Embed(ctx context.Context, text string, purpose rag.Purpose) ([]float32, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.embed_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", e.model),
		attribute.String("embedding.purpose", purpose.String()),
	)

	model := e.client.EmbeddingModel(e.model)
	model.TaskType = taskType(purpose)

	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, errNoEmbedding
	}
	return resp.Embedding.Values, nil
}

// NewEmbedder returns the configured embedding capability, or a nil
// interface when the client has no credentials.
func NewEmbedder(gc *GeminiClient) rag.Embedder {
	if e := gc.Embedder(); e != nil {
		return e
	}
	return nil
}
