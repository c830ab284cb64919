package ai

import (
	"context"
	"testing"
	"time"

	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/rag"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRateLimits(t *testing.T) {
	assert.Equal(t, 10, getRateLimits("free").RPM)
	assert.Equal(t, 1000, getRateLimits("tier1").RPM)
	assert.Equal(t, 2000, getRateLimits("tier2").RPM)
	assert.Equal(t, getRateLimits("free"), getRateLimits("unknown"))
}

func TestTokenCounterWindows(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tc := NewTokenCounter(RateLimits{RPM: 2, TPM: 100, RPD: 3})
	tc.now = func() time.Time { return now }

	require.True(t, tc.CanConsume(50, 1))
	tc.RecordUsage(50, 1)
	assert.False(t, tc.CanConsume(60, 1), "token budget per minute")
	tc.RecordUsage(10, 1)
	assert.False(t, tc.CanConsume(1, 1), "request budget per minute")

	now = now.Add(time.Minute)
	assert.True(t, tc.CanConsume(1, 1))
	tc.RecordUsage(1, 1)
	assert.False(t, tc.CanConsume(1, 1), "daily request budget")

	now = now.Add(24 * time.Hour)
	assert.True(t, tc.CanConsume(1, 1))
}

func TestResponseText(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("The term "), genai.Text("is 24 months.")}},
		}},
	}
	assert.Equal(t, "The term is 24 months.", responseText(resp))
	assert.Equal(t, 5, extractTokenUsage(resp))

	resp.UsageMetadata = &genai.UsageMetadata{TotalTokenCount: 42}
	assert.Equal(t, 42, extractTokenUsage(resp))
}

func TestClientWithoutKey(t *testing.T) {
	cfg := &config.Config{GeminiModel: "gemini-1.5-flash", GoogleEmbeddingsModel: "embedding-001", GeminiTier: "free"}

	gc, err := NewGeminiClient(context.Background(), cfg)
	require.NoError(t, err)
	defer gc.Close()

	_, err = gc.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = gc.GenerateJSON(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)

	var streamErr error
	for _, err := range gc.GenerateStream(context.Background(), "hello") {
		streamErr = err
	}
	assert.ErrorIs(t, streamErr, ErrNotConfigured)

	assert.Nil(t, gc.Embedder())
	assert.Nil(t, NewEmbedder(gc))
}

func TestTaskType(t *testing.T) {
	assert.Equal(t, genai.TaskTypeRetrievalQuery, taskType(rag.PurposeQuery))
	assert.Equal(t, genai.TaskTypeRetrievalDocument, taskType(rag.PurposeDocument))
}
