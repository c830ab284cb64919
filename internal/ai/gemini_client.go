package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/logger"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// ErrNotConfigured is returned by every call when no API key was provided
var ErrNotConfigured = errors.New("gemini api key not configured")

// ErrQuotaExceeded is returned when the local token budget for the tier is spent
var ErrQuotaExceeded = errors.New("gemini rate limit exceeded: wait before retry")

type GeminiClient struct {
	client        *genai.Client
	model         string
	embedModel    string
	tier          string
	breaker       *gobreaker.CircuitBreaker
	streamBreaker *gobreaker.TwoStepCircuitBreaker
	rateLimiter   *rate.Limiter
	tokenCounter  *TokenCounter
}

type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
	now             func() time.Time
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

// NewGeminiClient builds the generation client. Without an API key the
// client is still returned, but every call fails with ErrNotConfigured and
// Embedder returns nil.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	limits := getRateLimits(cfg.GeminiTier)

	gc := &GeminiClient{
		model:         cfg.GeminiModel,
		embedModel:    cfg.GoogleEmbeddingsModel,
		tier:          cfg.GeminiTier,
		breaker:       gobreaker.NewCircuitBreaker(breakerSettings("GeminiAPI")),
		streamBreaker: gobreaker.NewTwoStepCircuitBreaker(breakerSettings("GeminiStream")),
		// RPM limit with some buffer
		rateLimiter:  rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(limits.RPM/10, 1)),
		tokenCounter: NewTokenCounter(limits),
	}

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set: generation disabled, embeddings fall back to zero vectors")
		return gc, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	gc.client = client
	return gc, nil
}

func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

func (gc *GeminiClient) generativeModel(jsonMode bool) *genai.GenerativeModel {
	model := gc.client.GenerativeModel(gc.model)
	model.SetTemperature(0.2)
	model.SetMaxOutputTokens(2048)
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}
	return model
}

// admit applies the local token budget and the request rate limiter
func (gc *GeminiClient) admit(ctx context.Context, span trace.Span, prompt string) (int, error) {
	if gc.client == nil {
		return 0, ErrNotConfigured
	}

	estimatedTokens := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.model),
	)

	if !gc.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return 0, ErrQuotaExceeded
	}
	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return 0, err
	}
	return estimatedTokens, nil
}

// Generate returns the complete answer for a prompt
func (gc *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	return gc.generate(ctx, "gemini.generate_content", prompt, false)
}

// GenerateJSON asks for an application/json response and returns it unparsed
func (gc *GeminiClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return gc.generate(ctx, "gemini.generate_json", prompt, true)
}

func (gc *GeminiClient) generate(ctx context.Context, spanName, prompt string, jsonMode bool) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	estimatedTokens, err := gc.admit(ctx, span, prompt)
	if err != nil {
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		resp, err := gc.generativeModel(jsonMode).GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			span.SetAttributes(attribute.String("gemini.error_message", err.Error()))
			return nil, err
		}

		actualTokens := extractTokenUsage(resp)
		gc.tokenCounter.RecordUsage(actualTokens, 1)
		span.SetAttributes(
			attribute.Int("gemini.actual_tokens", actualTokens),
			attribute.Float64("gemini.token_accuracy", float64(actualTokens)/float64(max(estimatedTokens, 1))),
		)
		return responseText(resp), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return result.(string), nil
}

// GenerateStream yields text increments as the model produces them. The next
// chunk is fetched from the API only after the consumer accepted the previous
// one.
func (gc *GeminiClient) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		tracer := otel.Tracer("gemini-client")
		ctx, span := tracer.Start(ctx, "gemini.generate_stream")
		defer span.End()

		if _, err := gc.admit(ctx, span, prompt); err != nil {
			yield("", err)
			return
		}

		done, err := gc.streamBreaker.Allow()
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			yield("", fmt.Errorf("gemini stream: %w", err))
			return
		}

		var streamErr error
		defer func() { done(streamErr == nil) }()

		it := gc.generativeModel(false).GenerateContentStream(ctx, genai.Text(prompt))
		increments := 0
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				streamErr = err
				span.SetAttributes(attribute.Bool("gemini.error", true))
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}

			text := responseText(resp)
			if text == "" {
				continue
			}
			increments++
			if !yield(text, nil) {
				span.SetAttributes(attribute.Bool("gemini.stream_abandoned", true))
				return
			}
		}

		if resp := it.MergedResponse(); resp != nil {
			gc.tokenCounter.RecordUsage(extractTokenUsage(resp), 1)
		}
		span.SetAttributes(
			attribute.Int("gemini.stream_increments", increments),
			attribute.Bool("gemini.success", true),
		)
	}
}

// Embedder returns the embedding capability backed by this client, or nil
// when no API key is configured.
func (gc *GeminiClient) Embedder() *GeminiEmbedder {
	if gc.client == nil {
		return nil
	}
	return &GeminiEmbedder{client: gc.client, model: gc.embedModel}
}

func NewTokenCounter(limits RateLimits) *TokenCounter {
	return &TokenCounter{limits: limits, now: time.Now}
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := tc.now()

	// Reset counters if time windows expired
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// Rough estimate: 1 token ≈ 4 characters
func estimateTokens(prompt string) int {
	return len(prompt) / 4
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	estimated := len(responseText(resp)) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
