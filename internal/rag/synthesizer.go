package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/telemetry"
	"contract-qa-platform/models"
)

// Generator is the external language-model capability
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateStream yields text increments in order. A non-nil error ends
	// the sequence.
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Event is one element of a streamed answer: zero or more tokens, then one
// citations event and one end event, or a single error event instead.
type Event interface {
	Type() string
	Terminal() bool
	isEvent()
}

type TokenEvent struct {
	Text string
}

type CitationsEvent struct {
	Citations []models.Citation
}

type EndEvent struct{}

type ErrorEvent struct {
	Message string
}

func (TokenEvent) Type() string     { return "token" }
func (CitationsEvent) Type() string { return "citations" }
func (EndEvent) Type() string       { return "end" }
func (ErrorEvent) Type() string     { return "error" }

func (TokenEvent) Terminal() bool     { return false }
func (CitationsEvent) Terminal() bool { return false }
func (EndEvent) Terminal() bool       { return true }
func (ErrorEvent) Terminal() bool     { return true }

func (TokenEvent) isEvent()     {}
func (CitationsEvent) isEvent() {}
func (EndEvent) isEvent()       {}
func (ErrorEvent) isEvent()     {}

func (e TokenEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{e.Type(), e.Text})
}

func (e CitationsEvent) MarshalJSON() ([]byte, error) {
	citations := e.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	return json.Marshal(struct {
		Type string            `json:"type"`
		Data []models.Citation `json:"data"`
	}{e.Type(), citations})
}

func (e EndEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{e.Type()})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{e.Type(), e.Message})
}

// Citations maps retrieval results one-to-one onto citations, dropping the
// score. The result is never nil.
func Citations(results []models.RetrievalResult) []models.Citation {
	citations := make([]models.Citation, 0, len(results))
	for _, r := range results {
		citations = append(citations, models.Citation{
			Page:  r.PageNumber,
			Start: r.Start,
			End:   r.End,
		})
	}
	return citations
}

// Synthesizer produces answers from a prompt using a Generator
type Synthesizer struct {
	generator Generator
	metrics   *telemetry.Metrics
}

func NewSynthesizer(generator Generator, metrics *telemetry.Metrics) *Synthesizer {
	return &Synthesizer{generator: generator, metrics: metrics}
}

// Answer makes exactly one generation call. Failures wrap models.ErrGeneration.
func (s *Synthesizer) Answer(ctx context.Context, prompt string) (string, error) {
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.metrics.RecordGenerationFailure(ctx, "blocking")
		return "", fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}
	return text, nil
}

// Stream forwards each text increment as soon as it arrives. The next
// increment is only requested after the consumer has taken the previous
// event; a consumer that stops early stops generation.
func (s *Synthesizer) Stream(ctx context.Context, prompt string, citations []models.Citation) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if err := ctx.Err(); err != nil {
			yield(ErrorEvent{Message: err.Error()})
			return
		}

		for text, err := range s.generator.GenerateStream(ctx, prompt) {
			if err != nil {
				s.metrics.RecordGenerationFailure(ctx, "stream")
				logger.WarnContext(ctx, "Answer stream failed", "error", err)
				yield(ErrorEvent{Message: err.Error()})
				return
			}
			if text == "" {
				continue
			}
			if !yield(TokenEvent{Text: text}) {
				return
			}
			s.metrics.RecordStreamToken(ctx)
		}

		if err := ctx.Err(); err != nil {
			yield(ErrorEvent{Message: err.Error()})
			return
		}
		if !yield(CitationsEvent{Citations: citations}) {
			return
		}
		yield(EndEvent{})
	}
}

// ErrorStream is a stream made of a single error event
func ErrorStream(err error) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		yield(ErrorEvent{Message: err.Error()})
	}
}
