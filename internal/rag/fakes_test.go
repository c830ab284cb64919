package rag

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"contract-qa-platform/models"
)

// unitVector returns a vector of the embedding dimension with a single
// non-zero component.
func unitVector(axis int) []float32 {
	v := make([]float32, models.EmbeddingDimension)
	v[axis] = 1
	return v
}

type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fail     map[string]error
	calls    []string
	purposes []Purpose
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: map[string][]float32{},
		fail:    map[string]error{},
	}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, purpose Purpose) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.purposes = append(f.purposes, purpose)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.fail[text]; ok {
		return nil, err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return unitVector(len(text) % models.EmbeddingDimension), nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStore struct {
	docs  map[string]*models.Document
	pages map[string][]models.Page
	err   error
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
	if s.err != nil {
		return nil, s.err
	}
	return s.pages[documentID], nil
}

type fakeGenerator struct {
	answer     string
	err        error
	tokens     []string
	streamErr  error
	failAfter  int
	prompts    []string
	requested  int
	streamDone bool
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *fakeGenerator) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	g.prompts = append(g.prompts, prompt)
	return func(yield func(string, error) bool) {
		defer func() { g.streamDone = true }()
		for i, tok := range g.tokens {
			if g.streamErr != nil && i == g.failAfter {
				yield("", g.streamErr)
				return
			}
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			g.requested++
			if !yield(tok, nil) {
				return
			}
		}
		if g.streamErr != nil && g.failAfter >= len(g.tokens) {
			yield("", g.streamErr)
		}
	}
}

var errProvider = errors.New("provider exploded")

func collect(seq iter.Seq[Event]) []Event {
	var out []Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func tokenText(events []Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if tok, ok := ev.(TokenEvent); ok {
			sb.WriteString(tok.Text)
		}
	}
	return sb.String()
}
