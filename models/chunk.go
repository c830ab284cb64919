package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// EmbeddingDimension is the fixed length of every stored vector.
const EmbeddingDimension = 768

// Chunk is a span of one page's text. Start and End are character offsets
// into the page text, half-open.
type Chunk struct {
	Text       string `bson:"text" json:"text"`
	Start      int    `bson:"start" json:"start"`
	End        int    `bson:"end" json:"end"`
	PageNumber int    `bson:"page_number" json:"page_number"`
}

// EmbeddedChunk pairs a chunk with the vector computed from its text.
// Stored as one element of Page.Chunks.
type EmbeddedChunk struct {
	Chunk     `bson:",inline"`
	Embedding []float32 `bson:"embedding" json:"-"`
}

// UnmarshalBSONValue accepts both chunk shapes found in stored pages: a full
// sub-document, or a bare string written by older ingestion code. A string is
// treated as a chunk spanning its own length from offset 0. A missing or
// wrongly sized embedding is replaced by the zero vector.
func (e *EmbeddedChunk) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.String:
		text := raw.StringValue()
		*e = EmbeddedChunk{
			Chunk: Chunk{Text: strings.TrimSpace(text), Start: 0, End: utf8.RuneCountInString(text)},
		}
	case bsontype.EmbeddedDocument:
		type plain EmbeddedChunk
		var p plain
		if err := raw.Unmarshal(&p); err != nil {
			return fmt.Errorf("decode chunk: %w", err)
		}
		if p.Start < 0 || p.End < p.Start {
			return fmt.Errorf("decode chunk: invalid offsets [%d, %d)", p.Start, p.End)
		}
		*e = EmbeddedChunk(p)
	default:
		return fmt.Errorf("decode chunk: unsupported bson type %s", t)
	}

	if len(e.Embedding) != EmbeddingDimension {
		e.Embedding = make([]float32, EmbeddingDimension)
	}
	return nil
}

// RetrievalResult is a ranked chunk produced for a single query. Never persisted.
type RetrievalResult struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	PageNumber int     `json:"page_number"`
	Score      float64 `json:"score"`
}

// Citation points back to the source span behind part of an answer
type Citation struct {
	Page  int `json:"page"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Answer is the synchronous question-answering result
type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}
