package rag

import (
	"strings"
	"unicode/utf8"

	"contract-qa-platform/models"
)

// DefaultMaxChunkSize is the chunk budget in characters
const DefaultMaxChunkSize = 1000

const sentenceDelimiter = ". "

// ChunkPage splits one page's text into ordered, non-overlapping chunks of at
// most maxSize characters. Text that fits is returned whole. Longer text is
// split into sentences on ". " which are packed greedily; a sentence longer
// than maxSize becomes its own chunk and is never cut.
//
// Offsets are derived from the accumulated lengths of emitted chunks, not by
// locating sentences in the original text, so they drift once a period is
// re-added or whitespace is trimmed. Citations rely on exactly this scheme.
// Lengths are counted in characters (runes).
func ChunkPage(pageText string, pageNumber, maxSize int) []models.Chunk {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	if pageText == "" {
		return nil
	}

	total := utf8.RuneCountInString(pageText)
	if total <= maxSize {
		text := strings.TrimSpace(pageText)
		if text == "" {
			return nil
		}
		return []models.Chunk{{Text: text, Start: 0, End: total, PageNumber: pageNumber}}
	}

	var (
		chunks []models.Chunk
		buf    strings.Builder
		bufLen int
		start  int
	)

	flush := func() {
		end := start + bufLen
		chunks = append(chunks, models.Chunk{
			Text:       buf.String(),
			Start:      start,
			End:        end,
			PageNumber: pageNumber,
		})
		start = end
		buf.Reset()
		bufLen = 0
	}

	normalized := strings.ReplaceAll(pageText, "\n", " ")
	for _, sentence := range strings.Split(normalized, sentenceDelimiter) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if !strings.HasSuffix(sentence, ".") {
			sentence += "."
		}

		n := utf8.RuneCountInString(sentence)
		if bufLen > 0 && bufLen+n > maxSize {
			flush()
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(sentence)
		bufLen += n
	}

	if bufLen > 0 {
		flush()
	}

	return chunks
}
