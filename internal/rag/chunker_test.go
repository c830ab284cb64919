package rag

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPageEmpty(t *testing.T) {
	assert.Empty(t, ChunkPage("", 1, 1000))
	assert.Empty(t, ChunkPage("   \n\t ", 1, 1000))
}

func TestChunkPageShortTextIsOneTrimmedChunk(t *testing.T) {
	text := "  This Agreement is made between Acme and Globex.  "

	chunks := ChunkPage(text, 3, 1000)

	require.Len(t, chunks, 1)
	assert.Equal(t, "This Agreement is made between Acme and Globex.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(text), chunks[0].End)
	assert.Equal(t, 3, chunks[0].PageNumber)
}

func TestChunkPageExactlyMaxSizeIsOneChunk(t *testing.T) {
	text := strings.Repeat("a", 50)

	chunks := ChunkPage(text, 1, 50)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

// 24 sentences of 100 characters each (with their period) pack nine to a
// chunk under a 1000 character budget.
func TestChunkPageLongPageScenario(t *testing.T) {
	sentences := make([]string, 24)
	for i := range sentences {
		head := fmt.Sprintf("Clause %02d ", i+1)
		sentences[i] = head + strings.Repeat("x", 99-len(head))
	}
	text := strings.Join(sentences, ". ") + "."
	require.Greater(t, len(text), 2400)

	chunks := ChunkPage(text, 2, 1000)

	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 908, chunks[0].End)
	assert.Equal(t, 908, chunks[1].Start)
	assert.Equal(t, 1816, chunks[1].End)
	assert.Equal(t, 1816, chunks[2].Start)
	assert.Equal(t, 2421, chunks[2].End)

	total := 0
	for _, ch := range chunks {
		total += utf8.RuneCountInString(ch.Text)
		assert.Equal(t, 2, ch.PageNumber)
	}
	assert.Equal(t, chunks[len(chunks)-1].End, total)
	assert.NotEqual(t, len(text), total)
}

func TestChunkPageOversizedSentenceIsNotSplit(t *testing.T) {
	long := "The Supplier shall indemnify the Customer against all third party claims"
	text := long + ". Short."

	chunks := ChunkPage(text, 1, 20)

	require.Len(t, chunks, 2)
	assert.Equal(t, long+".", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(long)+1, chunks[0].End)
	assert.Equal(t, "Short.", chunks[1].Text)
	assert.Equal(t, chunks[0].End, chunks[1].Start)
	assert.Equal(t, chunks[0].End+6, chunks[1].End)
}

func TestChunkPageNormalizesNewlinesAndAddsPeriods(t *testing.T) {
	text := "Payment is due\nwithin thirty days. Late fees apply at two percent"

	chunks := ChunkPage(text, 1, 40)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Payment is due within thirty days.", chunks[0].Text)
	assert.Equal(t, "Late fees apply at two percent.", chunks[1].Text)
}

func TestChunkPageSkipsEmptySentences(t *testing.T) {
	text := strings.Repeat("Term. ", 3) + ".  . " + strings.Repeat("b", 30)

	for _, ch := range ChunkPage(text, 1, 10) {
		assert.NotEmpty(t, strings.TrimSpace(ch.Text))
		assert.NotEqual(t, ".", ch.Text)
	}
}

func TestChunkPageOffsetsAreContiguous(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "Section %d applies to the parties%s. ", i, strings.Repeat(" and affiliates", i%7))
		if i%13 == 0 {
			b.WriteString("\n")
		}
	}

	for _, maxSize := range []int{50, 120, 400, 1000} {
		chunks := ChunkPage(b.String(), 4, maxSize)
		require.NotEmpty(t, chunks)
		assert.Equal(t, 0, chunks[0].Start)
		for i, ch := range chunks {
			assert.LessOrEqual(t, ch.Start, ch.End)
			assert.Equal(t, utf8.RuneCountInString(ch.Text), ch.End-ch.Start)
			assert.NotEmpty(t, strings.TrimSpace(ch.Text))
			if i+1 < len(chunks) {
				assert.Equal(t, ch.End, chunks[i+1].Start, "maxSize=%d chunk=%d", maxSize, i)
			}
		}
	}
}

func TestChunkPageCountsCharactersNotBytes(t *testing.T) {
	text := "Größe der Haftung ist begrenzt. Die Vergütung beträgt fünf Euro."

	chunks := ChunkPage(text, 1, 40)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Größe der Haftung ist begrenzt.", chunks[0].Text)
	assert.Equal(t, utf8.RuneCountInString(chunks[0].Text), chunks[0].End)
}

func TestChunkPageReconstructsContentInOrder(t *testing.T) {
	text := "Alpha clause. Beta clause. Gamma clause. Delta clause"

	chunks := ChunkPage(text, 1, 20)

	var parts []string
	for _, ch := range chunks {
		parts = append(parts, ch.Text)
	}
	assert.Equal(t, text+".", strings.Join(parts, " "))
}

func TestChunkPageDefaultMaxSize(t *testing.T) {
	text := strings.Repeat("word ", 150)
	chunks := ChunkPage(text, 1, 0)
	require.Len(t, chunks, 1)
}
