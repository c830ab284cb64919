package rag

import (
	"fmt"
	"strings"

	"contract-qa-platform/models"
)

// BuildPrompt renders the retrieved chunks, most relevant first, followed by
// the question and an instruction to cite pages and character ranges.
func BuildPrompt(query string, results []models.RetrievalResult) string {
	var sb strings.Builder

	sb.WriteString("Use the following context to answer the question.\n")
	sb.WriteString("Context:\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "(Page %d, chars %d-%d): %s\n", r.PageNumber, r.Start, r.End, r.Text)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer (with page + char ranges if relevant):")

	return sb.String()
}
