package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"contract-qa-platform/internal/logger"
	"contract-qa-platform/models"
)

// maxExtractionChars bounds the contract text sent for field extraction
const maxExtractionChars = 6000

// JSONGenerator produces a JSON document for a prompt
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// PageSource loads a document and its pages
type PageSource interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetPages(ctx context.Context, documentID string) ([]models.Page, error)
}

type FieldStore interface {
	SaveExtractedFields(ctx context.Context, fields *models.ExtractedFields) error
}

// Extractor pulls structured contract fields out of a processed document
type Extractor struct {
	pages     PageSource
	store     FieldStore
	generator JSONGenerator
	model     string
}

func NewExtractor(pages PageSource, store FieldStore, generator JSONGenerator, model string) *Extractor {
	return &Extractor{pages: pages, store: store, generator: generator, model: model}
}

// Extract runs field extraction and stores the result. Output that cannot be
// parsed yields an empty field set rather than an error.
func (e *Extractor) Extract(ctx context.Context, documentID string) (*models.ExtractedFields, error) {
	if _, err := e.pages.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}

	pages, err := e.pages.GetPages(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, models.ErrNotProcessed
	}

	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}

	raw, err := e.generator.GenerateJSON(ctx, extractionPrompt(strings.Join(texts, "\n\n")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}

	fields := parseExtractedFields(raw)
	fields.DocumentID = documentID
	fields.ExtractionModel = e.model
	fields.ExtractedAt = time.Now()

	if err := e.store.SaveExtractedFields(ctx, fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func extractionPrompt(text string) string {
	return `You are a contract analysis expert. Analyze the following contract text and extract the listed fields as JSON.

Contract Text:
` + truncateRunes(text, maxExtractionChars) + `

Fields (use null when a field is not present):
1. parties: array of the organizations that are parties to the contract
2. effective_date: start date of the contract (YYYY-MM-DD)
3. term: duration of the contract, e.g. "2 years"
4. governing_law: governing law or jurisdiction
5. payment_terms: payment terms and conditions
6. termination: termination date (YYYY-MM-DD) or termination conditions
7. auto_renewal: true, false or null
8. confidentiality: confidentiality obligations
9. indemnity: indemnification scope
10. liability_cap: liability cap amount as a number
11. liability_cap_currency: 3-letter currency code
12. signatories: array of {"name", "title", "date"}
13. contract_type: NDA, Service Agreement, Employment, ...
14. total_value: total contract value as a number
15. value_currency: 3-letter currency code

Return only a single JSON object with exactly these keys.`
}

// parseExtractedFields normalizes loosely typed model output
func parseExtractedFields(raw string) *models.ExtractedFields {
	fields := &models.ExtractedFields{Parties: []string{}, Signatories: []models.Signatory{}}

	var m map[string]any
	if err := json.Unmarshal([]byte(jsonObject(raw)), &m); err != nil {
		logger.Warn("Unparsable extraction output", "error", err, "raw", truncateRunes(raw, 500))
		return fields
	}

	fields.Parties = stringList(m["parties"])
	fields.EffectiveDate = dateValue(m["effective_date"])
	fields.Term = stringValue(m["term"])
	fields.GoverningLaw = stringValue(m["governing_law"])
	fields.PaymentTerms = stringValue(m["payment_terms"])
	fields.Termination = stringValue(m["termination"])
	fields.TerminationDate = dateValue(m["termination"])
	fields.AutoRenewal = boolValue(m["auto_renewal"])
	fields.Confidentiality = stringValue(m["confidentiality"])
	fields.Indemnity = stringValue(m["indemnity"])
	fields.LiabilityCap = numberValue(m["liability_cap"])
	fields.LiabilityCapCurrency = currencyValue(m["liability_cap_currency"])
	fields.Signatories = signatories(m["signatories"])
	fields.ContractType = stringValue(m["contract_type"])
	fields.TotalValue = numberValue(m["total_value"])
	fields.ValueCurrency = currencyValue(m["value_currency"])

	return fields
}

// jsonObject trims anything around the outermost JSON object
func jsonObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func stringValue(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range t {
			if s := stringValue(item); s != nil {
				out = append(out, *s)
			}
		}
	}
	return out
}

func dateValue(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &d
}

func boolValue(v any) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			b = true
		case "":
			return nil
		}
	case float64:
		b = t != 0
	default:
		return nil
	}
	return &b
}

func numberValue(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		cleaned := strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "").Replace(t)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

func currencyValue(v any) *string {
	s := stringValue(v)
	if s == nil {
		return nil
	}
	upper := strings.ToUpper(*s)
	return &upper
}

func signatories(v any) []models.Signatory {
	out := []models.Signatory{}
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case nil:
		return out
	default:
		items = []any{t}
	}

	for _, item := range items {
		switch t := item.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, models.Signatory{Name: s})
			}
		case map[string]any:
			sig := models.Signatory{}
			if s := stringValue(t["name"]); s != nil {
				sig.Name = *s
			}
			if s := stringValue(t["title"]); s != nil {
				sig.Title = *s
			}
			if s := stringValue(t["date"]); s != nil {
				sig.Date = *s
			}
			if sig.Name != "" {
				out = append(out, sig)
			}
		}
	}
	return out
}
