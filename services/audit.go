package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"contract-qa-platform/internal/logger"
	"contract-qa-platform/models"

	"github.com/google/uuid"
)

type FindingStore interface {
	ReplaceAuditFindings(ctx context.Context, documentID string, findings []models.AuditFinding) error
}

// Auditor asks the model for risky clauses and anchors each finding to a
// page text span
type Auditor struct {
	pages     PageSource
	store     FindingStore
	generator JSONGenerator
	model     string
}

func NewAuditor(pages PageSource, store FindingStore, generator JSONGenerator, model string) *Auditor {
	return &Auditor{pages: pages, store: store, generator: generator, model: model}
}

const auditInstructions = `You are a contract risk auditor. Analyze the following contract text and return a JSON list of risky clauses.

For each finding, return:
- finding_type: short label (e.g., "Auto-renewal", "Unlimited liability")
- title: human-readable title
- description: why this is risky
- severity: one of [low, medium, high, critical]
- risk_score: number 0-10
- evidence_text: exact span of text that triggered this
- page_number: page number where evidence occurs
- char_start: character start position in that page
- char_end: character end position in that page
- recommendation: how to mitigate
- compliance_impact: potential legal/operational impact

Output only a valid JSON array of objects.`

type rawFinding struct {
	FindingType      string          `json:"finding_type"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Severity         string          `json:"severity"`
	RiskScore        json.RawMessage `json:"risk_score"`
	EvidenceText     string          `json:"evidence_text"`
	PageNumber       int             `json:"page_number"`
	CharStart        *int            `json:"char_start"`
	CharEnd          *int            `json:"char_end"`
	Recommendation   string          `json:"recommendation"`
	ComplianceImpact string          `json:"compliance_impact"`
}

// Audit replaces the stored findings of the document with a fresh run.
// A document without any page text yields no findings.
func (a *Auditor) Audit(ctx context.Context, documentID string) ([]models.AuditFinding, error) {
	if _, err := a.pages.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}

	pages, err := a.pages.GetPages(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, models.ErrNotProcessed
	}

	var blocks []string
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[PAGE %d]\n%s", p.PageNumber, p.Text))
	}

	findings := []models.AuditFinding{}
	if len(blocks) > 0 {
		prompt := auditInstructions + "\n\nContract content:\n" + strings.Join(blocks, "\n\n")
		raw, err := a.generator.GenerateJSON(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrGeneration, err)
		}
		findings = a.normalize(documentID, parseRawFindings(raw), pages)
	}

	if err := a.store.ReplaceAuditFindings(ctx, documentID, findings); err != nil {
		return nil, err
	}
	return findings, nil
}

// parseRawFindings accepts a bare array or an object wrapping one under "findings"
func parseRawFindings(raw string) []rawFinding {
	raw = strings.TrimSpace(raw)

	var list []rawFinding
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}

	var wrapped struct {
		Findings []rawFinding `json:"findings"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil {
		return wrapped.Findings
	}

	logger.Warn("Unparsable audit output", "raw", truncateRunes(raw, 500))
	return nil
}

func (a *Auditor) normalize(documentID string, raws []rawFinding, pages []models.Page) []models.AuditFinding {
	pageText := make(map[int]string, len(pages))
	for _, p := range pages {
		pageText[p.PageNumber] = p.Text
	}

	now := time.Now()
	out := make([]models.AuditFinding, 0, len(raws))
	for _, r := range raws {
		pageNumber := r.PageNumber
		if _, ok := pageText[pageNumber]; !ok {
			pageNumber = pages[0].PageNumber
		}
		start, end := anchorEvidence(pageText[pageNumber], r.EvidenceText, r.CharStart, r.CharEnd)

		out = append(out, models.AuditFinding{
			ID:               uuid.New().String(),
			DocumentID:       documentID,
			FindingType:      r.FindingType,
			Title:            r.Title,
			Description:      r.Description,
			Severity:         normalizeSeverity(r.Severity),
			RiskScore:        riskScore(r.RiskScore),
			EvidenceText:     r.EvidenceText,
			PageNumber:       pageNumber,
			CharStart:        start,
			CharEnd:          end,
			Recommendation:   r.Recommendation,
			ComplianceImpact: r.ComplianceImpact,
			DetectionModel:   a.model,
			DetectedAt:       now,
		})
	}
	return out
}

func normalizeSeverity(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		return s
	default:
		return models.SeverityMedium
	}
}

// riskScore reads a number or numeric string, defaults to 5 and clamps to 0-10
func riskScore(raw json.RawMessage) float64 {
	score := 5.0
	if len(raw) > 0 {
		var f float64
		var s string
		if err := json.Unmarshal(raw, &f); err == nil {
			score = f
		} else if err := json.Unmarshal(raw, &s); err == nil {
			if v := numberValue(s); v != nil {
				score = *v
			}
		}
	}
	return min(max(score, 0), 10)
}

// anchorEvidence returns character offsets of the evidence inside the page.
// Reported offsets are kept when they fit the page; otherwise the evidence
// is searched for in the page text. The result is always within the page.
func anchorEvidence(page, evidence string, start, end *int) (int, int) {
	length := utf8.RuneCountInString(page)
	evidenceLen := utf8.RuneCountInString(evidence)

	if start != nil && *start >= 0 && *start <= length {
		s := *start
		e := s + evidenceLen
		if end != nil {
			e = *end
		}
		if e >= s {
			return s, min(e, length)
		}
	}

	if evidence != "" {
		if idx := strings.Index(page, evidence); idx >= 0 {
			s := utf8.RuneCountInString(page[:idx])
			return s, s + evidenceLen
		}
	}

	return 0, min(evidenceLen, length)
}
