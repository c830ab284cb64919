package services

import (
	"context"
	"encoding/json"
	"testing"

	"contract-qa-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func auditFixture() *fakeStore {
	store := newFakeStore()
	store.docs["doc-1"] = &models.Document{ID: "doc-1"}
	store.pages["doc-1"] = []models.Page{
		{PageNumber: 1, Text: "This agreement renews automatically for successive one year terms."},
		{PageNumber: 2, Text: "   "},
		{PageNumber: 3, Text: "Supplier liability shall be unlimited."},
	}
	return store
}

func TestAuditorAudit(t *testing.T) {
	store := auditFixture()
	gen := &fakeJSONGenerator{response: `[
		{"finding_type": "Auto-renewal", "title": "Silent renewal", "severity": "HIGH", "risk_score": 7.5,
		 "evidence_text": "renews automatically", "page_number": 1, "char_start": 15, "char_end": 35},
		{"finding_type": "Unlimited liability", "severity": "severe", "risk_score": "12",
		 "evidence_text": "liability shall be unlimited", "page_number": 3}
	]`}

	a := NewAuditor(store, store, gen, "gemini-1.5-flash")
	findings, err := a.Audit(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.True(t, store.replaced)
	assert.Equal(t, findings, store.findings)

	first := findings[0]
	assert.Equal(t, models.SeverityHigh, first.Severity)
	assert.Equal(t, 7.5, first.RiskScore)
	assert.Equal(t, 1, first.PageNumber)
	assert.Equal(t, 15, first.CharStart)
	assert.Equal(t, 35, first.CharEnd)
	assert.Equal(t, "doc-1", first.DocumentID)
	assert.Equal(t, "gemini-1.5-flash", first.DetectionModel)
	assert.NotEmpty(t, first.ID)

	second := findings[1]
	assert.Equal(t, models.SeverityMedium, second.Severity)
	assert.Equal(t, 10.0, second.RiskScore)
	assert.Equal(t, 3, second.PageNumber)
	assert.Equal(t, 9, second.CharStart)
	assert.Equal(t, 37, second.CharEnd)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "[PAGE 1]\nThis agreement renews")
	assert.Contains(t, gen.prompts[0], "[PAGE 3]\nSupplier liability")
	assert.NotContains(t, gen.prompts[0], "[PAGE 2]")
}

func TestAuditorWrappedAndUnparsableOutput(t *testing.T) {
	store := auditFixture()
	a := NewAuditor(store, store, &fakeJSONGenerator{response: `{"findings": [{"title": "x"}]}`}, "m")

	findings, err := a.Audit(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 5.0, findings[0].RiskScore)

	a = NewAuditor(store, store, &fakeJSONGenerator{response: "no risks here"}, "m")
	findings, err = a.Audit(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.True(t, store.replaced)
}

func TestAuditorWithoutPageText(t *testing.T) {
	store := newFakeStore()
	store.docs["blank"] = &models.Document{ID: "blank"}
	store.pages["blank"] = []models.Page{{PageNumber: 1, Text: ""}}
	gen := &fakeJSONGenerator{}

	findings, err := NewAuditor(store, store, gen, "m").Audit(context.Background(), "blank")
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Empty(t, gen.prompts)
}

func TestAuditorErrors(t *testing.T) {
	store := auditFixture()
	store.docs["empty"] = &models.Document{ID: "empty"}

	_, err := NewAuditor(store, store, &fakeJSONGenerator{}, "m").Audit(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = NewAuditor(store, store, &fakeJSONGenerator{}, "m").Audit(context.Background(), "empty")
	assert.ErrorIs(t, err, models.ErrNotProcessed)

	_, err = NewAuditor(store, store, &fakeJSONGenerator{err: errModel}, "m").Audit(context.Background(), "doc-1")
	assert.ErrorIs(t, err, models.ErrGeneration)
	assert.False(t, store.replaced)
}

func TestAnchorEvidence(t *testing.T) {
	page := "Größe clause: payment is due."

	s, e := anchorEvidence(page, "payment", intPtr(14), intPtr(21))
	assert.Equal(t, [2]int{14, 21}, [2]int{s, e})

	s, e = anchorEvidence(page, "payment", nil, nil)
	assert.Equal(t, [2]int{14, 21}, [2]int{s, e}, "found by rune offset")

	s, e = anchorEvidence(page, "payment", intPtr(500), intPtr(600))
	assert.Equal(t, [2]int{14, 21}, [2]int{s, e}, "out of range offsets fall back to search")

	s, e = anchorEvidence(page, "payment", intPtr(20), intPtr(900))
	assert.Equal(t, [2]int{20, 29}, [2]int{s, e}, "end clamped to page length")

	s, e = anchorEvidence("short", "not present in page at all", nil, nil)
	assert.Equal(t, [2]int{0, 5}, [2]int{s, e})
}

func TestRiskScoreAndSeverity(t *testing.T) {
	assert.Equal(t, 5.0, riskScore(nil))
	assert.Equal(t, 0.0, riskScore(json.RawMessage(`-3`)))
	assert.Equal(t, 4.5, riskScore(json.RawMessage(`"4.5"`)))
	assert.Equal(t, 5.0, riskScore(json.RawMessage(`"n/a"`)))

	assert.Equal(t, models.SeverityCritical, normalizeSeverity(" Critical "))
	assert.Equal(t, models.SeverityMedium, normalizeSeverity(""))
}
