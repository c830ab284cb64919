package services

import (
	"fmt"
	"strings"
	"time"

	"contract-qa-platform/models"

	"github.com/xuri/excelize/v2"
)

const (
	fieldsSheet   = "Fields"
	findingsSheet = "Findings"
)

// ExportDocumentReport builds a workbook with the extracted fields and the
// audit findings of one document. fields may be nil when extraction has not
// run yet. The caller closes the file.
func ExportDocumentReport(doc *models.Document, fields *models.ExtractedFields, findings []models.AuditFinding) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", fieldsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(findingsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeRows(f, fieldsSheet, [][]any{{"Field", "Value"}}, fieldRows(doc, fields)); err != nil {
		f.Close()
		return nil, err
	}
	f.SetCellStyle(fieldsSheet, "A1", "B1", headerStyle)
	f.SetColWidth(fieldsSheet, "A", "A", 24)
	f.SetColWidth(fieldsSheet, "B", "B", 80)

	findingHeaders := [][]any{{
		"Severity", "Risk Score", "Type", "Title", "Description", "Page",
		"Char Start", "Char End", "Evidence", "Recommendation", "Compliance Impact",
	}}
	var rows [][]any
	for _, fd := range findings {
		rows = append(rows, []any{
			fd.Severity, fd.RiskScore, fd.FindingType, fd.Title, fd.Description, fd.PageNumber,
			fd.CharStart, fd.CharEnd, fd.EvidenceText, fd.Recommendation, fd.ComplianceImpact,
		})
	}
	if err := writeRows(f, findingsSheet, findingHeaders, rows); err != nil {
		f.Close()
		return nil, err
	}
	f.SetCellStyle(findingsSheet, "A1", "K1", headerStyle)

	f.SetActiveSheet(0)
	return f, nil
}

func writeRows(f *excelize.File, sheet string, header, rows [][]any) error {
	for i, row := range append(header, rows...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func fieldRows(doc *models.Document, fields *models.ExtractedFields) [][]any {
	rows := [][]any{
		{"Document ID", doc.ID},
		{"Filename", doc.Filename},
		{"Pages", doc.PageCount},
		{"Status", doc.Status},
	}
	if fields == nil {
		return append(rows, []any{"Extraction", "not run"})
	}

	rows = append(rows,
		[]any{"Parties", strings.Join(fields.Parties, "; ")},
		[]any{"Effective Date", formatDate(fields.EffectiveDate)},
		[]any{"Term", deref(fields.Term)},
		[]any{"Governing Law", deref(fields.GoverningLaw)},
		[]any{"Payment Terms", deref(fields.PaymentTerms)},
		[]any{"Termination", deref(fields.Termination)},
		[]any{"Auto Renewal", formatBool(fields.AutoRenewal)},
		[]any{"Confidentiality", deref(fields.Confidentiality)},
		[]any{"Indemnity", deref(fields.Indemnity)},
		[]any{"Liability Cap", formatAmount(fields.LiabilityCap, fields.LiabilityCapCurrency)},
		[]any{"Signatories", formatSignatories(fields.Signatories)},
		[]any{"Contract Type", deref(fields.ContractType)},
		[]any{"Total Value", formatAmount(fields.TotalValue, fields.ValueCurrency)},
		[]any{"Extraction Model", fields.ExtractionModel},
		[]any{"Extracted At", fields.ExtractedAt.Format(time.RFC3339)},
	)
	return rows
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatBool(b *bool) string {
	if b == nil {
		return ""
	}
	if *b {
		return "yes"
	}
	return "no"
}

func formatAmount(v *float64, currency *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%.2f %s", *v, deref(currency)))
}

func formatSignatories(sigs []models.Signatory) string {
	parts := make([]string, 0, len(sigs))
	for _, s := range sigs {
		part := s.Name
		if s.Title != "" {
			part += ", " + s.Title
		}
		if s.Date != "" {
			part += " (" + s.Date + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}
