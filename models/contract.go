package models

import "time"

// ExtractedFields stores structured fields extracted from a contract
type ExtractedFields struct {
	DocumentID           string      `bson:"document_id" json:"document_id"`
	Parties              []string    `bson:"parties" json:"parties"`
	EffectiveDate        *time.Time  `bson:"effective_date,omitempty" json:"effective_date,omitempty"`
	Term                 *string     `bson:"term,omitempty" json:"term"`
	Termination          *string     `bson:"termination,omitempty" json:"termination"`
	TerminationDate      *time.Time  `bson:"termination_date,omitempty" json:"termination_date,omitempty"`
	GoverningLaw         *string     `bson:"governing_law,omitempty" json:"governing_law"`
	PaymentTerms         *string     `bson:"payment_terms,omitempty" json:"payment_terms"`
	AutoRenewal          *bool       `bson:"auto_renewal,omitempty" json:"auto_renewal"`
	Confidentiality      *string     `bson:"confidentiality,omitempty" json:"confidentiality"`
	Indemnity            *string     `bson:"indemnity,omitempty" json:"indemnity"`
	LiabilityCap         *float64    `bson:"liability_cap,omitempty" json:"liability_cap"`
	LiabilityCapCurrency *string     `bson:"liability_cap_currency,omitempty" json:"liability_cap_currency"`
	Signatories          []Signatory `bson:"signatories" json:"signatories"`
	ContractType         *string     `bson:"contract_type,omitempty" json:"contract_type"`
	TotalValue           *float64    `bson:"total_value,omitempty" json:"total_value"`
	ValueCurrency        *string     `bson:"value_currency,omitempty" json:"value_currency"`
	ExtractionModel      string      `bson:"extraction_model" json:"extraction_model"`
	ExtractedAt          time.Time   `bson:"extracted_at" json:"extracted_at"`
}

// Signatory is a person who signed the contract
type Signatory struct {
	Name  string `bson:"name" json:"name"`
	Title string `bson:"title,omitempty" json:"title,omitempty"`
	Date  string `bson:"date,omitempty" json:"date,omitempty"`
}

// AuditFinding is a risky clause detected in a contract, pointing at the
// page text span that triggered it
type AuditFinding struct {
	ID               string    `bson:"_id" json:"id"`
	DocumentID       string    `bson:"document_id" json:"document_id"`
	FindingType      string    `bson:"finding_type" json:"finding_type"`
	Title            string    `bson:"title" json:"title"`
	Description      string    `bson:"description" json:"description"`
	Severity         string    `bson:"severity" json:"severity"`
	RiskScore        float64   `bson:"risk_score" json:"risk_score"` // 0-10
	EvidenceText     string    `bson:"evidence_text" json:"evidence_text"`
	PageNumber       int       `bson:"page_number" json:"page_number"`
	CharStart        int       `bson:"char_start" json:"char_start"`
	CharEnd          int       `bson:"char_end" json:"char_end"`
	Recommendation   string    `bson:"recommendation,omitempty" json:"recommendation,omitempty"`
	ComplianceImpact string    `bson:"compliance_impact,omitempty" json:"compliance_impact,omitempty"`
	DetectionModel   string    `bson:"detection_model" json:"detection_model"`
	DetectedAt       time.Time `bson:"detected_at" json:"detected_at"`
}

// Finding severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)
