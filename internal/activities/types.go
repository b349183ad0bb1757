package activities

import (
	"invoicematch/internal/extraction"
	"invoicematch/internal/matching"
	"invoicematch/internal/models"
	"invoicematch/internal/redaction"
)

type SubmitExtractionInput struct {
	TransactionID string `json:"transaction_id"`
	DocumentID    string `json:"document_id"`
}

type SubmitExtractionOutput struct {
	JobID string `json:"job_id"`
}

type PollExtractionInput struct {
	TransactionID string `json:"transaction_id"`
	JobID         string `json:"job_id"`
}

type PollExtractionOutput struct {
	Status string             `json:"status"`
	Result *extraction.Result `json:"result,omitempty"`
	Reason string             `json:"reason,omitempty"`
}

type CheckDuplicateInput struct {
	TransactionID string            `json:"transaction_id"`
	Header        extraction.Header `json:"header"`
}

type CheckDuplicateOutput struct {
	Skipped     bool   `json:"skipped"`
	Duplicate   bool   `json:"duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

type ReserveInvoiceInput struct {
	TransactionID   string            `json:"transaction_id"`
	DocumentID      string            `json:"document_id"`
	ExtractionJobID string            `json:"extraction_job_id"`
	Header          extraction.Header `json:"header"`
}

type ReserveInvoiceOutput struct {
	Duplicate   bool   `json:"duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

type MatchLineItemsInput struct {
	TransactionID string            `json:"transaction_id"`
	Lines         []extraction.Line `json:"lines"`
}

// MatchedLine is a line item with its classification and the derived
// validity flag.
type MatchedLine struct {
	Line    extraction.Line  `json:"line"`
	Outcome matching.Outcome `json:"outcome"`
	Valid   bool             `json:"valid"`
}

func (m MatchedLine) RedactionItem() redaction.Item {
	return redaction.Item{
		CatalogID:  m.Outcome.CatalogID,
		Confidence: m.Outcome.Confidence,
		PageIndex:  m.Line.PageIndex,
		Box:        m.Line.Box,
	}
}

func (m MatchedLine) Score(transactionID string) models.LineItemScore {
	return models.LineItemScore{
		TransactionID:       transactionID,
		PositionIndex:       m.Line.Index,
		PageIndex:           m.Line.PageIndex,
		CatalogID:           m.Outcome.CatalogID,
		MerchantDescription: m.Line.Description,
		MatchedText:         m.Outcome.MatchedText,
		Score:               m.Outcome.Confidence,
		Valid:               m.Valid,
	}
}

type MatchLineItemsOutput struct {
	Items []MatchedLine `json:"items"`
}

type PersistScoresInput struct {
	TransactionID string        `json:"transaction_id"`
	Items         []MatchedLine `json:"items"`
}

type RedactDocumentInput struct {
	TransactionID string        `json:"transaction_id"`
	DocumentID    string        `json:"document_id"`
	Items         []MatchedLine `json:"items"`
}

type RedactDocumentOutput struct {
	RedactedDocumentID string `json:"redacted_document_id"`
	Regions            int    `json:"regions"`
}

type WriteAuditInput struct {
	Event models.AuditEvent `json:"event"`
}
