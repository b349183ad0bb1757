package models

import (
	"encoding/json"
	"time"
)

// Pipeline states. ENQUEUED is assigned on submission; COMPLETE, DUPLICATE
// and ERROR are terminal.
const (
	StateEnqueued   = "ENQUEUED"
	StateExtracting = "EXTRACTING"
	StateMatching   = "MATCHING"
	StateRedacting  = "REDACTING"
	StateComplete   = "COMPLETE"
	StateDuplicate  = "DUPLICATE"
	StateError      = "ERROR"
)

// Audit actions beyond the terminal states.
const (
	ActionUploadError = "ERROR_DMS_UPLOAD"
	ActionExport      = "EXPORT"
)

func IsTerminal(state string) bool {
	return state == StateComplete || state == StateDuplicate || state == StateError
}

type ProcessedInvoice struct {
	TransactionID     string    `json:"transaction_id"`
	InvoiceNumber     string    `json:"invoice_number,omitempty"`
	InvoiceDate       string    `json:"invoice_date,omitempty"`
	SenderBankAccount string    `json:"sender_bank_account,omitempty"`
	TaxID             string    `json:"tax_id,omitempty"`
	DocumentID        string    `json:"document_id"`
	ExtractionJobID   string    `json:"extraction_job_id,omitempty"`
	ProcessedAt       time.Time `json:"processed_at"`
}

type LineItemScore struct {
	TransactionID       string  `json:"transaction_id"`
	PositionIndex       int     `json:"position_index"`
	PageIndex           int     `json:"page_index"`
	CatalogID           string  `json:"catalog_id"`
	MerchantDescription string  `json:"merchant_description"`
	MatchedText         string  `json:"matched_text"`
	Score               float64 `json:"score"`
	Valid               bool    `json:"valid"`
}

// AuditEvent is one row of the append-only pipeline log.
type AuditEvent struct {
	EventID            string          `json:"event_id"`
	TransactionID      string          `json:"transaction_id"`
	Action             string          `json:"action"`
	InvoiceNumber      string          `json:"invoice_number,omitempty"`
	DocumentID         string          `json:"document_id,omitempty"`
	RedactedDocumentID string          `json:"redacted_document_id,omitempty"`
	Payload            json.RawMessage `json:"payload,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}
