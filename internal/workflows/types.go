package workflows

import "time"

// PollPolicy bounds the wait for the extraction service. Zero values fall
// back to a 3s interval and a 10m timeout.
type PollPolicy struct {
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
}

func (p PollPolicy) withDefaults() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = 3 * time.Second
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Minute
	}
	return p
}

type InvoiceProcessInput struct {
	TransactionID   string        `json:"transaction_id"`
	DocumentID      string        `json:"document_id"`
	Poll            PollPolicy    `json:"poll"`
	ActivityTimeout time.Duration `json:"activity_timeout,omitempty"`
}

// WorkflowID is the execution id for a transaction; one live execution per
// transaction id.
func WorkflowID(transactionID string) string {
	return "invoice-" + transactionID
}

// InvoiceStatus is what GetInvoiceStatus returns.
type InvoiceStatus struct {
	TransactionID      string            `json:"transaction_id"`
	State              string            `json:"state"`
	Steps              map[string]string `json:"steps"`
	ExtractionJobID    string            `json:"extraction_job_id,omitempty"`
	DuplicateOf        string            `json:"duplicate_of,omitempty"`
	FailReason         string            `json:"fail_reason,omitempty"`
	LineItems          int               `json:"line_items"`
	RedactedDocumentID string            `json:"redacted_document_id,omitempty"`
}
