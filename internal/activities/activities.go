package activities

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"invoicematch/internal/documents"
	"invoicematch/internal/extraction"
	"invoicematch/internal/index"
	"invoicematch/internal/matching"
	"invoicematch/internal/metrics"
	"invoicematch/internal/models"
	"invoicematch/internal/redaction"
	"invoicematch/internal/util"
)

type Extractor interface {
	Submit(ctx context.Context, documentID string) (string, error)
	Poll(ctx context.Context, jobID string) (extraction.PollResult, error)
}

type DocumentStore interface {
	Store(ctx context.Context, content []byte, meta documents.Metadata) (string, error)
	Fetch(ctx context.Context, documentID string) ([]byte, error)
}

type InvoiceStore interface {
	FindDuplicate(ctx context.Context, inv models.ProcessedInvoice) (string, bool, error)
	Reserve(ctx context.Context, inv models.ProcessedInvoice) (string, error)
}

type ScoreStore interface {
	ReplaceScores(ctx context.Context, transactionID string, scores []models.LineItemScore) error
}

type AuditLog interface {
	Append(ctx context.Context, ev models.AuditEvent) error
}

// SnapshotSource returns the catalog index to match against. Each call may
// return a newer snapshot; one activity uses a single snapshot throughout.
type SnapshotSource interface {
	Current(ctx context.Context) (*index.Snapshot, error)
}

type Deps struct {
	Extractor Extractor
	Documents DocumentStore
	Invoices  InvoiceStore
	Scores    ScoreStore
	Audit     AuditLog
	Snapshots SnapshotSource
}

type Activities struct {
	cfg matching.Config
	Deps
	log *zap.Logger
}

func New(cfg matching.Config, deps Deps, log *zap.Logger) *Activities {
	return &Activities{cfg: cfg, Deps: deps, log: log.Named("activities")}
}

func (a *Activities) SubmitExtractionActivity(ctx context.Context, in SubmitExtractionInput) (SubmitExtractionOutput, error) {
	jobID, err := a.Extractor.Submit(ctx, in.DocumentID)
	if err != nil {
		return SubmitExtractionOutput{}, util.AsApplicationError(err)
	}
	a.log.Info("extraction submitted", zap.String("transaction_id", in.TransactionID), zap.String("job_id", jobID))
	return SubmitExtractionOutput{JobID: jobID}, nil
}

// PollExtractionActivity observes the job once. The wait between polls is
// owned by the workflow.
func (a *Activities) PollExtractionActivity(ctx context.Context, in PollExtractionInput) (PollExtractionOutput, error) {
	res, err := a.Extractor.Poll(ctx, in.JobID)
	if err != nil {
		metrics.ExtractionPollsTotal.WithLabelValues("error").Inc()
		return PollExtractionOutput{}, util.AsApplicationError(err)
	}
	metrics.ExtractionPollsTotal.WithLabelValues(string(res.Status)).Inc()
	return PollExtractionOutput{Status: string(res.Status), Result: res.Result, Reason: res.Reason}, nil
}

func invoiceFor(transactionID, documentID, jobID string, h extraction.Header) models.ProcessedInvoice {
	return models.ProcessedInvoice{
		TransactionID:     transactionID,
		InvoiceNumber:     h.DocumentNumber,
		InvoiceDate:       h.DocumentDate,
		SenderBankAccount: h.SenderBankAccount,
		TaxID:             h.TaxID,
		DocumentID:        documentID,
		ExtractionJobID:   jobID,
	}
}

// CheckDuplicateActivity skips the lookup unless all four key fields are
// present.
func (a *Activities) CheckDuplicateActivity(ctx context.Context, in CheckDuplicateInput) (CheckDuplicateOutput, error) {
	if !in.Header.Complete() {
		return CheckDuplicateOutput{Skipped: true}, nil
	}
	holder, found, err := a.Invoices.FindDuplicate(ctx, invoiceFor(in.TransactionID, "", "", in.Header))
	if err != nil {
		return CheckDuplicateOutput{}, util.AsApplicationError(err)
	}
	if found {
		a.log.Warn("duplicate invoice detected",
			zap.String("transaction_id", in.TransactionID),
			zap.String("invoice_number", in.Header.DocumentNumber),
			zap.String("duplicate_of", holder))
	}
	return CheckDuplicateOutput{Duplicate: found, DuplicateOf: holder}, nil
}

func (a *Activities) ReserveInvoiceActivity(ctx context.Context, in ReserveInvoiceInput) (ReserveInvoiceOutput, error) {
	holder, err := a.Invoices.Reserve(ctx, invoiceFor(in.TransactionID, in.DocumentID, in.ExtractionJobID, in.Header))
	if err != nil {
		return ReserveInvoiceOutput{}, util.AsApplicationError(err)
	}
	if holder != "" {
		a.log.Warn("reservation lost to concurrent transaction",
			zap.String("transaction_id", in.TransactionID),
			zap.String("duplicate_of", holder))
		return ReserveInvoiceOutput{Duplicate: true, DuplicateOf: holder}, nil
	}
	return ReserveInvoiceOutput{}, nil
}

func (a *Activities) MatchLineItemsActivity(ctx context.Context, in MatchLineItemsInput) (MatchLineItemsOutput, error) {
	snap, err := a.Snapshots.Current(ctx)
	if err != nil {
		return MatchLineItemsOutput{}, util.AsApplicationError(fmt.Errorf("load catalog snapshot: %w", err))
	}
	items := make([]MatchedLine, 0, len(in.Lines))
	for _, line := range in.Lines {
		outcome := matching.Match(snap, line.Description, a.cfg)
		valid := outcome.Valid(a.cfg)
		items = append(items, MatchedLine{Line: line, Outcome: outcome, Valid: valid})

		switch {
		case outcome.IsNone():
			metrics.LineItemsTotal.WithLabelValues("none").Inc()
		case valid:
			metrics.LineItemsTotal.WithLabelValues("matched").Inc()
		default:
			metrics.LineItemsTotal.WithLabelValues("below_acceptance").Inc()
		}
		if !outcome.IsNone() {
			metrics.MatchConfidence.Observe(outcome.Confidence)
		}
	}
	a.log.Info("line items matched",
		zap.String("transaction_id", in.TransactionID),
		zap.Int("items", len(items)),
		zap.Int("catalog_size", snap.Len()))
	return MatchLineItemsOutput{Items: items}, nil
}

func (a *Activities) PersistScoresActivity(ctx context.Context, in PersistScoresInput) error {
	scores := make([]models.LineItemScore, 0, len(in.Items))
	for _, it := range in.Items {
		scores = append(scores, it.Score(in.TransactionID))
	}
	if err := a.Scores.ReplaceScores(ctx, in.TransactionID, scores); err != nil {
		return util.AsApplicationError(err)
	}
	return nil
}

// RedactDocumentActivity masks every item that needs redaction and stores
// the result as a new document.
func (a *Activities) RedactDocumentActivity(ctx context.Context, in RedactDocumentInput) (RedactDocumentOutput, error) {
	original, err := a.Documents.Fetch(ctx, in.DocumentID)
	if err != nil {
		return RedactDocumentOutput{}, util.AsApplicationError(err)
	}
	pages, err := redaction.PageSizes(original)
	if err != nil {
		return RedactDocumentOutput{}, util.AsApplicationError(err)
	}
	items := make([]redaction.Item, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, it.RedactionItem())
	}
	regions := redaction.Plan(items, a.cfg.AcceptanceThreshold, pages)

	redacted, err := redaction.Apply(original, regions)
	if err != nil {
		return RedactDocumentOutput{}, util.AsApplicationError(err)
	}
	id, err := a.Documents.Store(ctx, redacted, documents.Metadata{FileName: "redacted_" + in.TransactionID + ".pdf"})
	if err != nil {
		return RedactDocumentOutput{}, util.AsApplicationError(err)
	}
	metrics.RedactionRegionsTotal.Add(float64(len(regions)))
	a.log.Info("document redacted",
		zap.String("transaction_id", in.TransactionID),
		zap.Int("regions", len(regions)),
		zap.String("redacted_document_id", id))
	return RedactDocumentOutput{RedactedDocumentID: id, Regions: len(regions)}, nil
}

// WriteAuditActivity appends one event. Terminal events also count the job
// outcome.
func (a *Activities) WriteAuditActivity(ctx context.Context, in WriteAuditInput) error {
	if err := a.Audit.Append(ctx, in.Event); err != nil {
		metrics.AuditFailuresTotal.WithLabelValues(in.Event.Action).Inc()
		a.log.Error("audit write failed",
			zap.String("transaction_id", in.Event.TransactionID),
			zap.String("action", in.Event.Action),
			zap.Error(err))
		return util.AsApplicationError(err)
	}
	if models.IsTerminal(in.Event.Action) {
		metrics.JobsTotal.WithLabelValues(in.Event.Action).Inc()
	}
	return nil
}
