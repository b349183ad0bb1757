package workflows

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"invoicematch/internal/activities"
	"invoicematch/internal/extraction"
	"invoicematch/internal/models"
	"invoicematch/internal/util"
)

const QueryGetInvoiceStatus = "GetInvoiceStatus"

const (
	stepExtract        = "extract"
	stepDuplicateCheck = "duplicate_check"
	stepReserve        = "reserve"
	stepMatch          = "match"
	stepPersistScores  = "persist_scores"
	stepRedact         = "redact"
)

// InvoiceProcessWorkflow runs one invoice transaction through extraction,
// duplicate detection, matching and redaction. It returns the terminal
// state; a failed step is audited and returned as the workflow error so the
// execution's retry policy decides what happens next.
func InvoiceProcessWorkflow(ctx workflow.Context, input InvoiceProcessInput) (string, error) {
	status := InvoiceStatus{
		TransactionID: input.TransactionID,
		State:         models.StateEnqueued,
		Steps:         map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetInvoiceStatus, func() (InvoiceStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	timeout := input.ActivityTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				string(util.KindInput),
			},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)
	poll := input.Poll.withDefaults()
	var invoiceNumber string

	begin := func(step string) {
		status.Steps[step] = "processing"
	}
	done := func(step string) {
		status.Steps[step] = "done"
	}
	fail := func(step string, err error) (string, error) {
		status.State = models.StateError
		status.FailReason = err.Error()
		status.Steps[step] = "failed"
		logger.Error("invoice processing failed", "transaction_id", input.TransactionID, "step", step, "error", err)
		writeAudit(ctx, models.AuditEvent{
			TransactionID: input.TransactionID,
			Action:        models.StateError,
			InvoiceNumber: invoiceNumber,
			DocumentID:    input.DocumentID,
			Payload: auditPayload(map[string]any{
				"step":  step,
				"kind":  string(util.Classify(err)),
				"error": err.Error(),
			}),
		})
		return "", err
	}
	duplicate := func(step, holder string) (string, error) {
		status.State = models.StateDuplicate
		status.DuplicateOf = holder
		status.Steps[step] = "duplicate"
		logger.Warn("duplicate invoice", "transaction_id", input.TransactionID, "duplicate_of", holder)
		writeAudit(ctx, models.AuditEvent{
			TransactionID: input.TransactionID,
			Action:        models.StateDuplicate,
			InvoiceNumber: invoiceNumber,
			DocumentID:    input.DocumentID,
			Payload:       auditPayload(map[string]any{"reason": "duplicate", "duplicate_of": holder}),
		})
		return models.StateDuplicate, nil
	}

	if input.TransactionID == "" || input.DocumentID == "" {
		return fail(stepExtract, temporal.NewNonRetryableApplicationError(
			"transaction id and document id are required", string(util.KindInput), nil))
	}

	// EXTRACTING
	status.State = models.StateExtracting
	begin(stepExtract)
	var submitOut activities.SubmitExtractionOutput
	if err := workflow.ExecuteActivity(ctx, "SubmitExtractionActivity", activities.SubmitExtractionInput{
		TransactionID: input.TransactionID,
		DocumentID:    input.DocumentID,
	}).Get(ctx, &submitOut); err != nil {
		return fail(stepExtract, err)
	}
	status.ExtractionJobID = submitOut.JobID

	result, err := awaitExtraction(ctx, input.TransactionID, submitOut.JobID, poll)
	if err != nil {
		return fail(stepExtract, err)
	}
	done(stepExtract)
	header := result.Header
	invoiceNumber = header.DocumentNumber

	begin(stepDuplicateCheck)
	var dupOut activities.CheckDuplicateOutput
	if err := workflow.ExecuteActivity(ctx, "CheckDuplicateActivity", activities.CheckDuplicateInput{
		TransactionID: input.TransactionID,
		Header:        header,
	}).Get(ctx, &dupOut); err != nil {
		return fail(stepDuplicateCheck, err)
	}
	switch {
	case dupOut.Duplicate:
		return duplicate(stepDuplicateCheck, dupOut.DuplicateOf)
	case dupOut.Skipped:
		status.Steps[stepDuplicateCheck] = "skipped"
	default:
		done(stepDuplicateCheck)
	}

	// MATCHING
	status.State = models.StateMatching
	begin(stepReserve)
	var reserveOut activities.ReserveInvoiceOutput
	if err := workflow.ExecuteActivity(ctx, "ReserveInvoiceActivity", activities.ReserveInvoiceInput{
		TransactionID:   input.TransactionID,
		DocumentID:      input.DocumentID,
		ExtractionJobID: submitOut.JobID,
		Header:          header,
	}).Get(ctx, &reserveOut); err != nil {
		return fail(stepReserve, err)
	}
	if reserveOut.Duplicate {
		return duplicate(stepReserve, reserveOut.DuplicateOf)
	}
	done(stepReserve)

	begin(stepMatch)
	var matchOut activities.MatchLineItemsOutput
	if err := workflow.ExecuteActivity(ctx, "MatchLineItemsActivity", activities.MatchLineItemsInput{
		TransactionID: input.TransactionID,
		Lines:         result.Lines(),
	}).Get(ctx, &matchOut); err != nil {
		return fail(stepMatch, err)
	}
	status.LineItems = len(matchOut.Items)
	done(stepMatch)

	begin(stepPersistScores)
	if err := workflow.ExecuteActivity(ctx, "PersistScoresActivity", activities.PersistScoresInput{
		TransactionID: input.TransactionID,
		Items:         matchOut.Items,
	}).Get(ctx, nil); err != nil {
		return fail(stepPersistScores, err)
	}
	done(stepPersistScores)

	// REDACTING
	status.State = models.StateRedacting
	begin(stepRedact)
	var redactOut activities.RedactDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "RedactDocumentActivity", activities.RedactDocumentInput{
		TransactionID: input.TransactionID,
		DocumentID:    input.DocumentID,
		Items:         matchOut.Items,
	}).Get(ctx, &redactOut); err != nil {
		return fail(stepRedact, err)
	}
	status.RedactedDocumentID = redactOut.RedactedDocumentID
	done(stepRedact)

	status.State = models.StateComplete
	writeAudit(ctx, models.AuditEvent{
		TransactionID:      input.TransactionID,
		Action:             models.StateComplete,
		InvoiceNumber:      invoiceNumber,
		DocumentID:         input.DocumentID,
		RedactedDocumentID: redactOut.RedactedDocumentID,
		Payload: auditPayload(map[string]any{
			"line_items": len(matchOut.Items),
			"regions":    redactOut.Regions,
		}),
	})
	logger.Info("invoice processed", "transaction_id", input.TransactionID, "line_items", len(matchOut.Items))
	return models.StateComplete, nil
}

// awaitExtraction polls until the job reaches a terminal status. The wait is
// a durable timer, so cancelling the workflow ends it and tests can skip it.
func awaitExtraction(ctx workflow.Context, transactionID, jobID string, poll PollPolicy) (extraction.Result, error) {
	deadline := workflow.Now(ctx).Add(poll.Timeout)
	for {
		var out activities.PollExtractionOutput
		if err := workflow.ExecuteActivity(ctx, "PollExtractionActivity", activities.PollExtractionInput{
			TransactionID: transactionID,
			JobID:         jobID,
		}).Get(ctx, &out); err != nil {
			return extraction.Result{}, err
		}
		switch extraction.Status(out.Status) {
		case extraction.StatusDone:
			if out.Result == nil {
				return extraction.Result{}, nil
			}
			return *out.Result, nil
		case extraction.StatusFailed:
			return extraction.Result{}, temporal.NewApplicationError(
				fmt.Sprintf("%s: job %s: %s", util.ErrExtractionFailed, jobID, out.Reason), string(util.KindExtraction))
		}
		if workflow.Now(ctx).Add(poll.Interval).After(deadline) {
			return extraction.Result{}, temporal.NewApplicationError(
				fmt.Sprintf("%s: job %s after %s", util.ErrExtractionTimeout, jobID, poll.Timeout), string(util.KindExtraction))
		}
		if err := workflow.Sleep(ctx, poll.Interval); err != nil {
			return extraction.Result{}, err
		}
	}
}

// writeAudit appends a terminal event. It runs on a disconnected context so
// a cancelled execution still records why it stopped, and a failed write is
// logged without changing the outcome.
func writeAudit(ctx workflow.Context, ev models.AuditEvent) {
	info := workflow.GetInfo(ctx)
	ev.EventID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(info.WorkflowExecution.RunID+"/"+ev.Action)).String()

	auditCtx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()
	if err := workflow.ExecuteActivity(auditCtx, "WriteAuditActivity", activities.WriteAuditInput{Event: ev}).Get(auditCtx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("audit write failed", "transaction_id", ev.TransactionID, "action", ev.Action, "error", err)
	}
}

func auditPayload(v map[string]any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
