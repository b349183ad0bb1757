package api

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"invoicematch/internal/config"
	"invoicematch/internal/util"
	"invoicematch/internal/workflows"
)

// ErrAlreadyEnqueued is returned when a transaction already has a running
// or completed execution.
var ErrAlreadyEnqueued = errors.New("transaction already enqueued")

// TemporalWorkflows starts and queries InvoiceProcessWorkflow executions.
type TemporalWorkflows struct {
	client    tclient.Client
	taskQueue string
	pipeline  config.PipelineConfig
}

func NewTemporalWorkflows(c tclient.Client, cfg config.Config) *TemporalWorkflows {
	return &TemporalWorkflows{client: c, taskQueue: cfg.Temporal.TaskQueue, pipeline: cfg.Pipeline}
}

// Start enqueues a transaction. A failed execution may be retried under the
// same id; anything else already holding the id is a conflict.
func (t *TemporalWorkflows) Start(ctx context.Context, transactionID, documentID string) (string, error) {
	p := t.pipeline
	run, err := t.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       workflows.WorkflowID(transactionID),
		TaskQueue:                                t.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    p.InitialBackoff,
			BackoffCoefficient: p.BackoffCoefficient,
			MaximumAttempts:    int32(p.MaxAttempts),
			NonRetryableErrorTypes: []string{
				string(util.KindInput),
			},
		},
	}, workflows.InvoiceProcessWorkflow, workflows.InvoiceProcessInput{
		TransactionID:   transactionID,
		DocumentID:      documentID,
		Poll:            workflows.PollPolicy{Interval: p.PollInterval, Timeout: p.PollTimeout},
		ActivityTimeout: p.ActivityStartToClose,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyEnqueued, transactionID)
		}
		return "", fmt.Errorf("start workflow: %w", err)
	}
	return run.GetRunID(), nil
}

func (t *TemporalWorkflows) Status(ctx context.Context, transactionID string) (workflows.InvoiceStatus, error) {
	var st workflows.InvoiceStatus
	resp, err := t.client.QueryWorkflow(ctx, workflows.WorkflowID(transactionID), "", workflows.QueryGetInvoiceStatus)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return st, fmt.Errorf("%w: transaction %s", util.ErrNotFound, transactionID)
		}
		return st, fmt.Errorf("query workflow: %w", err)
	}
	if err := resp.Get(&st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}
