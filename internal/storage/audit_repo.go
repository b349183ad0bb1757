package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"invoicematch/internal/models"
)

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Append writes one audit event. Rows are never updated; an event id that
// already exists is ignored so a retried write stays single.
func (r *AuditRepo) Append(ctx context.Context, ev models.AuditEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	var payload any
	if len(ev.Payload) > 0 {
		payload = string(ev.Payload)
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO invoice_audit (event_id, transaction_id, action, invoice_number, document_id, redacted_document_id, payload)
VALUES ($1::uuid, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7::jsonb)
ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.TransactionID, ev.Action, ev.InvoiceNumber, ev.DocumentID, ev.RedactedDocumentID, payload)
	if err != nil {
		return fmt.Errorf("insert audit event %s/%s: %w", ev.TransactionID, ev.Action, err)
	}
	return nil
}

func (r *AuditRepo) ListByTransaction(ctx context.Context, transactionID string) ([]models.AuditEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT event_id::text, transaction_id, action, COALESCE(invoice_number,''), COALESCE(document_id,''),
       COALESCE(redacted_document_id,''), COALESCE(payload::text,''), created_at
FROM invoice_audit
WHERE transaction_id=$1
ORDER BY created_at ASC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	out := make([]models.AuditEvent, 0, 8)
	for rows.Next() {
		var ev models.AuditEvent
		var payload string
		if err := rows.Scan(&ev.EventID, &ev.TransactionID, &ev.Action, &ev.InvoiceNumber, &ev.DocumentID, &ev.RedactedDocumentID, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if payload != "" {
			ev.Payload = []byte(payload)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
