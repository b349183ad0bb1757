package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"invoicematch/internal/models"
	"invoicematch/internal/util"
)

type InvoiceRepo struct {
	db *DB
}

func NewInvoiceRepo(db *DB) *InvoiceRepo {
	return &InvoiceRepo{db: db}
}

// FindDuplicate returns the transaction that already holds inv's business
// key, ignoring inv's own transaction. Callers only ask for complete keys.
func (r *InvoiceRepo) FindDuplicate(ctx context.Context, inv models.ProcessedInvoice) (string, bool, error) {
	var holder string
	err := r.db.Pool.QueryRow(ctx, `
SELECT transaction_id
FROM processed_invoices
WHERE invoice_number=$1 AND invoice_date=$2 AND sender_bank_account=$3 AND tax_id=$4
  AND transaction_id <> $5
LIMIT 1`, inv.InvoiceNumber, inv.InvoiceDate, inv.SenderBankAccount, inv.TaxID, inv.TransactionID).Scan(&holder)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find duplicate invoice: %w", err)
	}
	return holder, true, nil
}

// Reserve records the invoice for its transaction. A redelivered transaction
// overwrites its own row. When another transaction already holds the same
// business key the unique constraint rejects the insert and the holder is
// returned as duplicateOf.
func (r *InvoiceRepo) Reserve(ctx context.Context, inv models.ProcessedInvoice) (duplicateOf string, err error) {
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO processed_invoices (transaction_id, invoice_number, invoice_date, sender_bank_account, tax_id, document_id, extraction_job_id)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), $6, NULLIF($7,''))
ON CONFLICT (transaction_id)
DO UPDATE SET
  invoice_number = EXCLUDED.invoice_number,
  invoice_date = EXCLUDED.invoice_date,
  sender_bank_account = EXCLUDED.sender_bank_account,
  tax_id = EXCLUDED.tax_id,
  document_id = EXCLUDED.document_id,
  extraction_job_id = EXCLUDED.extraction_job_id,
  processed_at = NOW()`,
		inv.TransactionID, inv.InvoiceNumber, inv.InvoiceDate, inv.SenderBankAccount, inv.TaxID, inv.DocumentID, inv.ExtractionJobID)
	if err == nil {
		return "", nil
	}
	if _, ok := isUniqueViolation(err); ok {
		holder, found, ferr := r.FindDuplicate(ctx, inv)
		if ferr != nil {
			return "", ferr
		}
		if found {
			return holder, nil
		}
	}
	return "", fmt.Errorf("reserve invoice %s: %w", inv.TransactionID, err)
}

func (r *InvoiceRepo) Get(ctx context.Context, transactionID string) (models.ProcessedInvoice, error) {
	var inv models.ProcessedInvoice
	err := r.db.Pool.QueryRow(ctx, `
SELECT transaction_id, COALESCE(invoice_number,''), COALESCE(invoice_date,''), COALESCE(sender_bank_account,''),
       COALESCE(tax_id,''), document_id, COALESCE(extraction_job_id,''), processed_at
FROM processed_invoices
WHERE transaction_id=$1`, transactionID).
		Scan(&inv.TransactionID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.SenderBankAccount, &inv.TaxID, &inv.DocumentID, &inv.ExtractionJobID, &inv.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ProcessedInvoice{}, fmt.Errorf("invoice %s: %w", transactionID, util.ErrNotFound)
	}
	if err != nil {
		return models.ProcessedInvoice{}, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}
