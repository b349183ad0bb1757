package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tidwall/gjson"

	"invoicematch/internal/catalog"
)

// CatalogRepo holds the canonical catalog and the raw product master rows
// it is built from.
type CatalogRepo struct {
	db *DB
}

func NewCatalogRepo(db *DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// ReplaceEntries swaps the whole catalog in one transaction. Readers see
// either the old or the new catalog, never a mix.
func (r *CatalogRepo) ReplaceEntries(ctx context.Context, entries []catalog.Entry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace catalog: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM catalog_entries`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.ID, e.CanonicalText, i}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"catalog_entries"},
		[]string{"catalog_id", "canonical_text", "position"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy catalog entries: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

// ListEntries returns the catalog in import order.
func (r *CatalogRepo) ListEntries(ctx context.Context) ([]catalog.Entry, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT catalog_id, canonical_text FROM catalog_entries ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	defer rows.Close()
	out := make([]catalog.Entry, 0, 1024)
	for rows.Next() {
		var e catalog.Entry
		if err := rows.Scan(&e.ID, &e.CanonicalText); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog entries: %w", err)
	}
	return out, nil
}

// Records reads the staged product master rows; it makes the repo a
// catalog.Source.
func (r *CatalogRepo) Records(ctx context.Context) ([]gjson.Result, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT attributes::text FROM catalog_source_rows ORDER BY row_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list catalog source rows: %w", err)
	}
	defer rows.Close()
	out := make([]gjson.Result, 0, 1024)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan catalog source row: %w", err)
		}
		out = append(out, gjson.Parse(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog source rows: %w", err)
	}
	return out, nil
}
