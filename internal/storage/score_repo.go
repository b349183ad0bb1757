package storage

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"invoicematch/internal/models"
	"invoicematch/internal/util"
)

type ScoreRepo struct {
	db        *DB
	batchSize int
}

func NewScoreRepo(db *DB, batchSize int) *ScoreRepo {
	return &ScoreRepo{db: db, batchSize: batchSize}
}

func roundScore(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// ReplaceScores stores the outcomes of one transaction in a single database
// transaction, sent in batches. Rows from an earlier delivery of the same
// transaction are removed first.
func (r *ScoreRepo) ReplaceScores(ctx context.Context, transactionID string, scores []models.LineItemScore) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace scores: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM line_item_scores WHERE transaction_id=$1`, transactionID); err != nil {
		return fmt.Errorf("clear scores %s: %w", transactionID, err)
	}
	for _, chunk := range util.Batch(scores, r.batchSize) {
		batch := &pgx.Batch{}
		for _, s := range chunk {
			batch.Queue(`
INSERT INTO line_item_scores (transaction_id, position_index, page_index, catalog_id, merchant_description, matched_text, score, is_valid)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				transactionID, s.PositionIndex, s.PageIndex, s.CatalogID,
				util.SanitizeText(s.MerchantDescription), s.MatchedText, roundScore(s.Score), s.Valid)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert scores %s: %w", transactionID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit scores tx: %w", err)
	}
	return nil
}

func (r *ScoreRepo) ListScores(ctx context.Context, transactionID string) ([]models.LineItemScore, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT transaction_id, position_index, page_index, catalog_id, merchant_description, matched_text, score::float8, is_valid
FROM line_item_scores
WHERE transaction_id=$1
ORDER BY position_index ASC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()
	out := make([]models.LineItemScore, 0, 32)
	for rows.Next() {
		var s models.LineItemScore
		if err := rows.Scan(&s.TransactionID, &s.PositionIndex, &s.PageIndex, &s.CatalogID, &s.MerchantDescription, &s.MatchedText, &s.Score, &s.Valid); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return out, nil
}
