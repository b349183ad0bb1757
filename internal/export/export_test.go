package export

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"invoicematch/internal/models"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func sampleInvoice() (models.ProcessedInvoice, []models.LineItemScore) {
	inv := models.ProcessedInvoice{
		TransactionID: "tx-42",
		InvoiceNumber: "RE-1",
		InvoiceDate:   "2024-03-01",
		DocumentID:    "dms-1",
	}
	scores := []models.LineItemScore{
		{TransactionID: "tx-42", CatalogID: "A1", MatchedText: "grau matt oberflaeche 1200", Score: 0.81, Valid: true},
		{TransactionID: "tx-42", CatalogID: "NONE", Valid: false},
		{TransactionID: "tx-42", CatalogID: "B7", MatchedText: "schraube m8", Score: 0.41, Valid: false},
	}
	return inv, scores
}

func TestBuildPayloadKeepsValidItems(t *testing.T) {
	inv, scores := sampleInvoice()
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	p := BuildPayload(inv, scores, now)
	assert.Equal(t, "tx-42", p.TransactionID)
	assert.Equal(t, "dms-1", p.DocumentID)
	assert.Equal(t, "RE-1", p.DocumentData.InvoiceNumber)
	assert.Equal(t, time.UTC, p.Timestamp.Location())
	require.Len(t, p.ClassificationResult.Products, 1)
	assert.Equal(t, Product{ArticleNumber: "A1", ArticleName: "grau matt oberflaeche 1200", Quantity: 1}, p.ClassificationResult.Products[0])
	assert.Equal(t, "success", p.Status)
	assert.NotNil(t, p.Errors)
}

func TestPublishKeysByTransaction(t *testing.T) {
	w := &recordingWriter{}
	pub := NewPublisher(w, zap.NewNop())
	inv, scores := sampleInvoice()

	require.NoError(t, pub.Publish(context.Background(), BuildPayload(inv, scores, time.Now())))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "tx-42", string(w.msgs[0].Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "tx-42", decoded["transactionId"])
	assert.Equal(t, []any{}, decoded["errors"])
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	pub := NewPublisher(&recordingWriter{err: boom}, zap.NewNop())

	err := pub.Publish(context.Background(), Payload{TransactionID: "tx-1"})
	require.ErrorIs(t, err, boom)
}
