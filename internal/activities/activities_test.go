package activities

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"invoicematch/internal/catalog"
	"invoicematch/internal/documents"
	"invoicematch/internal/extraction"
	"invoicematch/internal/index"
	"invoicematch/internal/matching"
	"invoicematch/internal/models"
	"invoicematch/internal/redaction"
	"invoicematch/internal/util"
)

type fakeExtractor struct {
	jobID string
	polls []extraction.PollResult
	err   error
}

func (f *fakeExtractor) Submit(context.Context, string) (string, error) { return f.jobID, f.err }

func (f *fakeExtractor) Poll(context.Context, string) (extraction.PollResult, error) {
	if f.err != nil {
		return extraction.PollResult{}, f.err
	}
	next := f.polls[0]
	if len(f.polls) > 1 {
		f.polls = f.polls[1:]
	}
	return next, nil
}

type fakeDocuments struct {
	docs    map[string][]byte
	stored  []documents.Metadata
	failAll bool
}

func (f *fakeDocuments) Store(_ context.Context, content []byte, meta documents.Metadata) (string, error) {
	if f.failAll {
		return "", util.ErrStorage
	}
	f.stored = append(f.stored, meta)
	id := "dms-" + meta.FileName
	f.docs[id] = content
	return id, nil
}

func (f *fakeDocuments) Fetch(_ context.Context, id string) ([]byte, error) {
	if f.failAll {
		return nil, util.ErrStorage
	}
	b, ok := f.docs[id]
	if !ok {
		return nil, util.ErrStorage
	}
	return b, nil
}

type fakeInvoices struct {
	rows map[string]models.ProcessedInvoice
}

func keyOf(inv models.ProcessedInvoice) string {
	return inv.InvoiceNumber + "|" + inv.InvoiceDate + "|" + inv.SenderBankAccount + "|" + inv.TaxID
}

func (f *fakeInvoices) FindDuplicate(_ context.Context, inv models.ProcessedInvoice) (string, bool, error) {
	for tx, row := range f.rows {
		if tx != inv.TransactionID && keyOf(row) == keyOf(inv) {
			return tx, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeInvoices) Reserve(ctx context.Context, inv models.ProcessedInvoice) (string, error) {
	if holder, found, _ := f.FindDuplicate(ctx, inv); found && inv.InvoiceNumber != "" {
		return holder, nil
	}
	f.rows[inv.TransactionID] = inv
	return "", nil
}

type fakeScores struct {
	saved map[string][]models.LineItemScore
}

func (f *fakeScores) ReplaceScores(_ context.Context, tx string, scores []models.LineItemScore) error {
	f.saved[tx] = scores
	return nil
}

type fakeAudit struct {
	events []models.AuditEvent
	err    error
}

func (f *fakeAudit) Append(_ context.Context, ev models.AuditEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

type staticSnapshots struct{ snap *index.Snapshot }

func (s staticSnapshots) Current(context.Context) (*index.Snapshot, error) { return s.snap, nil }

type fixture struct {
	acts      *Activities
	extractor *fakeExtractor
	docs      *fakeDocuments
	invoices  *fakeInvoices
	scores    *fakeScores
	audit     *fakeAudit
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		extractor: &fakeExtractor{jobID: "job-1"},
		docs:      &fakeDocuments{docs: map[string][]byte{}},
		invoices:  &fakeInvoices{rows: map[string]models.ProcessedInvoice{}},
		scores:    &fakeScores{saved: map[string][]models.LineItemScore{}},
		audit:     &fakeAudit{},
	}
	snap := index.Build([]catalog.Entry{
		{ID: "A1", CanonicalText: "grau matt oberflaeche 1200"},
		{ID: "B2", CanonicalText: "türblatt weißlack 2000x900"},
	})
	f.acts = New(matching.DefaultConfig(), Deps{
		Extractor: f.extractor,
		Documents: f.docs,
		Invoices:  f.invoices,
		Scores:    f.scores,
		Audit:     f.audit,
		Snapshots: staticSnapshots{snap: snap},
	}, zap.NewNop())
	return f
}

func onePagePDF(t *testing.T) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetFont("Arial", "", 12)
	doc.AddPage()
	doc.Text(40, 60, "Oberflaeche grau matt")
	doc.Text(40, 90, "Versandkosten pauschal")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

var completeHeader = extraction.Header{
	DocumentNumber:    "RE-1",
	DocumentDate:      "2024-03-01",
	SenderBankAccount: "DE02120300000000202051",
	TaxID:             "DE123456789",
}

func TestCheckDuplicateSkipsIncompleteHeader(t *testing.T) {
	f := newFixture(t)
	out, err := f.acts.CheckDuplicateActivity(context.Background(), CheckDuplicateInput{
		TransactionID: "tx-2",
		Header:        extraction.Header{DocumentNumber: "RE-1"},
	})
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.False(t, out.Duplicate)
}

func TestSecondTransactionWithSameKeyIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.acts.ReserveInvoiceActivity(ctx, ReserveInvoiceInput{TransactionID: "tx-1", DocumentID: "d1", Header: completeHeader})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	dup, err := f.acts.CheckDuplicateActivity(ctx, CheckDuplicateInput{TransactionID: "tx-2", Header: completeHeader})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, "tx-1", dup.DuplicateOf)

	// a redelivery of the first transaction is not its own duplicate
	self, err := f.acts.CheckDuplicateActivity(ctx, CheckDuplicateInput{TransactionID: "tx-1", Header: completeHeader})
	require.NoError(t, err)
	assert.False(t, self.Duplicate)
}

func TestMatchLineItemsDerivesValidity(t *testing.T) {
	f := newFixture(t)
	out, err := f.acts.MatchLineItemsActivity(context.Background(), MatchLineItemsInput{
		TransactionID: "tx-1",
		Lines: []extraction.Line{
			{Index: 0, Description: "Oberfläche grau matt"},
			{Index: 1, Description: "Versandkosten pauschal"},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)

	assert.Equal(t, "A1", out.Items[0].Outcome.CatalogID)
	assert.Equal(t, out.Items[0].Outcome.Confidence >= 0.5, out.Items[0].Valid)

	assert.Equal(t, matching.NoneID, out.Items[1].Outcome.CatalogID)
	assert.False(t, out.Items[1].Valid)
	assert.Zero(t, out.Items[1].Outcome.Confidence)
}

func TestPersistScores(t *testing.T) {
	f := newFixture(t)
	items := []MatchedLine{
		{Line: extraction.Line{Index: 0, PageIndex: 1, Description: "x"}, Outcome: matching.Outcome{CatalogID: "A1", Confidence: 0.8, MatchedText: "grau"}, Valid: true},
		{Line: extraction.Line{Index: 1}, Outcome: matching.Outcome{CatalogID: matching.NoneID}},
	}
	require.NoError(t, f.acts.PersistScoresActivity(context.Background(), PersistScoresInput{TransactionID: "tx-1", Items: items}))

	saved := f.scores.saved["tx-1"]
	require.Len(t, saved, 2)
	assert.Equal(t, models.LineItemScore{
		TransactionID: "tx-1", PositionIndex: 0, PageIndex: 1, CatalogID: "A1",
		MerchantDescription: "x", MatchedText: "grau", Score: 0.8, Valid: true,
	}, saved[0])
	assert.False(t, saved[1].Valid)
}

func TestRedactDocumentStoresNewArtifact(t *testing.T) {
	f := newFixture(t)
	f.docs.docs["orig"] = onePagePDF(t)

	out, err := f.acts.RedactDocumentActivity(context.Background(), RedactDocumentInput{
		TransactionID: "tx-1",
		DocumentID:    "orig",
		Items: []MatchedLine{
			{Line: extraction.Line{Box: &redaction.NormalizedRect{X: 0.05, Y: 0.05, W: 0.5, H: 0.03}}, Outcome: matching.Outcome{CatalogID: matching.NoneID}},
			{Line: extraction.Line{Box: &redaction.NormalizedRect{X: 0.05, Y: 0.09, W: 0.5, H: 0.03}}, Outcome: matching.Outcome{CatalogID: "A1", Confidence: 0.9}, Valid: true},
			{Line: extraction.Line{}, Outcome: matching.Outcome{CatalogID: matching.NoneID}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Regions)
	assert.Equal(t, "dms-redacted_tx-1.pdf", out.RedactedDocumentID)
	require.Len(t, f.docs.stored, 1)

	sizes, err := redaction.PageSizes(f.docs.docs[out.RedactedDocumentID])
	require.NoError(t, err)
	assert.Len(t, sizes, 1)
}

func TestRedactDocumentStorageFailureIsClassified(t *testing.T) {
	f := newFixture(t)
	f.docs.failAll = true

	_, err := f.acts.RedactDocumentActivity(context.Background(), RedactDocumentInput{TransactionID: "tx-1", DocumentID: "orig"})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, string(util.KindStorage), appErr.Type())
}

func TestPollExtractionPassesStatusThrough(t *testing.T) {
	f := newFixture(t)
	f.extractor.polls = []extraction.PollResult{
		{Status: extraction.StatusPending},
		{Status: extraction.StatusFailed, Reason: "unreadable"},
	}
	ctx := context.Background()

	out, err := f.acts.PollExtractionActivity(ctx, PollExtractionInput{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", out.Status)

	out, err = f.acts.PollExtractionActivity(ctx, PollExtractionInput{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, "FAILED", out.Status)
	assert.Equal(t, "unreadable", out.Reason)
}

func TestWriteAuditFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.audit.err = errors.New("connection refused")

	err := f.acts.WriteAuditActivity(context.Background(), WriteAuditInput{Event: models.AuditEvent{TransactionID: "tx-1", Action: models.StateComplete}})
	require.Error(t, err)
	assert.Equal(t, util.KindUnexpected, util.Classify(err))
}
