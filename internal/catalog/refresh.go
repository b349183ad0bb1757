package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"invoicematch/internal/util"
)

// Source yields raw product master records as JSON documents.
type Source interface {
	Records(ctx context.Context) ([]gjson.Result, error)
}

// EntryStore replaces the persisted catalog wholesale.
type EntryStore interface {
	ReplaceEntries(ctx context.Context, entries []Entry) error
}

// Publisher builds and distributes a new index snapshot from entries.
type Publisher interface {
	Publish(ctx context.Context, entries []Entry) error
}

type RefreshResult struct {
	Read     int `json:"read"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type Refresher struct {
	source    Source
	store     EntryStore
	publisher Publisher
	csvPath   string
	log       *zap.Logger
}

func NewRefresher(source Source, store EntryStore, publisher Publisher, csvPath string, log *zap.Logger) *Refresher {
	return &Refresher{source: source, store: store, publisher: publisher, csvPath: csvPath, log: log.Named("catalog.refresh")}
}

// BuildEntries canonicalizes raw records. Records without an identifier
// are skipped; a repeated identifier keeps its first occurrence.
func BuildEntries(records []gjson.Result) ([]Entry, int) {
	entries := make([]Entry, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	skipped := 0
	for _, rec := range records {
		id, row, ok := MapSourceRecord(rec)
		if !ok {
			skipped++
			continue
		}
		if _, dup := seen[id]; dup {
			skipped++
			continue
		}
		seen[id] = struct{}{}
		entries = append(entries, Entry{ID: id, CanonicalText: BuildCanonical(row)})
	}
	return entries, skipped
}

// Run reads the source, replaces the stored catalog, writes the CSV export
// and publishes a fresh snapshot. CSV and publish failures are logged; the
// stored catalog is the source of truth.
func (r *Refresher) Run(ctx context.Context) (RefreshResult, error) {
	records, err := r.source.Records(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("read catalog source: %w", err)
	}
	entries, skipped := BuildEntries(records)
	res := RefreshResult{Read: len(records), Imported: len(entries), Skipped: skipped}

	if err := r.store.ReplaceEntries(ctx, entries); err != nil {
		return res, fmt.Errorf("replace catalog entries: %w", err)
	}
	r.log.Info("catalog entries replaced", zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped))

	if r.csvPath != "" {
		if b, err := EncodeCSV(entries); err != nil {
			r.log.Error("encode catalog csv", zap.Error(err))
		} else if err := util.WriteFileAtomic(r.csvPath, b); err != nil {
			r.log.Error("write catalog csv", zap.String("path", r.csvPath), zap.Error(err))
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, entries); err != nil {
			r.log.Error("publish index snapshot", zap.Error(err))
		}
	}
	return res, nil
}

// FileSource reads records from a JSON export on disk.
type FileSource struct {
	Path string
}

func (s FileSource) Records(context.Context) ([]gjson.Result, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return ParseSourceDocument(b)
}
