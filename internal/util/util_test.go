package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.temporal.io/sdk/temporal"
)

func TestBatch(t *testing.T) {
	items := make([]int, 450)
	batches := Batch(items, 200)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[2]) != 50 {
		t.Fatalf("unexpected last batch size: %d", len(batches[2]))
	}
	if got := Batch([]int{}, 200); len(got) != 0 {
		t.Fatalf("expected no batches for empty input, got %d", len(got))
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	if err := WriteFileAtomic(path, []byte("matnr;verketten\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != "matnr;verketten\n" {
		t.Fatalf("unexpected content: %q", b)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be renamed away, found %d entries", len(entries))
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]struct {
		err  error
		want ErrorKind
	}{
		"input":      {fmt.Errorf("submit: %w", ErrInput), KindInput},
		"extraction": {fmt.Errorf("poll job 7: %w", ErrExtractionFailed), KindExtraction},
		"timeout":    {ErrExtractionTimeout, KindExtraction},
		"storage":    {fmt.Errorf("fetch: %w", ErrStorage), KindStorage},
		"other":      {errors.New("boom"), KindUnexpected},
		"remote":     {temporal.NewApplicationError("dms down", string(KindStorage)), KindStorage},
	}
	for name, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("%s: got %q want %q", name, got, tc.want)
		}
	}
	if Classify(nil) != "" {
		t.Fatalf("nil error must have no kind")
	}
}

func TestAsApplicationErrorKeepsKind(t *testing.T) {
	err := AsApplicationError(fmt.Errorf("upload: %w", ErrStorage))
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected application error, got %T", err)
	}
	if appErr.Type() != string(KindStorage) {
		t.Fatalf("unexpected type %q", appErr.Type())
	}
	if appErr.NonRetryable() {
		t.Fatalf("storage failures must stay retryable")
	}
	in := AsApplicationError(ErrInput)
	if !errors.As(in, &appErr) || !appErr.NonRetryable() {
		t.Fatalf("input errors must be non-retryable")
	}
}
