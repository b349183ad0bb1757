package util

import (
	"errors"

	"go.temporal.io/sdk/temporal"
)

var (
	ErrInput             = errors.New("invalid input")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrExtractionTimeout = errors.New("extraction did not finish in time")
	ErrStorage           = errors.New("document storage failure")
	ErrNotFound          = errors.New("not found")
	ErrInvalidPDF        = errors.New("not a readable PDF document")
)

// ErrorKind names a failure class of the invoice pipeline. The string value is
// also used as the Temporal application error type.
type ErrorKind string

const (
	KindInput      ErrorKind = "InputError"
	KindExtraction ErrorKind = "ExtractionFailure"
	KindStorage    ErrorKind = "StorageFailure"
	KindUnexpected ErrorKind = "UnexpectedFailure"
)

func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInput), errors.Is(err, ErrInvalidPDF):
		return KindInput
	case errors.Is(err, ErrExtractionFailed), errors.Is(err, ErrExtractionTimeout):
		return KindExtraction
	case errors.Is(err, ErrStorage):
		return KindStorage
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch ErrorKind(appErr.Type()) {
		case KindInput, KindExtraction, KindStorage:
			return ErrorKind(appErr.Type())
		}
	}
	return KindUnexpected
}

// AsApplicationError tags err with its kind so the classification survives
// serialization across the activity boundary.
func AsApplicationError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return err
	}
	kind := Classify(err)
	if kind == KindInput {
		return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err)
	}
	return temporal.NewApplicationErrorWithCause(err.Error(), string(kind), err)
}
