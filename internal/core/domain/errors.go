package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnavailable means both OCR engines failed. Fatal for the run.
	ErrEngineUnavailable = errors.New("ocr engines unavailable")
	// ErrChainExhausted means every configured model endpoint failed with a
	// retryable classification. Soft at the identity stage, triggers the
	// degraded result at the nutrition stage.
	ErrChainExhausted = errors.New("model chain exhausted")
	// ErrModelFatal is a non-retryable model failure (bad request, auth,
	// schema violation). Propagated without trying further endpoints.
	ErrModelFatal = errors.New("model fatal failure")
	// ErrParseFailure means the model returned 200 but unparsable JSON.
	ErrParseFailure = errors.New("model response parse failure")

	ErrScanNotFound = errors.New("scan not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
