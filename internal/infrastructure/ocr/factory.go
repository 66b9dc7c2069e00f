package ocr

import (
	"fmt"
	"time"
)

// Primary OCR engine modes.
const (
	PrimaryModeHTTP  = "http"
	PrimaryModeLocal = "local"
)

// NewPrimaryEngine selects the engine serving the primary OCR slot. The
// default is the hosted HTTP service; "local" selects the tesseract-backed
// engine and requires a binary built with the tesseract tag.
func NewPrimaryEngine(mode, baseURL string, timeout time.Duration, language string) (primaryEngine, error) {
	switch mode {
	case "", PrimaryModeHTTP:
		return NewPrimaryClient(baseURL, timeout), nil
	case PrimaryModeLocal:
		return newLocalEngine(language)
	default:
		return nil, fmt.Errorf("unknown primary ocr mode %q", mode)
	}
}
