//go:build !tesseract

package ocr

import "errors"

func newLocalEngine(string) (primaryEngine, error) {
	return nil, errors.New("local ocr requires a binary built with the tesseract tag")
}
