package extractor

import (
	"fmt"
	"os"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// Split implements the PageSplitter contract (C1): turn a PDF byte buffer
// into an ordered sequence of page-text strings preserving reading order.
// ledongthuc/pdf and the pdftotext fallback both require a file handle, so
// Split stages the buffer into a scratch file for the duration of the call
// and removes it on every exit path.
func Split(data []byte) ([]string, error) {
	scratch, err := os.CreateTemp("", "statement-split-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: could not stage scratch file: %v", models.ErrMalformedSource, err)
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)

	if _, err := scratch.Write(data); err != nil {
		scratch.Close()
		return nil, fmt.Errorf("%w: could not stage scratch file: %v", models.ErrMalformedSource, err)
	}
	if err := scratch.Close(); err != nil {
		return nil, fmt.Errorf("%w: could not stage scratch file: %v", models.ErrMalformedSource, err)
	}

	pages, err := ExtractText(scratchPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedSource, err)
	}
	return pages, nil
}
