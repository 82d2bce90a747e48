package scanning

import (
	"fmt"

	"github.com/zombor/bill-digitizer/internal/record"
)

// Scanner defines the interface for OCR providers
type Scanner interface {
	// ScanDocument reads an image or PDF and returns one raw extraction per page
	ScanDocument(data []byte, contentType string) ([]*record.RawExtraction, error)
	// Close closes the scanner and releases resources
	Close() error
}

// scanPages prepares every page of a document and hands each one to scan
func scanPages(data []byte, contentType string, scan func(page []byte) (*record.RawExtraction, error)) ([]*record.RawExtraction, error) {
	pages, err := preparePages(data, contentType)
	if err != nil {
		return nil, err
	}

	raws := make([]*record.RawExtraction, 0, len(pages))
	for i, page := range pages {
		raw, err := scan(page)
		if err != nil {
			return nil, fmt.Errorf("scanning page %d: %w", i+1, err)
		}
		raws = append(raws, raw)
	}
	return raws, nil
}
