package invoice

import (
	"errors"
	"time"

	"github.com/zombor/bill-digitizer/internal/record"
)

var (
	// ErrInvoiceNotFound is returned by a DB when no invoice has the given ID
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrInvoiceExists is returned when an ID is inserted twice
	ErrInvoiceExists = errors.New("invoice already exists")
)

// Invoice is a bill as persisted, with its upload metadata
type Invoice struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	record.Bill
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	FileHash    string    `json:"file_hash"` // SHA-256 of the uploaded file
	Page        int       `json:"page"`      // 1-based page of the upload this bill came from
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
