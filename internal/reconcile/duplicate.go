package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/bill-digitizer/internal/extraction"
	"github.com/zombor/bill-digitizer/internal/record"
)

// CandidateFinder returns prior bills of an owner that share a vendor name
// (case-insensitively) and purchase date
type CandidateFinder interface {
	FindCandidates(filter record.CandidateFilter) ([]record.Summary, error)
}

// DuplicateVerdict is the result of a duplicate check
type DuplicateVerdict struct {
	Duplicate     bool   `json:"duplicate"`
	SoftDuplicate bool   `json:"soft_duplicate"`
	Reason        string `json:"reason"`
	MatchID       string `json:"match_id,omitempty"`
}

// DuplicateDetector compares a bill with the owner's prior bills
type DuplicateDetector struct {
	finder    CandidateFinder
	tolerance decimal.Decimal
}

// NewDuplicateDetector creates a detector. A non-positive tolerance uses
// DefaultTolerance.
func NewDuplicateDetector(finder CandidateFinder, tolerance float64) *DuplicateDetector {
	if !(tolerance > 0) {
		tolerance = DefaultTolerance
	}
	return &DuplicateDetector{finder: finder, tolerance: decimal.NewFromFloat(tolerance)}
}

// Check looks for a hard duplicate when the bill has an invoice number and a
// soft duplicate otherwise. A bill without a usable vendor or date is not
// checked at all.
func (d *DuplicateDetector) Check(b *record.Bill, owner string) (DuplicateVerdict, error) {
	if !checkable(b) {
		return DuplicateVerdict{Reason: "insufficient data: vendor name and purchase date are required"}, nil
	}

	candidates, err := d.finder.FindCandidates(record.CandidateFilter{
		Owner:        owner,
		VendorName:   b.VendorName,
		PurchaseDate: b.PurchaseDate,
	})
	if err != nil {
		return DuplicateVerdict{}, fmt.Errorf("finding duplicate candidates: %w", err)
	}

	hasInvoice := !extraction.IsBlank(b.InvoiceNumber)
	for _, c := range candidates {
		if !strings.EqualFold(c.VendorName, b.VendorName) || c.PurchaseDate != b.PurchaseDate {
			continue
		}
		if !d.sameAmount(c.TotalAmount, b.TotalAmount) {
			continue
		}
		if hasInvoice {
			if strings.EqualFold(strings.TrimSpace(c.InvoiceNumber), strings.TrimSpace(b.InvoiceNumber)) {
				return DuplicateVerdict{
					Duplicate: true,
					Reason: fmt.Sprintf("invoice %s from %s on %s is already recorded",
						b.InvoiceNumber, c.VendorName, c.PurchaseDate),
					MatchID: c.ID,
				}, nil
			}
			continue
		}
		return DuplicateVerdict{
			SoftDuplicate: true,
			Reason: fmt.Sprintf("a bill from %s on %s with the same total is already recorded",
				c.VendorName, c.PurchaseDate),
			MatchID: c.ID,
		}, nil
	}
	return DuplicateVerdict{Reason: "no matching record found"}, nil
}

func (d *DuplicateDetector) sameAmount(a, b float64) bool {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs().LessThanOrEqual(d.tolerance)
}

func checkable(b *record.Bill) bool {
	if b == nil || extraction.IsBlank(b.VendorName) || extraction.IsBlank(b.PurchaseDate) {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(b.VendorName), UnknownVendor)
}
