package reconcile

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/zombor/bill-digitizer/internal/record"
)

// DefaultTolerance is the absolute difference, in currency units, accepted
// when comparing amounts
const DefaultTolerance = 0.02

// ErrorAmountMismatch is the validation error type for inconsistent amounts
const ErrorAmountMismatch = "AMOUNT_MISMATCH"

// ErrInvalidTolerance is returned for a negative or non-finite tolerance
var ErrInvalidTolerance = errors.New("invalid tolerance")

// ValidationError describes one failed consistency check
type ValidationError struct {
	Type        string  `json:"type"`
	Detail      string  `json:"detail"`
	ItemsSum    float64 `json:"items_sum"`
	TaxAmount   float64 `json:"tax_amount"`
	TotalAmount float64 `json:"total_amount"`
}

// ValidationResult is the outcome of ValidateAmounts
type ValidationResult struct {
	IsValid     bool              `json:"is_valid"`
	ItemsSum    float64           `json:"items_sum"`
	TaxAmount   float64           `json:"tax_amount"`
	TotalAmount float64           `json:"total_amount"`
	Errors      []ValidationError `json:"errors"`
}

// ValidateAmounts checks that the line items add up to the total, either with
// tax already included in the item prices or with tax added on top.
func ValidateAmounts(b *record.Bill, tolerance float64) (ValidationResult, error) {
	if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) || tolerance < 0 {
		return ValidationResult{}, fmt.Errorf("%w: %v", ErrInvalidTolerance, tolerance)
	}
	tol := decimal.NewFromFloat(tolerance)

	sum := itemsSum(b.Items)
	tax := decimal.NewFromFloat(b.TaxAmount)
	total := decimal.NewFromFloat(b.TotalAmount)

	inclusive := sum.Sub(total).Abs().LessThanOrEqual(tol)
	exclusive := sum.Add(tax).Sub(total).Abs().LessThanOrEqual(tol)

	res := ValidationResult{
		IsValid:     inclusive || exclusive,
		ItemsSum:    round2(sum),
		TaxAmount:   round2(tax),
		TotalAmount: round2(total),
		Errors:      []ValidationError{},
	}
	if !res.IsValid {
		res.Errors = append(res.Errors, ValidationError{
			Type: ErrorAmountMismatch,
			Detail: fmt.Sprintf("items sum %s with tax %s does not match total %s",
				sum.StringFixed(2), tax.StringFixed(2), total.StringFixed(2)),
			ItemsSum:    res.ItemsSum,
			TaxAmount:   res.TaxAmount,
			TotalAmount: res.TotalAmount,
		})
	}
	return res, nil
}

// Correct reconciles the amounts with the line items: the subtotal becomes the
// items sum and the total becomes items sum plus tax. The input is not modified.
func Correct(b *record.Bill) *record.Bill {
	out := b.Clone()
	sum := itemsSum(out.Items)
	tax := decimal.NewFromFloat(out.TaxAmount)
	out.Subtotal = round2(sum)
	out.TotalAmount = round2(sum.Add(tax))
	return out
}
