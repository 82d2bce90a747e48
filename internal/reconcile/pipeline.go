package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/zombor/bill-digitizer/internal/extraction"
	"github.com/zombor/bill-digitizer/internal/record"
)

var (
	// ErrHardDuplicate blocks a save unconditionally
	ErrHardDuplicate = errors.New("hard duplicate")
	// ErrSoftDuplicate blocks a save under the block policy unless overridden
	ErrSoftDuplicate = errors.New("soft duplicate")
)

// SourceModel marks a field that came from the OCR model's own output
const SourceModel = "model"

// SoftPolicy decides whether a soft duplicate blocks saving
type SoftPolicy string

const (
	SoftBlock SoftPolicy = "block"
	SoftWarn  SoftPolicy = "warn"
)

// ParseSoftPolicy validates a policy name. Empty means block.
func ParseSoftPolicy(s string) (SoftPolicy, error) {
	switch SoftPolicy(s) {
	case "", SoftBlock:
		return SoftBlock, nil
	case SoftWarn:
		return SoftWarn, nil
	}
	return "", fmt.Errorf("unknown soft duplicate policy %q", s)
}

// fallbackFields are re-derived from OCR text when the model left them weak
var fallbackFields = []string{
	extraction.FieldInvoiceNumber,
	extraction.FieldVendorName,
	extraction.FieldPurchaseDate,
	extraction.FieldPurchaseTime,
	extraction.FieldCurrency,
	extraction.FieldTotalAmount,
	extraction.FieldTaxAmount,
	extraction.FieldSubtotal,
	extraction.FieldPaymentMethod,
}

// requiredFields raise an ExtractionWeak warning when every tier failed
var requiredFields = []string{
	extraction.FieldVendorName,
	extraction.FieldPurchaseDate,
	extraction.FieldTotalAmount,
}

// Outcome is the reconciled bill and the decision bundle handed to storage
type Outcome struct {
	Bill       *record.Bill      `json:"bill"`
	Validation ValidationResult  `json:"validation"`
	Duplicate  DuplicateVerdict  `json:"duplicate"`
	Warnings   []Warning         `json:"warnings"`
	CanSave    bool              `json:"can_save"`
	Corrected  bool              `json:"corrected"`
	Sources    map[string]string `json:"sources,omitempty"`
	PendingID  string            `json:"pending_id,omitempty"`
	Page       int               `json:"page"`
}

// Config tunes a Pipeline. Zero values select the defaults.
type Config struct {
	Tolerance  float64
	SoftPolicy SoftPolicy
	Logger     *slog.Logger
	Now        func() time.Time
}

// Pipeline turns a raw extraction into a validated bill
type Pipeline struct {
	tiers      []extraction.Tier
	detector   *DuplicateDetector
	tolerance  float64
	softPolicy SoftPolicy
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline creates a pipeline. Tiers are consulted in order for every
// field the model left weak. A nil detector disables duplicate checks.
func NewPipeline(tiers []extraction.Tier, detector *DuplicateDetector, cfg Config) (*Pipeline, error) {
	tol := cfg.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	if math.IsNaN(tol) || math.IsInf(tol, 0) || tol < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTolerance, cfg.Tolerance)
	}
	policy, err := ParseSoftPolicy(string(cfg.SoftPolicy))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		tiers:      tiers,
		detector:   detector,
		tolerance:  tol,
		softPolicy: policy,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Run reconciles one page. Errors are returned only when the duplicate
// lookup fails; bad extraction data ends up in warnings instead.
func (p *Pipeline) Run(raw *record.RawExtraction, owner string) (*Outcome, error) {
	if raw == nil {
		raw = &record.RawExtraction{}
	}

	fields := make(map[string]any, len(raw.Fields))
	maps.Copy(fields, raw.Fields)
	sources := make(map[string]string)

	for _, f := range fallbackFields {
		if !extraction.IsWeakField(f, fields[f]) {
			sources[f] = SourceModel
			continue
		}
		v, tier, ok := extraction.Resolve(p.tiers, f, raw.OCRText)
		if !ok {
			continue
		}
		p.logger.Debug("field recovered from fallback tier", "field", f, "tier", tier)
		fields[f] = v
		sources[f] = tier
	}

	var warnings []Warning
	for _, f := range requiredFields {
		if extraction.IsWeakField(f, fields[f]) {
			warnings = append(warnings, Warning{
				Kind:    WarnExtractionWeak,
				Field:   f,
				Message: fmt.Sprintf("%s could not be extracted; a default was used", f),
			})
		}
	}

	bill, warn := ConvertToUSD(Normalize(fields, p.now()))
	if warn != nil {
		warnings = append(warnings, *warn)
	}

	validation, err := ValidateAmounts(bill, p.tolerance)
	if err != nil {
		return nil, err
	}
	verdict, err := p.Recheck(bill, owner)
	if err != nil {
		return nil, err
	}

	corrected := false
	if !validation.IsValid {
		mismatch := validation.Errors[0].Detail
		if len(bill.Items) == 0 {
			warnings = append(warnings, Warning{
				Kind:    WarnAmountMismatch,
				Message: mismatch + "; no line items to correct against",
			})
		} else {
			bill = Correct(bill)
			corrected = true
			if validation, err = ValidateAmounts(bill, p.tolerance); err != nil {
				return nil, err
			}
			if verdict, err = p.Recheck(bill, owner); err != nil {
				return nil, err
			}
			msg := mismatch + "; subtotal and total were recomputed from line items"
			if !validation.IsValid {
				msg += " but still do not reconcile"
			}
			warnings = append(warnings, Warning{Kind: WarnAmountMismatch, Message: msg})
		}
	}

	switch {
	case verdict.Duplicate:
		warnings = append(warnings, Warning{Kind: WarnHardDuplicate, Message: verdict.Reason})
	case verdict.SoftDuplicate:
		warnings = append(warnings, Warning{Kind: WarnSoftDuplicate, Message: verdict.Reason})
	}
	if warnings == nil {
		warnings = []Warning{}
	}

	out := &Outcome{
		Bill:       bill,
		Validation: validation,
		Duplicate:  verdict,
		Warnings:   warnings,
		CanSave:    p.Admit(verdict, false) == nil,
		Corrected:  corrected,
		Sources:    sources,
	}
	p.logger.Info("bill reconciled",
		"vendor", bill.VendorName,
		"date", bill.PurchaseDate,
		"total", bill.TotalAmount,
		"valid", validation.IsValid,
		"corrected", corrected,
		"duplicate", verdict.Duplicate,
		"soft_duplicate", verdict.SoftDuplicate,
		"warnings", len(warnings))
	return out, nil
}

// RunPages reconciles each page of a document in order
func (p *Pipeline) RunPages(raws []*record.RawExtraction, owner string) ([]*Outcome, error) {
	outcomes := make([]*Outcome, 0, len(raws))
	for i, raw := range raws {
		out, err := p.Run(raw, owner)
		if err != nil {
			return nil, fmt.Errorf("reconciling page %d: %w", i+1, err)
		}
		out.Page = i + 1
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// Recheck runs duplicate detection for a bill about to be saved
func (p *Pipeline) Recheck(b *record.Bill, owner string) (DuplicateVerdict, error) {
	if p.detector == nil {
		return DuplicateVerdict{Reason: "duplicate detection disabled"}, nil
	}
	return p.detector.Check(b, owner)
}

// Admit applies the save policy to a verdict. Hard duplicates always fail;
// soft duplicates fail under the block policy unless overridden.
func (p *Pipeline) Admit(v DuplicateVerdict, overrideSoft bool) error {
	if v.Duplicate {
		return fmt.Errorf("%w: %s", ErrHardDuplicate, v.Reason)
	}
	if v.SoftDuplicate && p.softPolicy == SoftBlock && !overrideSoft {
		return fmt.Errorf("%w: %s", ErrSoftDuplicate, v.Reason)
	}
	return nil
}
