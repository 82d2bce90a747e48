package reconcile

// WarningKind classifies a non-fatal finding surfaced to the caller
type WarningKind string

const (
	WarnExtractionWeak       WarningKind = "EXTRACTION_WEAK"
	WarnCurrencyUnrecognized WarningKind = "CURRENCY_UNRECOGNIZED"
	WarnAmountMismatch       WarningKind = "AMOUNT_MISMATCH"
	WarnHardDuplicate        WarningKind = "HARD_DUPLICATE"
	WarnSoftDuplicate        WarningKind = "SOFT_DUPLICATE"
)

// Warning is one entry of the ordered warning list on an Outcome
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}
