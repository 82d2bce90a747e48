package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

const amountExpr = `(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`

// gap is what may sit between a label and its amount: punctuation, spaces,
// currency symbols and an optional currency code.
const gap = `[^\dA-Za-z\n]{0,6}(?-i:(?:USD|INR|EUR|GBP|MYR|SGD|CAD|AUD|JPY|AED|CNY|CHF|RM|Rs\.?))?[^\dA-Za-z\n]{0,6}`

var (
	subTotalFold = regexp.MustCompile(`(?i)\bsub[ \t\-]+total\b`)

	invoicePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:INVOICE|RECEIPT|BILL)[ \t]*(?:NO\.?|NUMBER|NUM|ID|#)?[ \t]*[:#.\-]?[ \t]*([A-Z0-9][A-Z0-9\-/]*)`),
		regexp.MustCompile(`\b(INV[\-#]?\d[A-Z0-9\-]*)`),
		regexp.MustCompile(`\bINV[ \t]*[:.][ \t]*([A-Z0-9][A-Z0-9\-]*)`),
		regexp.MustCompile(`#[ \t]*([A-Z0-9][A-Z0-9\-]{2,})`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
		regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`),
		regexp.MustCompile(`\b(\d{1,2}-\d{1,2}-\d{4})\b`),
		regexp.MustCompile(`\b(\d{1,2}\.\d{1,2}\.\d{4})\b`),
	}

	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}:\d{2}(?:[ \t]?[AP]M)?)\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}(?:[ \t]?[AP]M)?)\b`),
	}

	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:grand[ \t]+total|total[ \t]+amount[ \t]+due|amount[ \t]+due|total[ \t]+amount|total[ \t]+due|balance[ \t]+due|net[ \t]+total)\b` + gap + amountExpr),
		regexp.MustCompile(`(?i)\btotal\b` + gap + amountExpr),
		regexp.MustCompile(`[$€£₹][ \t]*` + amountExpr),
	}

	taxPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:sales[ \t]+tax|tax[ \t]+amount|total[ \t]+tax|tax|gst|vat|cgst|sgst|igst)\b(?:[ \t]*\(?[ \t]*\d{1,2}(?:\.\d+)?[ \t]*%[ \t]*\)?)?` + gap + amountExpr),
	}

	subtotalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsubtotal\b` + gap + amountExpr),
	}

	currencyPatterns = []struct {
		code string
		re   *regexp.Regexp
	}{
		{"USD", regexp.MustCompile(`\bUSD\b`)},
		{"INR", regexp.MustCompile(`\bINR\b`)},
		{"MYR", regexp.MustCompile(`\bMYR\b|\bRM[ \t]?\d`)},
		{"EUR", regexp.MustCompile(`\bEUR\b`)},
		{"GBP", regexp.MustCompile(`\bGBP\b`)},
		{"INR", regexp.MustCompile(`₹|\bRS\.?[ \t]?\d`)},
		{"EUR", regexp.MustCompile(`€`)},
		{"GBP", regexp.MustCompile(`£`)},
		{"USD", regexp.MustCompile(`\$`)},
	}

	paymentPatterns = []struct {
		method string
		re     *regexp.Regexp
	}{
		{"CASH", regexp.MustCompile(`\bCASH\b`)},
		{"CARD", regexp.MustCompile(`\bCARD\b|\bCREDIT\b|\bDEBIT\b|\bVISA\b|\bMASTERCARD\b|\bAMEX\b`)},
		{"UPI", regexp.MustCompile(`\bUPI\b`)},
		{"NET BANKING", regexp.MustCompile(`\bNET[ \t]+BANKING\b|\bONLINE\b`)},
		{"WALLET", regexp.MustCompile(`\bPAYTM\b|\bPHONEPE\b|\bGPAY\b|\bGOOGLE[ \t]+PAY\b|\bAPPLE[ \t]+PAY\b`)},
	}
)

// FieldExtractor is the regex tier. It reads invoice numbers, dates, times,
// amounts, currency and payment method out of free OCR text.
type FieldExtractor struct{}

// NewFieldExtractor creates a regex tier
func NewFieldExtractor() *FieldExtractor {
	return &FieldExtractor{}
}

// Name implements Tier
func (f *FieldExtractor) Name() string {
	return "regex"
}

// Lookup implements Tier. Only the patterns for the requested field run.
func (f *FieldExtractor) Lookup(field, text string) (any, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	switch field {
	case FieldInvoiceNumber:
		return invoiceNumber(text)
	case FieldPurchaseDate:
		return purchaseDate(text)
	case FieldPurchaseTime:
		return purchaseTime(text)
	case FieldTotalAmount:
		return firstAmount(subTotalFold.ReplaceAllString(text, "SUBTOTAL"), totalPatterns)
	case FieldTaxAmount:
		return firstAmount(text, taxPatterns)
	case FieldSubtotal:
		return firstAmount(subTotalFold.ReplaceAllString(text, "SUBTOTAL"), subtotalPatterns)
	case FieldCurrency:
		return currency(text)
	case FieldPaymentMethod:
		return paymentMethod(text)
	}
	return nil, false
}

// Extract runs every field family and returns whatever matched
func (f *FieldExtractor) Extract(text string) map[string]any {
	out := make(map[string]any)
	for _, field := range []string{
		FieldInvoiceNumber, FieldPurchaseDate, FieldPurchaseTime,
		FieldTotalAmount, FieldTaxAmount, FieldSubtotal,
		FieldCurrency, FieldPaymentMethod,
	} {
		if v, ok := f.Lookup(field, text); ok {
			out[field] = v
		}
	}
	return out
}

func invoiceNumber(text string) (any, bool) {
	upper := strings.ToUpper(text)
	for _, re := range invoicePatterns {
		for _, m := range re.FindAllStringSubmatch(upper, -1) {
			token := strings.Trim(m[1], "-/")
			if strings.ContainsAny(token, "0123456789") {
				return token, true
			}
		}
	}
	return nil, false
}

func purchaseDate(text string) (any, bool) {
	for _, re := range datePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if d, ok := ParseDate(m[1]); ok {
				return d, true
			}
		}
	}
	return nil, false
}

func purchaseTime(text string) (any, bool) {
	for _, re := range timePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if t, ok := ParseTime(m[1]); ok {
				return t, true
			}
		}
	}
	return nil, false
}

func firstAmount(text string, patterns []*regexp.Regexp) (any, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := parseAmount(m[1]); ok {
				return v, true
			}
		}
	}
	return nil, false
}

func currency(text string) (any, bool) {
	upper := strings.ToUpper(text)
	for _, p := range currencyPatterns {
		if p.re.MatchString(upper) {
			return p.code, true
		}
	}
	return nil, false
}

func paymentMethod(text string) (any, bool) {
	upper := strings.ToUpper(text)
	for _, p := range paymentPatterns {
		if p.re.MatchString(upper) {
			return p.method, true
		}
	}
	return nil, false
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
