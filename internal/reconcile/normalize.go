package reconcile

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/zombor/bill-digitizer/internal/extraction"
	"github.com/zombor/bill-digitizer/internal/record"
)

// MaxTextLength is the storage ceiling for free-text columns
const MaxTextLength = 255

// UnknownVendor is used when no tier produced a vendor name
const UnknownVendor = "Unknown"

var currencySymbols = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"€":   "EUR",
	"£":   "GBP",
	"₹":   "INR",
	"RS":  "INR",
	"RS.": "INR",
	"RM":  "MYR",
}

// Normalize coerces a loosely typed field mapping into a Bill. Values that
// cannot be parsed fall back to safe defaults; today supplies the date when
// none is usable. Normalizing the Fields of a normalized bill returns an
// equal bill.
func Normalize(fields map[string]any, today time.Time) *record.Bill {
	b := &record.Bill{
		InvoiceNumber: optionalText(fields[extraction.FieldInvoiceNumber]),
		VendorName:    optionalText(fields[extraction.FieldVendorName]),
		PurchaseDate:  today.Format("2006-01-02"),
		Currency:      currencyCode(fields[extraction.FieldCurrency]),
		PaymentMethod: strings.ToUpper(optionalText(fields[extraction.FieldPaymentMethod])),
		Items:         normalizeItems(fields["items"]),
	}
	if b.VendorName == "" {
		b.VendorName = UnknownVendor
	}
	if s, ok := fields[extraction.FieldPurchaseDate].(string); ok {
		if d, ok := extraction.ParseDate(s); ok {
			b.PurchaseDate = d
		}
	} else if t, ok := fields[extraction.FieldPurchaseDate].(time.Time); ok && !t.IsZero() {
		b.PurchaseDate = t.Format("2006-01-02")
	}
	if s, ok := fields[extraction.FieldPurchaseTime].(string); ok {
		if t, ok := extraction.ParseTime(s); ok {
			b.PurchaseTime = t
		}
	}

	subtotal, hasSubtotal := money(fields[extraction.FieldSubtotal])
	tax, hasTax := money(fields[extraction.FieldTaxAmount])
	total, hasTotal := money(fields[extraction.FieldTotalAmount])
	// a zero placeholder is as good as missing
	hasSubtotal = hasSubtotal && !subtotal.IsZero()
	hasTax = hasTax && !tax.IsZero()
	hasTotal = hasTotal && !total.IsZero()

	if !hasTotal && len(b.Items) > 0 {
		total = itemsSum(b.Items).Add(tax)
		hasTotal = true
	}
	if !hasTax && hasSubtotal && hasTotal {
		tax = decimal.Max(total.Sub(subtotal), decimal.Zero)
	}

	b.Subtotal = round2(subtotal)
	b.TaxAmount = round2(tax)
	b.TotalAmount = round2(total)

	if oc := optionalText(fields["original_currency"]); oc != "" {
		b.OriginalCurrency = strings.ToUpper(oc)
	}
	if ot, ok := money(fields["original_total_amount"]); ok {
		v := round2(ot)
		b.OriginalTotalAmount = &v
	}
	if r, ok := money(fields["exchange_rate"]); ok && r.IsPositive() {
		v := r.Round(6).InexactFloat64()
		b.ExchangeRate = &v
	}
	return b
}

func normalizeItems(v any) []record.LineItem {
	var raw []map[string]any
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				raw = append(raw, m)
			}
		}
	case []map[string]any:
		raw = t
	case []record.LineItem:
		for _, it := range t {
			raw = append(raw, map[string]any{
				"item_name":  it.ItemName,
				"quantity":   it.Quantity,
				"unit_price": it.UnitPrice,
				"item_total": it.ItemTotal,
			})
		}
	}

	items := make([]record.LineItem, 0, len(raw))
	for _, m := range raw {
		name, _ := asText(m["item_name"])
		qty := quantity(m["quantity"])
		unit, _ := money(m["unit_price"])
		total, hasTotal := money(m["item_total"])
		if !hasTotal {
			if _, hasQty := m["quantity"]; hasQty {
				total = unit.Mul(decimal.NewFromInt(int64(qty)))
			}
		}
		items = append(items, record.LineItem{
			ItemName:  truncate(strings.TrimSpace(name)),
			Quantity:  qty,
			UnitPrice: round2(unit),
			ItemTotal: round2(total),
		})
	}
	return items
}

func itemsSum(items []record.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.ItemTotal))
	}
	return sum
}

// optionalText returns trimmed, truncated text or "" for blank values
func optionalText(v any) string {
	if extraction.IsBlank(v) {
		return ""
	}
	s, ok := asText(v)
	if !ok {
		return ""
	}
	return truncate(strings.Join(strings.Fields(s), " "))
}

func asText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxTextLength {
		return s
	}
	return string([]rune(s)[:MaxTextLength])
}

func currencyCode(v any) string {
	s := strings.ToUpper(optionalText(v))
	if s == "" {
		return "USD"
	}
	if code, ok := currencySymbols[s]; ok {
		return code
	}
	return s
}

// money parses a non-negative monetary amount. Currency symbols, codes,
// spaces and thousands separators in strings are ignored.
func money(v any) (decimal.Decimal, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil || d.IsNegative() {
			return decimal.Zero, false
		}
		return d, true
	case string:
		d, ok := parseMoneyString(t)
		if !ok {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func parseMoneyString(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func quantity(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		f, _ = t.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(f))
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
