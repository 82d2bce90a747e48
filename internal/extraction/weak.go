package extraction

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field names shared by every tier and by the normalizer
const (
	FieldInvoiceNumber = "invoice_number"
	FieldVendorName    = "vendor_name"
	FieldPurchaseDate  = "purchase_date"
	FieldPurchaseTime  = "purchase_time"
	FieldSubtotal      = "subtotal"
	FieldTaxAmount     = "tax_amount"
	FieldTotalAmount   = "total_amount"
	FieldCurrency      = "currency"
	FieldPaymentMethod = "payment_method"
)

// IsWeak reports whether a value is too unreliable to keep and should trigger
// the next extraction tier. Models sometimes serialize their own null token as
// text, so "null" and "undefined" count as absent. Numeric zero is weak too;
// use IsWeakField for fields where zero is a real value.
func IsWeak(v any) bool {
	return IsBlank(v) || isZero(v)
}

// IsWeakField applies the zero rule only to monetary fields, so an invoice
// number such as "000" survives.
func IsWeakField(field string, v any) bool {
	if IsMonetary(field) {
		return IsWeak(v)
	}
	return IsBlank(v)
}

// IsMonetary reports whether field holds an amount
func IsMonetary(field string) bool {
	switch field {
	case FieldSubtotal, FieldTaxAmount, FieldTotalAmount:
		return true
	}
	return false
}

// IsBlank reports nil, empty or whitespace strings and null tokens
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	t, ok := v.(string)
	if !ok {
		return false
	}
	s := strings.TrimSpace(t)
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "null", "undefined", "none", "nil":
		return true
	}
	return false
}

func isZero(v any) bool {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return err == nil && f == 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case float32:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case int32:
		return t == 0
	case uint:
		return t == 0
	case uint64:
		return t == 0
	}
	return false
}
