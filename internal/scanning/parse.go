package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/bill-digitizer/internal/extraction"
	"github.com/zombor/bill-digitizer/internal/record"
)

// fieldAliases maps names models sometimes use onto the canonical field names
var fieldAliases = map[string]string{
	"invoice":        extraction.FieldInvoiceNumber,
	"invoice_no":     extraction.FieldInvoiceNumber,
	"receipt_number": extraction.FieldInvoiceNumber,
	"vendor":         extraction.FieldVendorName,
	"merchant":       extraction.FieldVendorName,
	"merchant_name":  extraction.FieldVendorName,
	"store_name":     extraction.FieldVendorName,
	"title":          extraction.FieldVendorName,
	"date":           extraction.FieldPurchaseDate,
	"time":           extraction.FieldPurchaseTime,
	"tax":            extraction.FieldTaxAmount,
	"total":          extraction.FieldTotalAmount,
	"amount":         extraction.FieldTotalAmount,
	"payment":        extraction.FieldPaymentMethod,
	"line_items":     "items",
}

// stripCodeFence removes markdown code blocks around a model response
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseExtraction reads a model response into a raw extraction. The fields
// are untrusted; when the response is not a JSON object the whole response
// becomes OCR text so the fallback tiers still have something to read.
func parseExtraction(text string) *record.RawExtraction {
	text = stripCodeFence(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return &record.RawExtraction{Fields: map[string]any{}, OCRText: text}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text[start : end+1])))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return &record.RawExtraction{Fields: map[string]any{}, OCRText: text}
	}

	raw := &record.RawExtraction{Fields: map[string]any{}}
	for _, key := range []string{"ocr_text", "raw_text", "text"} {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			raw.OCRText = s
			break
		}
	}

	fields, ok := obj["fields"].(map[string]any)
	if !ok {
		fields = obj
	}
	for k, v := range fields {
		key := strings.ToLower(strings.TrimSpace(k))
		switch key {
		case "ocr_text", "raw_text", "text", "fields":
			continue
		}
		if canonical, ok := fieldAliases[key]; ok {
			if _, exists := fields[canonical]; exists {
				continue
			}
			key = canonical
		}
		raw.Fields[key] = v
	}
	return raw
}

// parseEntities reads a JSON array of entities from a model response
func parseEntities(text string) ([]extraction.Entity, error) {
	text = stripCodeFence(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var entities []extraction.Entity
	if err := json.Unmarshal([]byte(text[start:end+1]), &entities); err != nil {
		return nil, fmt.Errorf("unmarshaling entities: %w", err)
	}
	return entities, nil
}
