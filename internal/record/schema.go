package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// billSchema is the storage contract for a finished bill. Anything that fails it
// is a bug upstream of persistence, not bad OCR input.
const billSchema = `{
  "type": "object",
  "required": ["vendor_name", "purchase_date", "subtotal", "tax_amount", "total_amount", "currency", "items"],
  "properties": {
    "invoice_number":        {"type": "string", "maxLength": 255},
    "vendor_name":           {"type": "string", "minLength": 1, "maxLength": 255},
    "purchase_date":         {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "purchase_time":         {"type": "string", "pattern": "^\\d{2}:\\d{2}:\\d{2}$"},
    "subtotal":              {"type": "number", "minimum": 0},
    "tax_amount":            {"type": "number", "minimum": 0},
    "total_amount":          {"type": "number", "minimum": 0},
    "currency":              {"type": "string", "minLength": 1, "maxLength": 255},
    "original_currency":     {"type": "string", "maxLength": 255},
    "original_total_amount": {"type": "number", "minimum": 0},
    "exchange_rate":         {"type": "number", "exclusiveMinimum": 0},
    "payment_method":        {"type": "string", "maxLength": 255},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["item_name", "quantity", "unit_price", "item_total"],
        "properties": {
          "item_name":  {"type": "string", "maxLength": 255},
          "quantity":   {"type": "integer", "minimum": 0},
          "unit_price": {"type": "number", "minimum": 0},
          "item_total": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("bill.json", strings.NewReader(billSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("bill.json")
	})
	return compiledSchema, compileErr
}

// CheckSchema validates the bill against the storage contract
func (b *Bill) CheckSchema() error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compiling bill schema: %w", err)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling bill: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshaling bill: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("bill does not match schema: %w", err)
	}
	return nil
}
