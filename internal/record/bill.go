package record

// Bill is the canonical structured form of a scanned receipt or invoice
type Bill struct {
	InvoiceNumber       string     `json:"invoice_number,omitempty"`
	VendorName          string     `json:"vendor_name"`
	PurchaseDate        string     `json:"purchase_date"`           // YYYY-MM-DD
	PurchaseTime        string     `json:"purchase_time,omitempty"` // HH:MM:SS
	Subtotal            float64    `json:"subtotal"`
	TaxAmount           float64    `json:"tax_amount"`
	TotalAmount         float64    `json:"total_amount"`
	Currency            string     `json:"currency"`
	OriginalCurrency    string     `json:"original_currency,omitempty"`
	OriginalTotalAmount *float64   `json:"original_total_amount,omitempty"`
	ExchangeRate        *float64   `json:"exchange_rate,omitempty"`
	PaymentMethod       string     `json:"payment_method,omitempty"`
	Items               []LineItem `json:"items"`
}

// LineItem is a single purchased line on a bill
type LineItem struct {
	ItemName  string  `json:"item_name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	ItemTotal float64 `json:"item_total"`
}

// RawExtraction is what the OCR collaborator returns for one document page.
// Fields is untrusted and may be empty.
type RawExtraction struct {
	Fields  map[string]any `json:"json_fields"`
	OCRText string         `json:"ocr_text"`
}

// Summary is the projection of a stored bill used for duplicate matching
type Summary struct {
	ID            string  `json:"id"`
	VendorName    string  `json:"vendor_name"`
	PurchaseDate  string  `json:"purchase_date"`
	InvoiceNumber string  `json:"invoice_number,omitempty"`
	TotalAmount   float64 `json:"total_amount"`
}

// CandidateFilter narrows prior bills to those that could be duplicates.
// VendorName is matched case-insensitively.
type CandidateFilter struct {
	Owner        string
	VendorName   string
	PurchaseDate string
}

// Clone returns a deep copy so the line items are never shared between bills
func (b *Bill) Clone() *Bill {
	if b == nil {
		return nil
	}
	c := *b
	if b.OriginalTotalAmount != nil {
		v := *b.OriginalTotalAmount
		c.OriginalTotalAmount = &v
	}
	if b.ExchangeRate != nil {
		v := *b.ExchangeRate
		c.ExchangeRate = &v
	}
	c.Items = make([]LineItem, len(b.Items))
	copy(c.Items, b.Items)
	return &c
}

// Fields flattens the bill back into the loose mapping shape the normalizer accepts.
// Optional fields that are unset are left out.
func (b *Bill) Fields() map[string]any {
	m := map[string]any{
		"vendor_name":   b.VendorName,
		"purchase_date": b.PurchaseDate,
		"subtotal":      b.Subtotal,
		"tax_amount":    b.TaxAmount,
		"total_amount":  b.TotalAmount,
		"currency":      b.Currency,
	}
	if b.InvoiceNumber != "" {
		m["invoice_number"] = b.InvoiceNumber
	}
	if b.PurchaseTime != "" {
		m["purchase_time"] = b.PurchaseTime
	}
	if b.PaymentMethod != "" {
		m["payment_method"] = b.PaymentMethod
	}
	if b.OriginalCurrency != "" {
		m["original_currency"] = b.OriginalCurrency
	}
	if b.OriginalTotalAmount != nil {
		m["original_total_amount"] = *b.OriginalTotalAmount
	}
	if b.ExchangeRate != nil {
		m["exchange_rate"] = *b.ExchangeRate
	}
	items := make([]any, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, map[string]any{
			"item_name":  it.ItemName,
			"quantity":   it.Quantity,
			"unit_price": it.UnitPrice,
			"item_total": it.ItemTotal,
		})
	}
	m["items"] = items
	return m
}

// Summary projects the bill for duplicate matching
func (b *Bill) Summary(id string) Summary {
	return Summary{
		ID:            id,
		VendorName:    b.VendorName,
		PurchaseDate:  b.PurchaseDate,
		InvoiceNumber: b.InvoiceNumber,
		TotalAmount:   b.TotalAmount,
	}
}
