package scanning

// billScanPrompt is the shared prompt used by all LLM providers for scanning bills
const billScanPrompt = `You are reading a scanned receipt or invoice. Transcribe all of the text you can see, then extract the structured fields.

Return ONLY valid JSON in this exact format:
{
  "ocr_text": "every line of text on the document, top to bottom, separated by \n",
  "fields": {
    "invoice_number": "string or null",
    "vendor_name": "merchant or business name",
    "purchase_date": "YYYY-MM-DD",
    "purchase_time": "HH:MM:SS or null",
    "subtotal": 0.00,
    "tax_amount": 0.00,
    "total_amount": 0.00,
    "currency": "ISO 4217 code such as USD, INR, EUR, GBP, MYR",
    "payment_method": "CASH, CARD, UPI, NET BANKING, WALLET or null",
    "items": [
      {"item_name": "string", "quantity": 1, "unit_price": 0.00, "item_total": 0.00}
    ]
  }
}

Important:
- Amounts must be numbers, not strings, without currency symbols
- If you cannot find a field, use null for that field
- Do not invent line items that are not printed on the document
- Do not include any text before or after the JSON`

// entityPrompt asks the model for named entities in OCR text
const entityPrompt = `Find the named entities in the following text taken from a receipt or invoice.
Label organizations ORG, people PERSON and places GPE.

Return ONLY a JSON array in this exact format:
[{"text": "entity text", "label": "ORG"}]

Text:
`
