package scanning

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-digitizer/internal/record"
)

var _ = Describe("parseExtraction", func() {
	var (
		input string
		raw   *record.RawExtraction
	)

	JustBeforeEach(func() {
		raw = parseExtraction(input)
	})

	When("parsing the nested response format", func() {
		BeforeEach(func() {
			input = `{"ocr_text": "WALMART\nTOTAL 110.00", "fields": {"vendor_name": "Walmart", "purchase_date": "2024-01-15", "total_amount": 110.00, "items": [{"item_name": "Milk", "quantity": 2, "unit_price": 2.5, "item_total": 5}]}}`
		})

		It("should keep the OCR text", func() {
			Expect(raw.OCRText).To(Equal("WALMART\nTOTAL 110.00"))
		})

		It("should parse the fields", func() {
			Expect(raw.Fields).To(HaveKeyWithValue("vendor_name", "Walmart"))
			Expect(raw.Fields).To(HaveKeyWithValue("purchase_date", "2024-01-15"))
			Expect(raw.Fields).To(HaveKeyWithValue("total_amount", json.Number("110.00")))
		})

		It("should keep line items as loose maps", func() {
			items, ok := raw.Fields["items"].([]any)
			Expect(ok).To(BeTrue())
			Expect(items).To(HaveLen(1))
			Expect(items[0]).To(HaveKeyWithValue("item_name", "Milk"))
		})
	})

	When("parsing JSON with markdown code blocks", func() {
		BeforeEach(func() {
			input = "```json\n{\"fields\": {\"vendor_name\": \"Test\"}, \"ocr_text\": \"TEST\"}\n```"
		})

		It("should parse the fields", func() {
			Expect(raw.Fields).To(HaveKeyWithValue("vendor_name", "Test"))
			Expect(raw.OCRText).To(Equal("TEST"))
		})
	})

	When("the model answers with a flat object and other key names", func() {
		BeforeEach(func() {
			input = `{"merchant_name": "CVS Pharmacy", "date": "01/15/2024", "total": 25.99, "tax": 1.2, "text": "CVS"}`
		})

		It("should map the aliases onto canonical names", func() {
			Expect(raw.Fields).To(HaveKeyWithValue("vendor_name", "CVS Pharmacy"))
			Expect(raw.Fields).To(HaveKeyWithValue("purchase_date", "01/15/2024"))
			Expect(raw.Fields).To(HaveKeyWithValue("total_amount", json.Number("25.99")))
			Expect(raw.Fields).To(HaveKeyWithValue("tax_amount", json.Number("1.2")))
			Expect(raw.Fields).NotTo(HaveKey("text"))
			Expect(raw.OCRText).To(Equal("CVS"))
		})
	})

	When("both an alias and the canonical name are present", func() {
		BeforeEach(func() {
			input = `{"fields": {"vendor_name": "Target", "vendor": "TGT"}}`
		})

		It("should prefer the canonical name", func() {
			Expect(raw.Fields).To(HaveKeyWithValue("vendor_name", "Target"))
		})
	})

	When("the model returns a null token", func() {
		BeforeEach(func() {
			input = `{"fields": {"vendor_name": null, "invoice_number": "null"}}`
		})

		It("should pass the values through untouched", func() {
			Expect(raw.Fields).To(HaveKeyWithValue("vendor_name", BeNil()))
			Expect(raw.Fields).To(HaveKeyWithValue("invoice_number", "null"))
		})
	})

	When("parsing invalid JSON", func() {
		BeforeEach(func() {
			input = `WALMART {total: oops}`
		})

		It("should fall back to using the response as OCR text", func() {
			Expect(raw.Fields).To(BeEmpty())
			Expect(raw.OCRText).To(Equal(input))
		})
	})

	When("the response has no JSON at all", func() {
		BeforeEach(func() {
			input = "RECEIPT\nACME"
		})

		It("should treat it as OCR text", func() {
			Expect(raw.Fields).To(BeEmpty())
			Expect(raw.OCRText).To(Equal("RECEIPT\nACME"))
		})
	})
})

var _ = Describe("parseEntities", func() {
	It("should parse an entity array", func() {
		entities, err := parseEntities("```json\n[{\"text\": \"Walmart\", \"label\": \"ORG\"}]\n```")
		Expect(err).NotTo(HaveOccurred())
		Expect(entities).To(HaveLen(1))
		Expect(entities[0].Text).To(Equal("Walmart"))
		Expect(entities[0].Label).To(Equal("ORG"))
	})

	It("should return an error without an array", func() {
		_, err := parseEntities("no entities here")
		Expect(err).To(HaveOccurred())
	})
})
