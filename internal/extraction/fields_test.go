package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FieldExtractor", func() {
	var (
		extractor *FieldExtractor
		text      string
		fields    map[string]any
	)

	BeforeEach(func() {
		extractor = NewFieldExtractor()
	})

	JustBeforeEach(func() {
		fields = extractor.Extract(text)
	})

	When("reading a typical receipt", func() {
		BeforeEach(func() {
			text = "WALMART SUPERCENTER\n" +
				"Invoice No: INV-2024-001\n" +
				"Date: 15/01/2024 14:32\n" +
				"Subtotal: 100.00\n" +
				"Tax (10%): 10.00\n" +
				"Total: $110.00\n" +
				"Paid by VISA\n"
		})

		It("finds the invoice number", func() {
			Expect(fields).To(HaveKeyWithValue(FieldInvoiceNumber, "INV-2024-001"))
		})

		It("finds the date and time", func() {
			Expect(fields).To(HaveKeyWithValue(FieldPurchaseDate, "2024-01-15"))
			Expect(fields).To(HaveKeyWithValue(FieldPurchaseTime, "14:32:00"))
		})

		It("does not mistake the subtotal for the total", func() {
			Expect(fields).To(HaveKeyWithValue(FieldTotalAmount, 110.0))
			Expect(fields).To(HaveKeyWithValue(FieldSubtotal, 100.0))
		})

		It("reads tax past a percentage", func() {
			Expect(fields).To(HaveKeyWithValue(FieldTaxAmount, 10.0))
		})

		It("detects currency and payment method", func() {
			Expect(fields).To(HaveKeyWithValue(FieldCurrency, "USD"))
			Expect(fields).To(HaveKeyWithValue(FieldPaymentMethod, "CARD"))
		})
	})

	When("amounts carry a currency code and thousands separators", func() {
		BeforeEach(func() {
			text = "Sub Total RM 1,200.00\nSST 34.50\nGRAND TOTAL: RM 1,234.50\nCASH"
		})

		It("parses the grand total", func() {
			Expect(fields).To(HaveKeyWithValue(FieldTotalAmount, 1234.5))
		})

		It("folds the spaced subtotal label", func() {
			Expect(fields).To(HaveKeyWithValue(FieldSubtotal, 1200.0))
		})

		It("recognizes the ringgit prefix", func() {
			Expect(fields).To(HaveKeyWithValue(FieldCurrency, "MYR"))
			Expect(fields).To(HaveKeyWithValue(FieldPaymentMethod, "CASH"))
		})
	})

	When("all-caps summary lines precede the total", func() {
		BeforeEach(func() {
			text = "MILK 2.00\nTOTAL QTY 2\nSUBTOTAL 40.00\nTOTAL TAX 4.00\nTOTAL 44.00"
		})

		It("skips the quantity and tax lines", func() {
			Expect(fields).To(HaveKeyWithValue(FieldTotalAmount, 44.0))
		})

		It("still reads the tax line as tax", func() {
			Expect(fields).To(HaveKeyWithValue(FieldTaxAmount, 4.0))
		})
	})

	When("a currency code is glued to the amount", func() {
		BeforeEach(func() {
			text = "TOTAL USD45.00"
		})

		It("reads past the code", func() {
			Expect(fields).To(HaveKeyWithValue(FieldTotalAmount, 45.0))
		})
	})

	Describe("total line variants", func() {
		DescribeTable("Lookup",
			func(text string, want float64) {
				v, ok := extractor.Lookup(FieldTotalAmount, text)
				Expect(ok).To(BeTrue())
				Expect(v).To(Equal(want))
			},
			Entry("item count before total", "MILK 2.00\nTOTAL QTY 2\nTOTAL 45.00", 45.0),
			Entry("total tax before total", "SUBTOTAL 40.00\nTOTAL TAX 4.00\nTOTAL 44.00", 44.0),
			Entry("total items before total", "TOTAL ITEMS 3\nTOTAL: 12.00", 12.0),
			Entry("code between label and amount", "TOTAL INR 1,050.00", 1050.0),
		)
	})

	When("the only amount is anchored on a currency symbol", func() {
		BeforeEach(func() {
			text = "Thanks for shopping\nAmount paid €42.10"
		})

		It("uses the symbol amount as the total", func() {
			Expect(fields).To(HaveKeyWithValue(FieldTotalAmount, 42.1))
			Expect(fields).To(HaveKeyWithValue(FieldCurrency, "EUR"))
		})
	})

	When("an invoice marker is followed by a word", func() {
		BeforeEach(func() {
			text = "Invoice date: 2024-03-05\nRef INV-0042"
		})

		It("skips tokens without digits", func() {
			Expect(fields).To(HaveKeyWithValue(FieldInvoiceNumber, "INV-0042"))
		})

		It("reads the ISO date", func() {
			Expect(fields).To(HaveKeyWithValue(FieldPurchaseDate, "2024-03-05"))
		})
	})

	When("a receipt number follows a hash", func() {
		BeforeEach(func() {
			text = "Receipt #A12345"
		})

		It("captures the token", func() {
			Expect(fields).To(HaveKeyWithValue(FieldInvoiceNumber, "A12345"))
		})
	})

	When("the text is empty", func() {
		BeforeEach(func() {
			text = ""
		})

		It("returns no fields", func() {
			Expect(fields).To(BeEmpty())
		})
	})

	When("nothing matches", func() {
		BeforeEach(func() {
			text = "hello world"
		})

		It("omits every key", func() {
			Expect(fields).To(BeEmpty())
		})
	})

	Describe("Lookup", func() {
		It("ignores fields it does not know", func() {
			_, ok := extractor.Lookup(FieldVendorName, "RECEIPT\nACME")
			Expect(ok).To(BeFalse())
		})
	})
})
