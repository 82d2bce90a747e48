package invoice

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

var _ = Describe("ExportXLSX", func() {
	var (
		invoices []*Invoice
		book     *excelize.File
	)

	BeforeEach(func() {
		first := sampleInvoice("a", "alice", "Acme", "2024-01-15")
		second := sampleInvoice("b", "alice", "Bolt Hardware", "2024-01-20")
		second.OriginalCurrency = ""
		second.OriginalTotalAmount = nil
		second.ExchangeRate = nil
		second.Items = second.Items[:1]
		invoices = []*Invoice{first, second}
	})

	JustBeforeEach(func() {
		data, err := ExportXLSX(invoices)
		Expect(err).NotTo(HaveOccurred())
		book, err = excelize.OpenReader(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		book.Close()
	})

	It("should have a bills sheet and a line items sheet", func() {
		Expect(book.GetSheetList()).To(Equal([]string{"Bills", "Line Items"}))
	})

	It("should write one row per bill below the header", func() {
		rows, err := book.GetRows("Bills")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[0][0]).To(Equal("ID"))
		Expect(rows[1][0]).To(Equal("a"))
		Expect(rows[1][3]).To(Equal("Acme"))
		Expect(rows[1][8]).To(Equal("110"))
		Expect(rows[2][3]).To(Equal("Bolt Hardware"))
	})

	It("should write every line item tagged with its invoice", func() {
		rows, err := book.GetRows("Line Items")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(4))
		Expect(rows[1][0]).To(Equal("a"))
		Expect(rows[1][3]).To(Equal("First"))
		Expect(rows[3][0]).To(Equal("b"))
	})

	When("there are no invoices", func() {
		BeforeEach(func() {
			invoices = nil
		})

		It("should still produce both headers", func() {
			rows, err := book.GetRows("Line Items")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
		})
	})
})
