package reconcile

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-digitizer/internal/record"
)

func itemsBill(tax, total float64) *record.Bill {
	return &record.Bill{
		VendorName:   "Walmart",
		PurchaseDate: "2024-01-15",
		Subtotal:     100,
		TaxAmount:    tax,
		TotalAmount:  total,
		Currency:     "USD",
		Items: []record.LineItem{
			{ItemName: "A", Quantity: 1, UnitPrice: 40, ItemTotal: 40},
			{ItemName: "B", Quantity: 1, UnitPrice: 60, ItemTotal: 60},
		},
	}
}

var _ = Describe("ValidateAmounts", func() {
	var (
		bill *record.Bill
		res  ValidationResult
		err  error
		tol  float64
	)

	BeforeEach(func() {
		tol = DefaultTolerance
	})

	JustBeforeEach(func() {
		res, err = ValidateAmounts(bill, tol)
	})

	When("tax is added on top of the items", func() {
		BeforeEach(func() {
			bill = itemsBill(10, 110)
		})

		It("accepts the exclusive model", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsValid).To(BeTrue())
			Expect(res.ItemsSum).To(Equal(100.0))
			Expect(res.Errors).To(BeEmpty())
		})
	})

	When("tax is embedded in the items", func() {
		BeforeEach(func() {
			bill = itemsBill(7, 100)
		})

		It("accepts the inclusive model", func() {
			Expect(res.IsValid).To(BeTrue())
		})
	})

	When("the difference is exactly the tolerance", func() {
		BeforeEach(func() {
			bill = itemsBill(10, 110.02)
		})

		It("accepts it", func() {
			Expect(res.IsValid).To(BeTrue())
		})
	})

	When("the difference is just beyond the tolerance", func() {
		BeforeEach(func() {
			bill = itemsBill(10, 110.03)
		})

		It("rejects it", func() {
			Expect(res.IsValid).To(BeFalse())
		})
	})

	When("neither model holds", func() {
		BeforeEach(func() {
			bill = itemsBill(10, 107)
		})

		It("reports a single mismatch with the compared values", func() {
			Expect(res.IsValid).To(BeFalse())
			Expect(res.Errors).To(HaveLen(1))
			Expect(res.Errors[0].Type).To(Equal(ErrorAmountMismatch))
			Expect(res.Errors[0].ItemsSum).To(Equal(100.0))
			Expect(res.Errors[0].TaxAmount).To(Equal(10.0))
			Expect(res.Errors[0].TotalAmount).To(Equal(107.0))
		})

		It("does not touch the bill", func() {
			Expect(bill).To(Equal(itemsBill(10, 107)))
		})

		Describe("Correct", func() {
			It("recomputes subtotal and total from the items", func() {
				c := Correct(bill)
				Expect(c.Subtotal).To(Equal(100.0))
				Expect(c.TaxAmount).To(Equal(10.0))
				Expect(c.TotalAmount).To(Equal(110.0))
				Expect(bill.TotalAmount).To(Equal(107.0))

				again, err := ValidateAmounts(c, DefaultTolerance)
				Expect(err).NotTo(HaveOccurred())
				Expect(again.IsValid).To(BeTrue())
			})
		})
	})

	When("the tolerance is negative", func() {
		BeforeEach(func() {
			bill = itemsBill(10, 110)
			tol = -0.01
		})

		It("is a contract violation", func() {
			Expect(err).To(MatchError(ErrInvalidTolerance))
		})
	})

	When("the tolerance is not a number", func() {
		BeforeEach(func() {
			bill = itemsBill(10, 110)
			tol = math.NaN()
		})

		It("is a contract violation", func() {
			Expect(err).To(MatchError(ErrInvalidTolerance))
		})
	})
})
