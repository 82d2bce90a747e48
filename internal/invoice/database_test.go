package invoice

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-digitizer/internal/record"
)

func sampleInvoice(id, owner, vendor, date string) *Invoice {
	rate := 0.012
	original := 9166.67
	return &Invoice{
		ID:    id,
		Owner: owner,
		Bill: record.Bill{
			InvoiceNumber:       "INV-" + id,
			VendorName:          vendor,
			PurchaseDate:        date,
			PurchaseTime:        "14:32:00",
			Subtotal:            100,
			TaxAmount:           10,
			TotalAmount:         110,
			Currency:            "USD",
			OriginalCurrency:    "INR",
			OriginalTotalAmount: &original,
			ExchangeRate:        &rate,
			PaymentMethod:       "CARD",
			Items: []record.LineItem{
				{ItemName: "First", Quantity: 1, UnitPrice: 40, ItemTotal: 40},
				{ItemName: "Second", Quantity: 2, UnitPrice: 30, ItemTotal: 60},
			},
		},
		Filename:    id + "_receipt.jpg",
		ContentType: "image/jpeg",
		FileHash:    FileHash([]byte(id)),
		Page:        1,
		CreatedAt:   time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

// describeDB runs the DB contract against one back-end
func describeDB(name string, open func(dir string) (DB, error)) {
	Describe(name, func() {
		var db DB

		BeforeEach(func() {
			var err error
			db, err = open(GinkgoT().TempDir())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			if db != nil {
				db.Close()
			}
		})

		Describe("InsertInvoice and GetInvoice", func() {
			var (
				inv *Invoice
				got *Invoice
				err error
			)

			BeforeEach(func() {
				inv = sampleInvoice("a", "alice", "Acme", "2024-01-15")
			})

			JustBeforeEach(func() {
				Expect(db.InsertInvoice(inv)).To(Succeed())
				got, err = db.GetInvoice(inv.ID)
			})

			It("should round-trip every field", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Owner).To(Equal("alice"))
				Expect(got.Bill.InvoiceNumber).To(Equal("INV-a"))
				Expect(got.PurchaseTime).To(Equal("14:32:00"))
				Expect(got.TotalAmount).To(Equal(110.0))
				Expect(*got.OriginalTotalAmount).To(Equal(9166.67))
				Expect(*got.ExchangeRate).To(Equal(0.012))
				Expect(got.FileHash).To(Equal(inv.FileHash))
				Expect(got.CreatedAt.Equal(inv.CreatedAt)).To(BeTrue())
			})

			It("should keep line items in order", func() {
				Expect(got.Items).To(Equal(inv.Items))
			})

			When("optional amounts are unset", func() {
				BeforeEach(func() {
					inv.OriginalTotalAmount = nil
					inv.ExchangeRate = nil
					inv.Items = nil
				})

				It("should leave them unset", func() {
					Expect(got.OriginalTotalAmount).To(BeNil())
					Expect(got.ExchangeRate).To(BeNil())
					Expect(got.Items).To(BeEmpty())
				})
			})

			It("should refuse the same ID twice", func() {
				Expect(db.InsertInvoice(inv)).To(MatchError(ErrInvoiceExists))
			})
		})

		Describe("GetInvoice for an unknown ID", func() {
			It("should return ErrInvoiceNotFound", func() {
				_, err := db.GetInvoice("missing")
				Expect(err).To(MatchError(ErrInvoiceNotFound))
			})
		})

		Describe("FindCandidates", func() {
			BeforeEach(func() {
				Expect(db.InsertInvoice(sampleInvoice("a", "alice", "Acme Store", "2024-01-15"))).To(Succeed())
				Expect(db.InsertInvoice(sampleInvoice("b", "alice", "Acme Store", "2024-01-16"))).To(Succeed())
				Expect(db.InsertInvoice(sampleInvoice("c", "bob", "Acme Store", "2024-01-15"))).To(Succeed())
				Expect(db.InsertInvoice(sampleInvoice("d", "alice", "Other", "2024-01-15"))).To(Succeed())
			})

			It("should match owner, date and vendor case-insensitively", func() {
				found, err := db.FindCandidates(record.CandidateFilter{
					Owner: "alice", VendorName: "ACME STORE", PurchaseDate: "2024-01-15",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(HaveLen(1))
				Expect(found[0].ID).To(Equal("a"))
				Expect(found[0].InvoiceNumber).To(Equal("INV-a"))
				Expect(found[0].TotalAmount).To(Equal(110.0))
			})

			It("should fold non-ASCII vendor names", func() {
				Expect(db.InsertInvoice(sampleInvoice("e", "alice", "Café Ünion", "2024-01-15"))).To(Succeed())
				found, err := db.FindCandidates(record.CandidateFilter{
					Owner: "alice", VendorName: "CAFÉ ÜNION", PurchaseDate: "2024-01-15",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(HaveLen(1))
				Expect(found[0].ID).To(Equal("e"))
			})

			It("should return nothing when no bill matches", func() {
				found, err := db.FindCandidates(record.CandidateFilter{
					Owner: "alice", VendorName: "Acme Store", PurchaseDate: "2023-12-31",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeEmpty())
			})
		})

		Describe("ListInvoices", func() {
			BeforeEach(func() {
				Expect(db.InsertInvoice(sampleInvoice("a", "alice", "Acme", "2024-01-15"))).To(Succeed())
				Expect(db.InsertInvoice(sampleInvoice("b", "alice", "Acme", "2024-03-01"))).To(Succeed())
				Expect(db.InsertInvoice(sampleInvoice("c", "bob", "Acme", "2024-02-01"))).To(Succeed())
			})

			It("should list one owner's invoices newest first", func() {
				invoices, err := db.ListInvoices("alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(invoices).To(HaveLen(2))
				Expect(invoices[0].ID).To(Equal("b"))
				Expect(invoices[1].ID).To(Equal("a"))
				Expect(invoices[0].Items).To(HaveLen(2))
			})

			It("should list everything for an empty owner", func() {
				invoices, err := db.ListInvoices("")
				Expect(err).NotTo(HaveOccurred())
				Expect(invoices).To(HaveLen(3))
			})

			It("should return an empty list for an unknown owner", func() {
				invoices, err := db.ListInvoices("carol")
				Expect(err).NotTo(HaveOccurred())
				Expect(invoices).NotTo(BeNil())
				Expect(invoices).To(BeEmpty())
			})
		})

		Describe("DeleteInvoice", func() {
			BeforeEach(func() {
				Expect(db.InsertInvoice(sampleInvoice("a", "alice", "Acme", "2024-01-15"))).To(Succeed())
			})

			It("should remove the invoice", func() {
				Expect(db.DeleteInvoice("a")).To(Succeed())
				_, err := db.GetInvoice("a")
				Expect(err).To(MatchError(ErrInvoiceNotFound))
			})

			It("should allow the ID to be reused with fresh line items", func() {
				Expect(db.DeleteInvoice("a")).To(Succeed())
				again := sampleInvoice("a", "alice", "Acme", "2024-01-15")
				again.Items = again.Items[:1]
				Expect(db.InsertInvoice(again)).To(Succeed())
				got, err := db.GetInvoice("a")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Items).To(HaveLen(1))
			})

			It("should report unknown IDs", func() {
				Expect(db.DeleteInvoice("missing")).To(MatchError(ErrInvoiceNotFound))
			})
		})
	})
}

var _ = Describe("DB back-ends", func() {
	describeDB("BoltDB", func(dir string) (DB, error) {
		return NewBoltDB(filepath.Join(dir, "test.db"))
	})

	describeDB("SQLite", func(dir string) (DB, error) {
		return NewSQLiteDB(filepath.Join(dir, "test.sqlite"))
	})
})

var _ = Describe("SQLDB cascade", func() {
	It("should drop line items with their invoice", func() {
		db, err := NewSQLiteDB(filepath.Join(GinkgoT().TempDir(), "cascade.sqlite"))
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		Expect(db.InsertInvoice(sampleInvoice("a", "alice", "Acme", "2024-01-15"))).To(Succeed())
		Expect(db.DeleteInvoice("a")).To(Succeed())

		var n int
		Expect(db.db.QueryRow(`SELECT COUNT(*) FROM lineitems`).Scan(&n)).To(Succeed())
		Expect(n).To(BeZero())
	})
})

var _ = Describe("NewMySQLDB", func() {
	It("should reject a malformed DSN before dialing", func() {
		_, err := NewMySQLDB("not a dsn")
		Expect(err).To(MatchError(ContainSubstring("parsing mysql dsn")))
	})
})
