package invoice

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/bill-digitizer/internal/record"
)

const (
	invoiceBucketName  = "invoices"
	lineItemBucketName = "lineitems"
)

// DB defines the interface for database operations
type DB interface {
	// InsertInvoice stores an invoice and its line items atomically
	InsertInvoice(inv *Invoice) error

	// FindCandidates returns prior invoices for the same owner, vendor and date.
	// Vendor names compare case-insensitively.
	FindCandidates(filter record.CandidateFilter) ([]record.Summary, error)

	// GetInvoice retrieves an invoice by ID
	GetInvoice(id string) (*Invoice, error)

	// ListInvoices returns the owner's invoices, newest purchase first.
	// An empty owner lists every invoice.
	ListInvoices(owner string) ([]*Invoice, error)

	// DeleteInvoice removes an invoice together with its line items
	DeleteInvoice(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB. Invoice headers live in
// one bucket; each invoice's line items live in a nested bucket keyed by ID.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(invoiceBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(lineItemBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// InsertInvoice saves the header and line items in one transaction
func (b *BoltDB) InsertInvoice(inv *Invoice) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		invoices := tx.Bucket([]byte(invoiceBucketName))
		if invoices.Get([]byte(inv.ID)) != nil {
			return fmt.Errorf("%w: %s", ErrInvoiceExists, inv.ID)
		}

		header := *inv
		header.Items = nil
		data, err := json.Marshal(header)
		if err != nil {
			return fmt.Errorf("marshaling invoice: %w", err)
		}
		if err := invoices.Put([]byte(inv.ID), data); err != nil {
			return fmt.Errorf("saving invoice: %w", err)
		}

		items, err := tx.Bucket([]byte(lineItemBucketName)).CreateBucket([]byte(inv.ID))
		if err != nil {
			return fmt.Errorf("creating line item bucket: %w", err)
		}
		for i, it := range inv.Items {
			data, err := json.Marshal(it)
			if err != nil {
				return fmt.Errorf("marshaling line item: %w", err)
			}
			if err := items.Put(itemKey(i), data); err != nil {
				return fmt.Errorf("saving line item: %w", err)
			}
		}
		return nil
	})
}

// FindCandidates scans the invoices bucket for possible duplicates
func (b *BoltDB) FindCandidates(filter record.CandidateFilter) ([]record.Summary, error) {
	var summaries []record.Summary
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(invoiceBucketName)).ForEach(func(k, v []byte) error {
			var inv Invoice
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invoice: %w", err)
			}
			if inv.Owner != filter.Owner ||
				inv.PurchaseDate != filter.PurchaseDate ||
				!strings.EqualFold(inv.VendorName, filter.VendorName) {
				return nil
			}
			summaries = append(summaries, inv.Summary(inv.ID))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("finding candidates: %w", err)
	}
	return summaries, nil
}

// GetInvoice retrieves an invoice with its line items
func (b *BoltDB) GetInvoice(id string) (*Invoice, error) {
	var inv *Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(invoiceBucketName)).Get([]byte(id))
		if data == nil {
			return ErrInvoiceNotFound
		}
		var err error
		inv, err = loadInvoice(tx, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns invoices ordered by purchase date, newest first
func (b *BoltDB) ListInvoices(owner string) ([]*Invoice, error) {
	invoices := []*Invoice{}
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(invoiceBucketName)).ForEach(func(k, v []byte) error {
			inv, err := loadInvoice(tx, v)
			if err != nil {
				return err
			}
			if owner == "" || inv.Owner == owner {
				invoices = append(invoices, inv)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	sortInvoices(invoices)
	return invoices, nil
}

// DeleteInvoice removes the header and its line item bucket together
func (b *BoltDB) DeleteInvoice(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		invoices := tx.Bucket([]byte(invoiceBucketName))
		if invoices.Get([]byte(id)) == nil {
			return ErrInvoiceNotFound
		}
		if err := invoices.Delete([]byte(id)); err != nil {
			return fmt.Errorf("deleting invoice: %w", err)
		}
		items := tx.Bucket([]byte(lineItemBucketName))
		if items.Bucket([]byte(id)) != nil {
			if err := items.DeleteBucket([]byte(id)); err != nil {
				return fmt.Errorf("deleting line items: %w", err)
			}
		}
		return nil
	})
}

// Close closes the database
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func loadInvoice(tx *bbolt.Tx, data []byte) (*Invoice, error) {
	var inv Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("unmarshaling invoice: %w", err)
	}
	inv.Items = []record.LineItem{}
	items := tx.Bucket([]byte(lineItemBucketName)).Bucket([]byte(inv.ID))
	if items == nil {
		return &inv, nil
	}
	err := items.ForEach(func(k, v []byte) error {
		var it record.LineItem
		if err := json.Unmarshal(v, &it); err != nil {
			return fmt.Errorf("unmarshaling line item: %w", err)
		}
		inv.Items = append(inv.Items, it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// itemKey keeps line items in insertion order under bbolt's byte ordering
func itemKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

func sortInvoices(invoices []*Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		if invoices[i].PurchaseDate != invoices[j].PurchaseDate {
			return invoices[i].PurchaseDate > invoices[j].PurchaseDate
		}
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
}
