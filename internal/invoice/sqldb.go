package invoice

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/zombor/bill-digitizer/internal/record"
)

// dialect holds what differs between the SQL back-ends
type dialect struct {
	driver string
	schema []string
}

var sqliteDialect = dialect{
	driver: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			invoice_number TEXT NOT NULL DEFAULT '',
			vendor_name TEXT NOT NULL,
			purchase_date TEXT NOT NULL,
			purchase_time TEXT NOT NULL DEFAULT '',
			subtotal REAL NOT NULL,
			tax_amount REAL NOT NULL,
			total_amount REAL NOT NULL,
			currency TEXT NOT NULL,
			original_currency TEXT NOT NULL DEFAULT '',
			original_total_amount REAL,
			exchange_rate REAL,
			payment_method TEXT NOT NULL DEFAULT '',
			filename TEXT NOT NULL,
			content_type TEXT NOT NULL,
			file_hash TEXT NOT NULL,
			page INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_candidates ON invoices (owner, purchase_date)`,
		`CREATE TABLE IF NOT EXISTS lineitems (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			item_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price REAL NOT NULL,
			item_total REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lineitems_invoice ON lineitems (invoice_id)`,
	},
}

var mysqlDialect = dialect{
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS invoices (
			id VARCHAR(36) PRIMARY KEY,
			owner VARCHAR(255) NOT NULL,
			invoice_number VARCHAR(255) NOT NULL DEFAULT '',
			vendor_name VARCHAR(255) NOT NULL,
			purchase_date VARCHAR(10) NOT NULL,
			purchase_time VARCHAR(8) NOT NULL DEFAULT '',
			subtotal DECIMAL(14,2) NOT NULL,
			tax_amount DECIMAL(14,2) NOT NULL,
			total_amount DECIMAL(14,2) NOT NULL,
			currency VARCHAR(255) NOT NULL,
			original_currency VARCHAR(255) NOT NULL DEFAULT '',
			original_total_amount DECIMAL(14,2) NULL,
			exchange_rate DECIMAL(18,6) NULL,
			payment_method VARCHAR(255) NOT NULL DEFAULT '',
			filename VARCHAR(255) NOT NULL,
			content_type VARCHAR(255) NOT NULL,
			file_hash CHAR(64) NOT NULL,
			page INT NOT NULL,
			created_at VARCHAR(40) NOT NULL,
			updated_at VARCHAR(40) NOT NULL,
			INDEX idx_invoices_candidates (owner, purchase_date)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS lineitems (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			invoice_id VARCHAR(36) NOT NULL,
			position INT NOT NULL,
			item_name VARCHAR(255) NOT NULL,
			quantity INT NOT NULL,
			unit_price DECIMAL(14,2) NOT NULL,
			item_total DECIMAL(14,2) NOT NULL,
			FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE
		) ENGINE=InnoDB`,
	},
}

const invoiceColumns = `id, owner, invoice_number, vendor_name, purchase_date, purchase_time,
	subtotal, tax_amount, total_amount, currency, original_currency, original_total_amount,
	exchange_rate, payment_method, filename, content_type, file_hash, page, created_at, updated_at`

// SQLDB implements the DB interface on database/sql. Line items sit in their
// own table and are removed by the foreign key cascade.
type SQLDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (and creates if needed) a SQLite database file
func NewSQLiteDB(path string) (*SQLDB, error) {
	db, err := openSQL(sqliteDialect, path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// one writer at a time
	db.db.SetMaxOpenConns(1)
	return db, nil
}

// NewMySQLDB connects to MySQL with a go-sql-driver DSN
func NewMySQLDB(dsn string) (*SQLDB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing mysql dsn: %w", err)
	}
	return openSQL(mysqlDialect, cfg.FormatDSN())
}

func openSQL(d dialect, dsn string) (*SQLDB, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", d.driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", d.driver, err)
	}
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &SQLDB{db: db}, nil
}

// InsertInvoice writes the header and line items in one transaction
func (s *SQLDB) InsertInvoice(inv *Invoice) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Owner, inv.InvoiceNumber, inv.VendorName, inv.PurchaseDate, inv.PurchaseTime,
		inv.Subtotal, inv.TaxAmount, inv.TotalAmount, inv.Currency, inv.OriginalCurrency,
		nullFloat(inv.OriginalTotalAmount), nullFloat(inv.ExchangeRate), inv.PaymentMethod,
		inv.Filename, inv.ContentType, inv.FileHash, inv.Page,
		inv.CreatedAt.UTC().Format(time.RFC3339Nano), inv.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s", ErrInvoiceExists, inv.ID)
	}
	if err != nil {
		return fmt.Errorf("inserting invoice: %w", err)
	}

	for i, it := range inv.Items {
		_, err = tx.Exec(`INSERT INTO lineitems (invoice_id, position, item_name, quantity, unit_price, item_total)
			VALUES (?, ?, ?, ?, ?, ?)`,
			inv.ID, i, it.ItemName, it.Quantity, it.UnitPrice, it.ItemTotal)
		if err != nil {
			return fmt.Errorf("inserting line item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing invoice: %w", err)
	}
	return nil
}

// FindCandidates queries by owner and date, then folds the vendor in Go so
// non-ASCII names match the same way they do in BoltDB
func (s *SQLDB) FindCandidates(filter record.CandidateFilter) ([]record.Summary, error) {
	rows, err := s.db.Query(`SELECT id, vendor_name, purchase_date, invoice_number, total_amount
		FROM invoices
		WHERE owner = ? AND purchase_date = ?`,
		filter.Owner, filter.PurchaseDate)
	if err != nil {
		return nil, fmt.Errorf("finding candidates: %w", err)
	}
	defer rows.Close()

	var summaries []record.Summary
	for rows.Next() {
		var sum record.Summary
		if err := rows.Scan(&sum.ID, &sum.VendorName, &sum.PurchaseDate, &sum.InvoiceNumber, &sum.TotalAmount); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		if !strings.EqualFold(sum.VendorName, filter.VendorName) {
			continue
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding candidates: %w", err)
	}
	return summaries, nil
}

// GetInvoice loads an invoice and its line items
func (s *SQLDB) GetInvoice(id string) (*Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	if err := s.loadItems([]*Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns invoices ordered by purchase date, newest first
func (s *SQLDB) ListInvoices(owner string) ([]*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	var args []any
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	if err := s.loadItems(invoices); err != nil {
		return nil, err
	}
	sortInvoices(invoices)
	return invoices, nil
}

// DeleteInvoice removes an invoice; the lineitems foreign key cascades
func (s *SQLDB) DeleteInvoice(id string) error {
	res, err := s.db.Exec(`DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	if n == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// Close closes the connection pool
func (s *SQLDB) Close() error {
	return s.db.Close()
}

func (s *SQLDB) loadItems(invoices []*Invoice) error {
	for _, inv := range invoices {
		rows, err := s.db.Query(`SELECT item_name, quantity, unit_price, item_total
			FROM lineitems WHERE invoice_id = ? ORDER BY position`, inv.ID)
		if err != nil {
			return fmt.Errorf("loading line items: %w", err)
		}
		inv.Items = []record.LineItem{}
		for rows.Next() {
			var it record.LineItem
			if err := rows.Scan(&it.ItemName, &it.Quantity, &it.UnitPrice, &it.ItemTotal); err != nil {
				rows.Close()
				return fmt.Errorf("scanning line item: %w", err)
			}
			inv.Items = append(inv.Items, it)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("loading line items: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	var (
		inv                  Invoice
		originalTotal, rate  sql.NullFloat64
		createdAt, updatedAt string
	)
	err := row.Scan(&inv.ID, &inv.Owner, &inv.InvoiceNumber, &inv.VendorName, &inv.PurchaseDate, &inv.PurchaseTime,
		&inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount, &inv.Currency, &inv.OriginalCurrency, &originalTotal,
		&rate, &inv.PaymentMethod, &inv.Filename, &inv.ContentType, &inv.FileHash, &inv.Page, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if originalTotal.Valid {
		v := originalTotal.Float64
		inv.OriginalTotalAmount = &v
	}
	if rate.Valid {
		v := rate.Float64
		inv.ExchangeRate = &v
	}
	if inv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if inv.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &inv, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// isDuplicateKey reports a primary-key collision on insert
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
