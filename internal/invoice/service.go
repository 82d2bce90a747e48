package invoice

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/zombor/bill-digitizer/internal/reconcile"
	"github.com/zombor/bill-digitizer/internal/record"
	"github.com/zombor/bill-digitizer/internal/scanning"
)

// ErrPendingNotFound is returned when a scanned bill was never held or has expired
var ErrPendingNotFound = errors.New("pending bill not found")

// DefaultPendingTTL is how long a scanned bill waits for confirmation
const DefaultPendingTTL = 30 * time.Minute

// IDGenerator generates unique IDs for invoices and pending scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// pendingBill is one reconciled page waiting to be saved
type pendingBill struct {
	owner       string
	filename    string
	contentType string
	data        []byte
	page        int
	bill        *record.Bill
}

// Service runs uploads through OCR and reconciliation, holds the results
// until they are confirmed, and persists confirmed bills.
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	pipeline    *reconcile.Pipeline
	pending     *cache.Cache
	idGenerator IDGenerator
	timeSource  TimeSource

	mu         sync.Mutex
	ownerLocks map[string]*sync.Mutex
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, pipeline *reconcile.Pipeline, pendingTTL time.Duration) *Service {
	return NewServiceWithDeps(db, scanner, storage, pipeline, pendingTTL, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, pipeline *reconcile.Pipeline, pendingTTL time.Duration, idGen IDGenerator, timeSrc TimeSource) *Service {
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		pipeline:    pipeline,
		pending:     cache.New(pendingTTL, 2*pendingTTL),
		idGenerator: idGen,
		timeSource:  timeSrc,
		ownerLocks:  make(map[string]*sync.Mutex),
	}
}

var (
	filenameNoise  = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and bounds the length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	if filenameNoise.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = filenameNoise.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "bill"
	}
	return base + ext
}

// Scan reads every page of an upload and reconciles each into a bill. The
// outcomes are held under their PendingID until Save or expiry.
func (s *Service) Scan(owner, filename string, data []byte, contentType string) ([]*reconcile.Outcome, error) {
	raws, err := s.scanner.ScanDocument(data, contentType)
	if err != nil {
		slog.Error("Failed to scan document",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("scanning document: no pages found")
	}

	outcomes, err := s.pipeline.RunPages(raws, owner)
	if err != nil {
		return nil, fmt.Errorf("reconciling document: %w", err)
	}

	for _, out := range outcomes {
		out.PendingID = s.idGenerator.Generate()
		s.pending.Set(out.PendingID, &pendingBill{
			owner:       owner,
			filename:    filename,
			contentType: contentType,
			data:        data,
			page:        out.Page,
			bill:        out.Bill.Clone(),
		}, cache.DefaultExpiration)
	}

	slog.Info("Document scanned", "owner", owner, "filename", filename, "pages", len(outcomes))
	return outcomes, nil
}

// Save persists a pending bill. Duplicates are re-checked under the owner's
// lock so the decision reflects every earlier save.
func (s *Service) Save(pendingID string, overrideSoftDuplicate bool) (*Invoice, error) {
	v, ok := s.pending.Get(pendingID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPendingNotFound, pendingID)
	}
	p := v.(*pendingBill)

	lock := s.ownerLock(p.owner)
	lock.Lock()
	defer lock.Unlock()

	verdict, err := s.pipeline.Recheck(p.bill, p.owner)
	if err != nil {
		return nil, fmt.Errorf("checking duplicates: %w", err)
	}
	if err := s.pipeline.Admit(verdict, overrideSoftDuplicate); err != nil {
		slog.Info("Save rejected", "pending_id", pendingID, "reason", verdict.Reason)
		return nil, err
	}
	if err := p.bill.CheckSchema(); err != nil {
		return nil, fmt.Errorf("validating bill: %w", err)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(p.filename)), p.data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	inv := &Invoice{
		ID:          id,
		Owner:       p.owner,
		Bill:        *p.bill.Clone(),
		Filename:    savedPath,
		ContentType: p.contentType,
		FileHash:    FileHash(p.data),
		Page:        p.page,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.InsertInvoice(inv); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving invoice to database: %w", err)
	}
	s.pending.Delete(pendingID)

	slog.Info("Invoice saved",
		"id", inv.ID,
		"owner", inv.Owner,
		"vendor", inv.VendorName,
		"total", inv.TotalAmount,
		"soft_duplicate_override", verdict.SoftDuplicate && overrideSoftDuplicate,
	)
	return inv, nil
}

func (s *Service) ownerLock(owner string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ownerLocks[owner]
	if !ok {
		l = &sync.Mutex{}
		s.ownerLocks[owner] = l
	}
	return l
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(id string) (*Invoice, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices returns the owner's invoices
func (s *Service) ListInvoices(owner string) ([]*Invoice, error) {
	invoices, err := s.db.ListInvoices(owner)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// DeleteInvoice removes an invoice, its line items and its file
func (s *Service) DeleteInvoice(id string) error {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return fmt.Errorf("getting invoice for deletion: %w", err)
	}

	if err := s.db.DeleteInvoice(id); err != nil {
		return fmt.Errorf("deleting invoice from database: %w", err)
	}

	if err := s.storage.Delete(inv.Filename); err != nil {
		slog.Warn("Failed to delete file", "filename", inv.Filename, "error", err)
	}
	return nil
}

// GetInvoiceFile retrieves the uploaded file behind an invoice
func (s *Service) GetInvoiceFile(id string) ([]byte, string, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice: %w", err)
	}

	data, err := s.storage.Get(inv.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice file: %w", err)
	}

	return data, inv.ContentType, nil
}
