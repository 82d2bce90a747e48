package invoice

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	billsSheet     = "Bills"
	lineItemsSheet = "Line Items"
)

var (
	billHeaders = []string{
		"ID", "Owner", "Invoice Number", "Vendor", "Purchase Date", "Purchase Time",
		"Subtotal", "Tax", "Total", "Currency", "Original Currency", "Original Total",
		"Exchange Rate", "Payment Method", "Page", "Filename", "Saved At",
	}
	lineItemHeaders = []string{"Invoice ID", "Vendor", "Purchase Date", "Item", "Quantity", "Unit Price", "Item Total"}
)

// ExportXLSX renders invoices as a workbook with one sheet of bills and one
// of their line items.
func ExportXLSX(invoices []*Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", billsSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(lineItemsSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	if err := writeRow(f, billsSheet, 1, toCells(billHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, lineItemsSheet, 1, toCells(lineItemHeaders)); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, inv := range invoices {
		row := []any{
			inv.ID, inv.Owner, inv.InvoiceNumber, inv.VendorName, inv.PurchaseDate, inv.PurchaseTime,
			inv.Subtotal, inv.TaxAmount, inv.TotalAmount, inv.Currency, inv.OriginalCurrency,
			optional(inv.OriginalTotalAmount), optional(inv.ExchangeRate),
			inv.PaymentMethod, inv.Page, inv.Filename, inv.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writeRow(f, billsSheet, i+2, row); err != nil {
			return nil, err
		}
		for _, it := range inv.Items {
			row := []any{inv.ID, inv.VendorName, inv.PurchaseDate, it.ItemName, it.Quantity, it.UnitPrice, it.ItemTotal}
			if err := writeRow(f, lineItemsSheet, itemRow, row); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	_ = f.SetColWidth(billsSheet, "A", "B", 38)
	_ = f.SetColWidth(billsSheet, "C", "D", 28)
	_ = f.SetColWidth(lineItemsSheet, "A", "A", 38)
	_ = f.SetColWidth(lineItemsSheet, "D", "D", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing xlsx: %w", err)
	}
	slog.Info("Invoices exported", "bills", len(invoices), "line_items", itemRow-2)
	return buf.Bytes(), nil
}

// ExportInvoices builds the workbook for an owner's invoices
func (s *Service) ExportInvoices(owner string) ([]byte, error) {
	invoices, err := s.ListInvoices(owner)
	if err != nil {
		return nil, err
	}
	return ExportXLSX(invoices)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("locating row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(headers []string) []any {
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	return cells
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
