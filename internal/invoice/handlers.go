package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/bill-digitizer/internal/reconcile"
)

const maxUploadSize = int64(50 << 20) // 50MB

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes an {"error": ...} body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

type saveRequest struct {
	PendingID             string `json:"pending_id"`
	OverrideSoftDuplicate bool   `json:"override_soft_duplicate"`
}

// handleScanBill runs an uploaded document through OCR and reconciliation
func (s *Server) handleScanBill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromExt(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	outcomes, err := s.service.Scan(r.FormValue("owner"), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error scanning bill", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, outcomes)
}

func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleSaveBill persists a pending bill once duplicates are re-checked
func (s *Server) handleSaveBill(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PendingID == "" {
		jsonError(w, "pending_id is required", http.StatusBadRequest)
		return
	}

	inv, err := s.service.Save(req.PendingID, req.OverrideSoftDuplicate)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, inv)
	case errors.Is(err, ErrPendingNotFound):
		jsonError(w, "Scanned bill not found or expired. Please scan it again.", http.StatusNotFound)
	case errors.Is(err, reconcile.ErrHardDuplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "duplicate": "hard"})
	case errors.Is(err, reconcile.ErrSoftDuplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "duplicate": "soft"})
	default:
		slog.Error("Error saving bill", "pending_id", req.PendingID, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleListBills returns the invoices for ?owner=
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.ListInvoices(r.URL.Query().Get("owner"))
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// handleExportBills returns the owner's invoices as an XLSX workbook
func (s *Server) handleExportBills(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportInvoices(r.URL.Query().Get("owner"))
	if err != nil {
		slog.Error("Error exporting invoices", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bills.xlsx"`)
	w.Write(data)
}

// handleGetBill returns a single invoice
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	inv, err := s.service.GetInvoice(r.PathValue("id"))
	if err != nil {
		notFoundOrError(w, err, "Bill not found")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleGetBillFile returns the original upload for an invoice
func (s *Server) handleGetBillFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetInvoiceFile(r.PathValue("id"))
	if err != nil {
		notFoundOrError(w, err, "File not found")
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteBill deletes an invoice and its line items
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteInvoice(r.PathValue("id")); err != nil {
		notFoundOrError(w, err, "Bill not found")
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

func notFoundOrError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, ErrInvoiceNotFound) || errors.Is(err, fs.ErrNotExist) {
		jsonError(w, notFound, http.StatusNotFound)
		return
	}
	slog.Error("Error handling bill request", "error", err)
	jsonError(w, "Internal server error", http.StatusInternalServerError)
}
