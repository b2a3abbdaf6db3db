package handler

import (
	"log/slog"
	"net/http"

	"credit-engine/internal/ingest"
)

// ImportHandler exposes the seed-data loaders over HTTP so operators
// can replay the historical CSV files into a fresh database.
type ImportHandler struct {
	importer *ingest.Importer
	logger   *slog.Logger
}

func NewImportHandler(importer *ingest.Importer, l *slog.Logger) *ImportHandler {
	if importer == nil {
		panic("importer cannot be nil")
	}
	return &ImportHandler{
		importer: importer,
		logger:   l.With("component", "ImportHandler"),
	}
}

// ImportCustomers handles POST /admin/import/customers
// @Summary Bulk import customers from CSV
// @Description Loads customer rows from the uploaded CSV body. Existing customers are left untouched; row-level problems are reported without aborting the import.
// @Tags Admin
// @Accept text/csv
// @Produce json
// @Success 200 {object} ingest.Result "Import summary"
// @Failure 400 {object} dto.ErrorResponse "Malformed CSV"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/import/customers [post]
// @Security BearerAuth
func (h *ImportHandler) ImportCustomers(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	result, err := h.importer.ImportCustomers(r.Context(), r.Body)
	if err != nil {
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer import via API finished",
		slog.Int("imported", result.Imported), slog.Int("errors", len(result.Errors)))
	respondJSON(w, http.StatusOK, result)
}

// ImportLoans handles POST /admin/import/loans
// @Summary Bulk import loans from CSV
// @Description Loads loan rows from the uploaded CSV body. Rows referencing unknown customers are reported and skipped.
// @Tags Admin
// @Accept text/csv
// @Produce json
// @Success 200 {object} ingest.Result "Import summary"
// @Failure 400 {object} dto.ErrorResponse "Malformed CSV"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/import/loans [post]
// @Security BearerAuth
func (h *ImportHandler) ImportLoans(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	result, err := h.importer.ImportLoans(r.Context(), r.Body)
	if err != nil {
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Loan import via API finished",
		slog.Int("imported", result.Imported), slog.Int("errors", len(result.Errors)))
	respondJSON(w, http.StatusOK, result)
}
