package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"taxlyzer/internal/adapters"
	"taxlyzer/internal/core"
	tlog "taxlyzer/internal/log"
)

type invoiceResponse struct {
	Invoice      core.Invoice        `json:"invoice"`
	Items        []map[string]any    `json:"items"`
	GSTBreakdown core.Breakdown      `json:"gst_breakdown"`
	Totals       core.InvoiceSummary `json:"totals"`
}

type uploadResponse struct {
	Success         bool                `json:"success"`
	InvoiceID       string              `json:"invoice_id"`
	FileName        string              `json:"file_name"`
	Items           []map[string]any    `json:"items"`
	GSTBreakdown    core.Breakdown      `json:"gst_breakdown"`
	Totals          core.InvoiceSummary `json:"totals"`
	ClassifiedCount int                 `json:"classified_count"`
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.invoices.ListInvoices(r.Context())
	if err != nil {
		s.fail(w, r, tlog.OpList, err)
		return
	}
	if invoices == nil {
		invoices = []core.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	detail, err := s.invoices.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, tlog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceResponse{
		Invoice:      detail.Invoice,
		Items:        adapters.ItemsToMaps(detail.Items),
		GSTBreakdown: detail.Breakdown,
		Totals:       detail.Summary,
	})
}

func (s *Server) handleProcessInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, tlog.OpUpload, err)
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "no file selected")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, tlog.OpUpload, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := s.invoices.ProcessUpload(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.fail(w, r, tlog.OpUpload, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:         true,
		InvoiceID:       res.Invoice.ID,
		FileName:        res.Invoice.FileName,
		Items:           adapters.ItemsToMaps(res.Items),
		GSTBreakdown:    res.Breakdown,
		Totals:          core.Summarize(res.Breakdown),
		ClassifiedCount: res.Classified,
	})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := s.invoices.UpdateItem(r.Context(), adapters.PatchFromMap(body))
	if err != nil {
		s.fail(w, r, tlog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"item":    adapters.ItemToMap(item),
	})
}

func (s *Server) handleListSlabs(w http.ResponseWriter, r *http.Request) {
	slabs, err := s.invoices.ListSlabs(r.Context())
	if err != nil {
		s.fail(w, r, tlog.OpList, err)
		return
	}
	if slabs == nil {
		slabs = []core.GSTSlab{}
	}
	writeJSON(w, http.StatusOK, slabs)
}
