package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"taxlyzer/internal/core"
	tlog "taxlyzer/internal/log"
	"taxlyzer/internal/services"
)

type gstr1Request struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Format    string `json:"format"`
}

func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.InvoicePDF(r.Context(), r.PathValue("id"))
	s.serveReport(w, r, rep, err)
}

func (s *Server) handleInvoiceJSON(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.InvoiceJSON(r.Context(), r.PathValue("id"))
	s.serveReport(w, r, rep, err)
}

func (s *Server) handleGSTR1(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req gstr1Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	dr, err := core.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		s.fail(w, r, tlog.OpValidate, err)
		return
	}
	rep, err := s.reports.GSTR1(r.Context(), dr.Start, dr.End, strings.ToLower(strings.TrimSpace(req.Format)))
	s.serveReport(w, r, rep, err)
}

func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, rep services.Report, err error) {
	if err != nil {
		s.fail(w, r, tlog.OpReport, err)
		return
	}
	if rep.ArchiveURI != "" {
		w.Header().Set("X-Archive-URI", rep.ArchiveURI)
	}
	writeAttachment(w, rep.ContentType, rep.FileName, rep.Body)
}
