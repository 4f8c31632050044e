package http

import (
	"net/http"

	"taxlyzer/internal/analytics"
	"taxlyzer/internal/core"
	tlog "taxlyzer/internal/log"
)

func (s *Server) handleGSTStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.GSTStatistics(r.Context())
	if err != nil {
		s.fail(w, r, tlog.OpAggregate, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrendAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dr, err := core.ParseDateRange(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		s.fail(w, r, tlog.OpValidate, err)
		return
	}
	trend, err := s.stats.TrendAnalysis(r.Context(), dr.Start, dr.End, q.Get("group_by"))
	if err != nil {
		s.fail(w, r, tlog.OpAggregate, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleTopHSNCodes(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r.URL.Query().Get("limit"), analytics.DefaultTopHSN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	top, err := s.stats.TopHSNCodes(r.Context(), limit)
	if err != nil {
		s.fail(w, r, tlog.OpAggregate, err)
		return
	}
	if top == nil {
		top = []core.HSNSummary{}
	}
	writeJSON(w, http.StatusOK, top)
}

func (s *Server) handleSlabDistribution(w http.ResponseWriter, r *http.Request) {
	dist, err := s.stats.SlabDistribution(r.Context())
	if err != nil {
		s.fail(w, r, tlog.OpAggregate, err)
		return
	}
	if dist == nil {
		dist = []core.SlabSummary{}
	}
	writeJSON(w, http.StatusOK, dist)
}
