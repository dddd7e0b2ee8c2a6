package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"

	"github.com/openmedicaid/claimlens/internal/analysis"
	"github.com/openmedicaid/claimlens/internal/cache"
	"github.com/openmedicaid/claimlens/internal/insight"
	"github.com/openmedicaid/claimlens/internal/logger"
	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/outlier"
	"github.com/openmedicaid/claimlens/internal/storage"
)

// Cache status header values.
const (
	cacheHeader = "X-Cache"
	cacheHit    = "HIT"
	cacheMiss   = "MISS"
)

var errNoReport = errors.New("no report available yet")

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	rep := s.opts.Reports.Current()
	if rep == nil {
		writeError(w, r, http.StatusServiceUnavailable, errNoReport.Error())
		return
	}
	render.JSON(w, r, ok(map[string]interface{}{
		"status":      "ready",
		"report_id":   rep.ID,
		"computed_at": rep.ComputedAt,
	}))
}

// current returns the current report or writes 503.
func (s *Server) current(w http.ResponseWriter, r *http.Request) *analysis.Report {
	rep := s.opts.Reports.Current()
	if rep == nil {
		writeError(w, r, http.StatusServiceUnavailable, errNoReport.Error())
	}
	return rep
}

// cached writes the response built by build, serving it from the cache when
// an entry for this report and key exists.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, rep *analysis.Report, name string, build func() interface{}) {
	key := cache.Key(rep.ID, name)
	if s.opts.Cache != nil {
		if body, err := s.opts.Cache.Get(r.Context(), key); err == nil {
			writeJSON(w, cacheHit, body)
			return
		} else if !errors.Is(err, cache.ErrMiss) {
			logger.Warn("Response cache read failed for %s: %v", key, err)
		}
	}

	body, err := json.Marshal(build())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to encode response")
		return
	}
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Set(r.Context(), key, body); err != nil {
			logger.Warn("Response cache write failed for %s: %v", key, err)
		}
	}
	writeJSON(w, cacheMiss, body)
}

func writeJSON(w http.ResponseWriter, cacheStatus string, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set(cacheHeader, cacheStatus)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	rep := s.current(w, r)
	if rep == nil {
		return
	}
	s.cached(w, r, rep, "report", func() interface{} { return ok(rep) })
}

func (s *Server) charts(w http.ResponseWriter, r *http.Request) {
	rep := s.current(w, r)
	if rep == nil {
		return
	}
	s.cached(w, r, rep, "charts", func() interface{} { return ok(rep.Charts) })
}

type insightsResponse struct {
	Insights []models.Insight `json:"insights"`
	Summary  insight.Summary  `json:"summary"`
}

func (s *Server) insights(w http.ResponseWriter, r *http.Request) {
	rep := s.current(w, r)
	if rep == nil {
		return
	}

	category := models.InsightCategory(strings.ToLower(r.URL.Query().Get("category")))
	if category != "" && !category.Valid() {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown insight category %q", category))
		return
	}

	s.cached(w, r, rep, "insights:"+string(category), func() interface{} {
		list := rep.Insights
		if category != "" {
			list = rep.TopInsights(category, len(rep.Insights))
			if list == nil {
				list = []models.Insight{}
			}
		}
		return ok(insightsResponse{Insights: list, Summary: rep.Summary})
	})
}

func (s *Server) outliers(w http.ResponseWriter, r *http.Request) {
	rep := s.current(w, r)
	if rep == nil {
		return
	}

	q := r.URL.Query()
	population := q.Get("population")
	if population == "" {
		population = outlier.PopulationProviderSpending
	}
	if !knownPopulation(rep, population) {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown population %q", population))
		return
	}

	source := strings.ToLower(q.Get("source"))
	switch source {
	case "", "computed":
		source = "computed"
	case "curated":
	default:
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown outlier source %q", source))
		return
	}

	page := cast.ToInt(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	size := cast.ToInt(q.Get("size"))
	if size <= 0 || size > s.opts.PageSize {
		size = s.opts.PageSize
	}

	entries := rep.Entries(population, source == "curated")
	resp := &PaginatedResponse{
		Status: StatusOK,
		Msg:    "ok",
		Data:   []models.OutlierEntry{},
		Total:  int64(len(entries)),
		Page:   page,
		Size:   size,
	}

	// Pages past the end are empty and never cached, so the key space stays
	// bounded by the entry count.
	if page > pageCount(len(entries), size) {
		writeJSONValue(w, r, resp)
		return
	}

	name := fmt.Sprintf("outliers:%s:%s:%d:%d", population, source, page, size)
	s.cached(w, r, rep, name, func() interface{} {
		start := (page - 1) * size
		end := min(start+size, len(entries))
		resp.Data = entries[start:end]
		return resp
	})
}

func pageCount(n, size int) int {
	return (n + size - 1) / size
}

func writeJSONValue(w http.ResponseWriter, r *http.Request, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to encode response")
		return
	}
	writeJSON(w, cacheMiss, body)
}

func knownPopulation(rep *analysis.Report, population string) bool {
	if _, ok := rep.Outliers[population]; ok {
		return true
	}
	_, ok := rep.Curated[population]
	return ok
}

func (s *Server) federal(w http.ResponseWriter, r *http.Request) {
	rep := s.current(w, r)
	if rep == nil {
		return
	}
	s.cached(w, r, rep, "federal", func() interface{} { return ok(rep.Federal) })
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, r, http.StatusNotFound, "report history is not enabled")
		return
	}
	limit := cast.ToInt(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	metas, err := s.opts.History.ListReports(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to list reports: %v", err)
		writeError(w, r, http.StatusInternalServerError, "failed to list reports")
		return
	}
	render.JSON(w, r, ok(metas))
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, r, http.StatusNotFound, "report history is not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	rep, err := s.opts.History.GetReport(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Error("Failed to load report %s: %v", id, err)
		writeError(w, r, http.StatusInternalServerError, "failed to load report")
		return
	}
	render.JSON(w, r, ok(rep))
}
