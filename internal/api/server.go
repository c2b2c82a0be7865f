// Package api serves analysis results over HTTP as JSON, plain text and an
// HTML dashboard.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/inspection.report/internal/db"
	"github.com/banshee-data/inspection.report/internal/report"
	"github.com/banshee-data/inspection.report/internal/rr"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Store is what the server needs from the database.
type Store interface {
	rr.Source
	ListTests(ctx context.Context) ([]db.Test, error)
	GetTest(ctx context.Context, id int64) (*db.Test, error)
	ListResults(ctx context.Context, testID int64, f db.ResultFilter) ([]db.Result, error)
	ListOperators(ctx context.Context) ([]db.Operator, error)
	ListEvaluators(ctx context.Context) ([]db.Evaluator, error)
}

type Server struct {
	store  Store
	engine *rr.Engine
	topN   int
}

// NewServer returns a server reading from store. topN bounds the confusion
// ranking in the summary and dashboard.
func NewServer(store Store, topN int) *Server {
	return &Server{
		store:  store,
		engine: rr.NewEngine(store),
		topN:   topN,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tests", s.listTests)
	mux.HandleFunc("GET /api/operators", s.listOperators)
	mux.HandleFunc("GET /api/evaluators", s.listEvaluators)
	mux.HandleFunc("GET /api/tests/{id}/results", s.listResults)
	mux.HandleFunc("GET /api/tests/{id}/analysis", s.showAnalysis)
	mux.HandleFunc("GET /api/tests/{id}/repeatability", s.showRepeatability)
	mux.HandleFunc("GET /api/tests/{id}/reproducibility", s.showReproducibility)
	mux.HandleFunc("GET /api/tests/{id}/confusion", s.showConfusion)
	mux.HandleFunc("GET /api/tests/{id}/effectiveness", s.showEffectiveness)
	mux.HandleFunc("GET /api/tests/{id}/summary", s.showSummary)
	mux.HandleFunc("GET /tests/{id}/dashboard", s.showDashboard)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

// testID parses the {id} path segment. On failure it has already written a
// 400 response.
func (s *Server) testID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid test id %q", r.PathValue("id")))
		return 0, false
	}
	return id, true
}

func noData(testID int64) string { return fmt.Sprintf("no data for test %d", testID) }

// records loads the normalized records of the test. It writes the error
// response itself and returns ok=false when there is nothing to serve.
func (s *Server) records(w http.ResponseWriter, r *http.Request) (int64, []rr.Record, bool) {
	id, ok := s.testID(w, r)
	if !ok {
		return 0, nil, false
	}
	records, err := s.engine.Records(r.Context(), id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read test %d: %v", id, err))
		return 0, nil, false
	}
	if len(records) == 0 {
		s.writeJSONError(w, http.StatusNotFound, noData(id))
		return 0, nil, false
	}
	return id, records, true
}

// analysis runs the full engine, writing 404 on ErrNoData and 500 on any
// other failure.
func (s *Server) analysis(w http.ResponseWriter, r *http.Request) (*rr.Analysis, bool) {
	id, ok := s.testID(w, r)
	if !ok {
		return nil, false
	}
	a, err := s.engine.Analyze(r.Context(), id)
	switch {
	case errors.Is(err, rr.ErrNoData):
		s.writeJSONError(w, http.StatusNotFound, noData(id))
		return nil, false
	case err != nil:
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to analyse test %d: %v", id, err))
		return nil, false
	}
	return a, true
}

func (s *Server) listTests(w http.ResponseWriter, r *http.Request) {
	tests, err := s.store.ListTests(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list tests: %v", err))
		return
	}
	if tests == nil {
		tests = []db.Test{}
	}
	s.writeJSON(w, tests)
}

func (s *Server) listOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := s.store.ListOperators(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list operators: %v", err))
		return
	}
	if ops == nil {
		ops = []db.Operator{}
	}
	s.writeJSON(w, ops)
}

func (s *Server) listEvaluators(w http.ResponseWriter, r *http.Request) {
	evs, err := s.store.ListEvaluators(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list evaluators: %v", err))
		return
	}
	if evs == nil {
		evs = []db.Evaluator{}
	}
	s.writeJSON(w, evs)
}

// listResults returns the stored runs of a test, optionally narrowed by
// operator_id and evaluator. format=csv returns the same rows as a CSV
// download.
func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f db.ResultFilter
	if v := q.Get("operator_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'operator_id' parameter")
			return
		}
		f.OperatorID = id
	}
	f.Evaluator = q.Get("evaluator")
	format := q.Get("format")
	if format != "" && format != "json" && format != "csv" {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'format' parameter")
		return
	}

	id, ok := s.testID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetTest(r.Context(), id); errors.Is(err, db.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("test %d not found", id))
		return
	} else if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read test %d: %v", id, err))
		return
	}
	results, err := s.store.ListResults(r.Context(), id, f)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list results: %v", err))
		return
	}
	if results == nil {
		results = []db.Result{}
	}

	if format == "csv" {
		var buf bytes.Buffer
		if err := report.WriteResultsCSV(&buf, results); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to export results: %v", err))
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="results_test_%d.csv"`, id))
		w.Write(buf.Bytes())
		return
	}
	s.writeJSON(w, results)
}

func (s *Server) showAnalysis(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, a)
}

// showRepeatability returns every operator's repeatability, or one
// operator's when operator_id is given.
func (s *Server) showRepeatability(w http.ResponseWriter, r *http.Request) {
	var operatorID int64
	if v := r.URL.Query().Get("operator_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'operator_id' parameter")
			return
		}
		operatorID = id
	}

	testID, records, ok := s.records(w, r)
	if !ok {
		return
	}
	if operatorID == 0 {
		s.writeJSON(w, rr.RepeatabilityAll(records))
		return
	}
	res := rr.Repeatability(records, operatorID)
	if res == nil {
		s.writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("no data for operator %d in test %d", operatorID, testID))
		return
	}
	s.writeJSON(w, res)
}

func (s *Server) showReproducibility(w http.ResponseWriter, r *http.Request) {
	_, records, ok := s.records(w, r)
	if !ok {
		return
	}
	res := rr.Reproducibility(records)
	s.writeJSON(w, struct {
		*rr.ReproducibilityResult
		Tendency []rr.OperatorTendency `json:"tendency"`
	}{res, res.Tendency()})
}

func (s *Server) showConfusion(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}
	_, records, ok := s.records(w, r)
	if !ok {
		return
	}
	items := rr.ConfusionRanking(records)
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}
	s.writeJSON(w, items)
}

func (s *Server) showEffectiveness(w http.ResponseWriter, r *http.Request) {
	_, records, ok := s.records(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, rr.Effectiveness(records))
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, report.Summary(a, s.topN))
}

func (s *Server) showDashboard(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analysis(w, r)
	if !ok {
		return
	}
	title := fmt.Sprintf("Attribute R&R: test %d", a.TestID)
	if t, err := s.store.GetTest(r.Context(), a.TestID); err == nil {
		title = "Attribute R&R: " + t.Name
	} else if !errors.Is(err, db.ErrNotFound) {
		log.Printf("failed to look up test %d: %v", a.TestID, err)
	}

	var buf bytes.Buffer
	if err := report.RenderDashboard(&buf, a, title, s.topN); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render dashboard: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
