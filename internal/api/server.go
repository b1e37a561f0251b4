// Package api serves the heart-rate session, history and manual-entry
// endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/pulse.report/internal/capture"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/httputil"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/progressmux"
	"github.com/banshee-data/pulse.report/internal/session"
	"github.com/banshee-data/pulse.report/internal/vitals"
)

// ANSI escape codes for the request log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// History is the read side of the measurement store.
type History interface {
	RecentMeasurements(ctx context.Context, limit int) ([]vitals.Measurement, error)
	MeasurementByID(ctx context.Context, id string) (vitals.Measurement, error)
	RecentSessions(ctx context.Context, limit int) ([]session.Summary, error)
}

// Server wires the session controller, manual recorder, history and live
// event hub to HTTP handlers.
type Server struct {
	ctrl     *session.Controller
	recorder *vitals.Recorder
	history  History
	events   *progressmux.Mux
}

// NewServer creates a Server. events may be nil, in which case the live
// streams are not mounted.
func NewServer(ctrl *session.Controller, recorder *vitals.Recorder, history History, events *progressmux.Mux) *Server {
	return &Server{
		ctrl:     ctrl,
		recorder: recorder,
		history:  history,
		events:   events,
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

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
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

// LoggingMiddleware logs method, path, query, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns a mux with every API route registered.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", s.showSession)
	mux.HandleFunc("/api/session/start", s.startSession)
	mux.HandleFunc("/api/session/stop", s.stopSession)
	mux.HandleFunc("/api/session/analysis", s.showAnalysis)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/vitals", s.vitals)
	mux.HandleFunc("/api/vitals/", s.showMeasurement)
	if s.events != nil {
		mux.HandleFunc("/api/session/events", s.events.ServeSSE)
		mux.HandleFunc("/api/session/ws", s.events.ServeWS)
	}
	return mux
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capture.ErrDeviceUnavailable):
		httputil.ServiceUnavailable(w, err.Error())
	case errors.Is(err, session.ErrNotRecording):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, vitals.ErrBPMOutOfRange):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, db.ErrNotFound):
		httputil.NotFound(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, s.ctrl.Status())
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	sess, err := s.ctrl.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess)
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	sess, err := s.ctrl.Stop()
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, sess)
}

func (s *Server) showAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	a, ok := s.ctrl.LastAnalysis()
	if !ok {
		httputil.NotFound(w, "no completed session")
		return
	}
	httputil.WriteJSONOK(w, a)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	sessions, err := s.history.RecentSessions(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) vitals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listVitals(w, r)
	case http.MethodPost:
		s.recordVitals(w, r)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := db.DefaultHistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return 0, false
		}
		limit = n
	}
	return limit, true
}

func (s *Server) listVitals(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	ms, err := s.history.RecentMeasurements(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"success": true,
		"vitals":  ms,
	})
}

// vitalsRequest is the manual-entry payload.
type vitalsRequest struct {
	HeartRate *int       `json:"heart_rate"`
	Timestamp *time.Time `json:"timestamp"`
	Notes     string     `json:"notes"`
}

func (s *Server) recordVitals(w http.ResponseWriter, r *http.Request) {
	var req vitalsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.HeartRate == nil {
		httputil.BadRequest(w, "heart_rate is required")
		return
	}
	var at time.Time
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	m, err := s.recorder.RecordManual(r.Context(), *req.HeartRate, at, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Vitals recorded",
		"data":    m,
	})
}

func (s *Server) showMeasurement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/vitals/"), "/")
	if id == "" {
		httputil.NotFound(w, "missing measurement id")
		return
	}
	m, err := s.history.MeasurementByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, m)
}
