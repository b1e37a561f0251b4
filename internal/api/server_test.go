package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/capture"
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/progressmux"
	"github.com/banshee-data/pulse.report/internal/session"
	"github.com/banshee-data/pulse.report/internal/timeutil"
	"github.com/banshee-data/pulse.report/internal/vitals"
)

func init() { monitoring.SetLogger(nil) }

// memoryHistory is an in-memory sink, journal and history.
type memoryHistory struct {
	mu       sync.Mutex
	ms       []vitals.Measurement
	sessions []session.Summary
}

func (h *memoryHistory) Record(_ context.Context, m vitals.Measurement) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ms = append(h.ms, m)
	return nil
}

func (h *memoryHistory) RecordSession(_ context.Context, s session.Summary) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = append(h.sessions, s)
	return nil
}

func (h *memoryHistory) RecentMeasurements(_ context.Context, limit int) ([]vitals.Measurement, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []vitals.Measurement{}
	for i := len(h.ms) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.ms[i])
	}
	return out, nil
}

func (h *memoryHistory) MeasurementByID(_ context.Context, id string) (vitals.Measurement, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.ms {
		if m.ID == id {
			return m, nil
		}
	}
	return vitals.Measurement{}, db.ErrNotFound
}

func (h *memoryHistory) RecentSessions(_ context.Context, limit int) ([]session.Summary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []session.Summary{}
	for i := len(h.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.sessions[i])
	}
	return out, nil
}

type testServer struct {
	clock   *timeutil.MockClock
	ctrl    *session.Controller
	history *memoryHistory
	mux     *http.ServeMux
}

func newTestServer(t *testing.T, source capture.Source) *testServer {
	t.Helper()
	return newTestServerWithNotify(t, source, nil)
}

// newTestServerWithNotify adds extra best-effort sinks behind the store.
func newTestServerWithNotify(t *testing.T, source capture.Source, extra map[string]vitals.Sink) *testServer {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	if source == nil {
		source = capture.NewSyntheticSource(capture.DefaultSyntheticConfig(), clock)
	}
	cfg := config.EmptyPPGConfig()
	history := &memoryHistory{}
	events := progressmux.New()
	t.Cleanup(events.Close)
	sink := vitals.NewMultiSink()
	sink.Add("history", history)
	sink.Add("events", events)
	ctrl := session.NewController(session.Options{
		Source:    source,
		Config:    cfg,
		Clock:     clock,
		Estimator: ppg.NewEstimator(cfg, nil),
		Sink:      sink,
		Journal:   history,
		Progress:  events.PublishProgress,
	})
	t.Cleanup(ctrl.Close)
	notify := vitals.NewMultiSink()
	notify.Add("events", events)
	for name, extraSink := range extra {
		notify.Add(name, extraSink)
	}
	srv := NewServer(ctrl, vitals.NewRecorder(history, notify, cfg, clock), history, events)
	mux := srv.ServeMux()
	srv.AttachDebugRoutes(mux)
	return &testServer{clock: clock, ctrl: ctrl, history: history, mux: mux}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "127.0.0.1:40000"
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

func (ts *testServer) runSession(n int) {
	for i := 0; i < n; i++ {
		ts.clock.Advance(33 * time.Millisecond)
		ts.ctrl.Tick()
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/session/start", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started session.Session
	decode(t, w, &started)
	assert.Equal(t, session.Recording, started.State)
	assert.NotEmpty(t, started.ID)

	w = ts.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st session.Status
	decode(t, w, &st)
	assert.Equal(t, session.Recording, st.State)
	require.NotNil(t, st.Session)
	assert.Equal(t, started.ID, st.Session.ID)

	w = ts.do(t, http.MethodPost, "/api/session/stop", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stopped session.Session
	decode(t, w, &stopped)
	assert.Equal(t, session.Stopped, stopped.State)

	w = ts.do(t, http.MethodPost, "/api/session/stop", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []session.Summary
	decode(t, w, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.OutcomeStopped, sessions[0].Outcome)
}

func TestSessionMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, path := range []string{"/api/session/start", "/api/session/stop"} {
		w := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
		assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
	}
	w := ts.do(t, http.MethodDelete, "/api/vitals", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStartWithoutCamera(t *testing.T) {
	ts := newTestServer(t, capture.NewDisabledSource())
	w := ts.do(t, http.MethodPost, "/api/session/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}

func TestCompletedSessionAnalysisAndChart(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/session/analysis", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, "/debug/ppg-signal", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/session/start", "").Code)
	ts.runSession(455)

	w = ts.do(t, http.MethodGet, "/api/session/analysis", "")
	require.Equal(t, http.StatusOK, w.Code)
	var a ppg.Analysis
	decode(t, w, &a)
	assert.Len(t, a.Raw, 455)
	assert.Len(t, a.Smoothed, 455)
	assert.NotEmpty(t, a.Peaks)
	assert.Equal(t, ppg.Measured, a.Reading.Provenance)
	assert.InDelta(t, 72, a.Reading.BPM, 1)

	w = ts.do(t, http.MethodGet, "/api/vitals", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Success bool                 `json:"success"`
		Vitals  []vitals.Measurement `json:"vitals"`
	}
	decode(t, w, &list)
	assert.True(t, list.Success)
	require.Len(t, list.Vitals, 1)
	assert.Equal(t, vitals.SourceCamera, list.Vitals[0].Source)

	w = ts.do(t, http.MethodGet, "/debug/ppg-signal", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "PPG Signal")
	assert.Contains(t, w.Body.String(), "threshold")
}

func TestRecordManualVitals(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/vitals", `{"heart_rate":72,"notes":"after a walk"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Success bool               `json:"success"`
		Message string             `json:"message"`
		Data    vitals.Measurement `json:"data"`
	}
	decode(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Vitals recorded", resp.Message)
	assert.Equal(t, 72, resp.Data.BPM)
	assert.Equal(t, vitals.SourceManual, resp.Data.Source)
	assert.Equal(t, "after a walk", resp.Data.Notes)
	assert.True(t, resp.Data.Timestamp.Equal(ts.clock.Now()))

	w = ts.do(t, http.MethodGet, "/api/vitals/"+resp.Data.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got vitals.Measurement
	decode(t, w, &got)
	assert.Equal(t, resp.Data.ID, got.ID)

	w = ts.do(t, http.MethodGet, "/api/vitals/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordManualVitalsSurvivesPublisherFailure(t *testing.T) {
	var published int
	requireDeadline := vitals.SinkFunc(func(ctx context.Context, _ vitals.Measurement) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("nats: context requires a deadline")
		}
		published++
		return nil
	})
	offline := vitals.SinkFunc(func(context.Context, vitals.Measurement) error {
		return errors.New("nats: no servers available for connection")
	})
	ts := newTestServerWithNotify(t, nil, map[string]vitals.Sink{
		"nats":   requireDeadline,
		"mirror": offline,
	})

	w := ts.do(t, http.MethodPost, "/api/vitals", `{"heart_rate":72}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, published)
	assert.Len(t, ts.history.ms, 1)
}

func TestRecordManualVitalsWithTimestamp(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/vitals", `{"heart_rate":64,"timestamp":"2024-05-30T07:15:00Z"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data vitals.Measurement `json:"data"`
	}
	decode(t, w, &resp)
	assert.True(t, resp.Data.Timestamp.Equal(time.Date(2024, 5, 30, 7, 15, 0, 0, time.UTC)))
}

func TestRecordManualVitalsRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"too low", `{"heart_rate":20}`},
		{"too high", `{"heart_rate":260}`},
		{"missing", `{"notes":"no rate"}`},
		{"not a number", `{"heart_rate":"fast"}`},
		{"unknown field", `{"heart_rate":72,"spo2":98}`},
		{"malformed", `{"heart_rate":`},
		{"empty", ``},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/vitals", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			ts.mux.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Empty(t, ts.history.ms)
		})
	}
}

func TestListLimit(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, bpm := range []int{60, 70, 80} {
		require.Equal(t, http.StatusCreated,
			ts.do(t, http.MethodPost, "/api/vitals", `{"heart_rate":`+strconv.Itoa(bpm)+`}`).Code)
	}

	w := ts.do(t, http.MethodGet, "/api/vitals?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Vitals []vitals.Measurement `json:"vitals"`
	}
	decode(t, w, &list)
	require.Len(t, list.Vitals, 2)
	assert.Equal(t, 80, list.Vitals[0].BPM)
	assert.Equal(t, 70, list.Vitals[1].BPM)

	for _, bad := range []string{"0", "-3", "many"} {
		w = ts.do(t, http.MethodGet, "/api/vitals?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestLoggingMiddlewareKeepsStatus(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Len(t, lines, 1)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(503))
	assert.Equal(t, "101", statusCodeColor(101))
}
