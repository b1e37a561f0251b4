package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// echartsAssetsHost serves the echarts bundle for debug pages.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// AttachDebugRoutes adds the signal chart to the tsweb debug index on mux.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("ppg-signal", "Raw and smoothed signal of the last session", http.HandlerFunc(s.handleSignalChart))
}

func (s *Server) handleSignalChart(w http.ResponseWriter, r *http.Request) {
	a, ok := s.ctrl.LastAnalysis()
	if !ok {
		http.Error(w, "no completed session", http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := renderSignalChart(&buf, a); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func renderSignalChart(buf *bytes.Buffer, a ppg.Analysis) error {
	raw := make([]opts.LineData, len(a.Raw))
	for i, v := range a.Raw {
		raw[i] = opts.LineData{Value: []interface{}{i, v}}
	}
	smoothed := make([]opts.LineData, len(a.Smoothed))
	for i, v := range a.Smoothed {
		smoothed[i] = opts.LineData{Value: []interface{}{i, v}}
	}
	peaks := make([]opts.ScatterData, 0, len(a.Peaks))
	for _, p := range a.Peaks {
		if p < len(a.Smoothed) {
			peaks = append(peaks, opts.ScatterData{Value: []interface{}{p, a.Smoothed[p]}})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "PPG Signal", Width: "100%", Height: "640px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    "PPG Signal",
			Subtitle: fmt.Sprintf("bpm=%d provenance=%s samples=%d peaks=%d", a.Reading.BPM, a.Reading.Provenance, len(a.Raw), len(a.Peaks)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "sample", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "intensity", Min: "dataMin", Max: "dataMax"}),
	)
	line.AddSeries("raw", raw, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.AddSeries("smoothed", smoothed,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "threshold", YAxis: a.Threshold}),
	)

	scatter := charts.NewScatter()
	scatter.AddSeries("peaks", peaks, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	line.Overlap(scatter)

	return line.Render(buf)
}
