package main

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

var (
	rawColor      = color.RGBA{R: 170, G: 170, B: 170, A: 255}
	smoothedColor = color.RGBA{R: 200, G: 30, B: 45, A: 255}
	peakColor     = color.RGBA{R: 20, G: 90, B: 200, A: 255}
)

// buildPlot lays out the raw and smoothed series, the threshold line and
// the peak markers on one plot.
func buildPlot(a ppg.Analysis) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("PPG signal - %d bpm (%s)", a.Reading.BPM, a.Reading.Provenance)
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Red intensity"

	if len(a.Raw) == 0 {
		return p, nil
	}

	rawPts := make(plotter.XYs, len(a.Raw))
	for i, v := range a.Raw {
		rawPts[i] = plotter.XY{X: float64(i), Y: v}
	}
	rawLine, err := plotter.NewLine(rawPts)
	if err != nil {
		return nil, err
	}
	rawLine.Color = rawColor
	rawLine.Width = vg.Points(0.5)
	p.Add(rawLine)
	p.Legend.Add("raw", rawLine)

	if len(a.Smoothed) > 0 {
		smPts := make(plotter.XYs, len(a.Smoothed))
		for i, v := range a.Smoothed {
			smPts[i] = plotter.XY{X: float64(i), Y: v}
		}
		smLine, err := plotter.NewLine(smPts)
		if err != nil {
			return nil, err
		}
		smLine.Color = smoothedColor
		smLine.Width = vg.Points(1)
		p.Add(smLine)
		p.Legend.Add("smoothed", smLine)

		thLine, err := plotter.NewLine(plotter.XYs{
			{X: 0, Y: a.Threshold},
			{X: float64(len(a.Smoothed) - 1), Y: a.Threshold},
		})
		if err != nil {
			return nil, err
		}
		thLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		thLine.Width = vg.Points(1)
		p.Add(thLine)
		p.Legend.Add("threshold", thLine)
	}

	peakPts := make(plotter.XYs, 0, len(a.Peaks))
	for _, i := range a.Peaks {
		if i >= 0 && i < len(a.Smoothed) {
			peakPts = append(peakPts, plotter.XY{X: float64(i), Y: a.Smoothed[i]})
		}
	}
	if len(peakPts) > 0 {
		sc, err := plotter.NewScatter(peakPts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = peakColor
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("peaks", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// renderPlot writes the analysis as a PNG.
func renderPlot(a ppg.Analysis, path string) error {
	p, err := buildPlot(a)
	if err != nil {
		return err
	}
	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}
