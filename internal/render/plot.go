package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/banshee-data/signal.report/internal/anomaly"
	"github.com/banshee-data/signal.report/internal/fsutil"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrEmptyWindow is returned when there is nothing to render.
var ErrEmptyWindow = errors.New("render: window is empty")

var (
	observationColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	estimateColor    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	anomalyColor     = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// PlotSink renders the observation, the corrected estimate and the flagged
// points of its window to an image file (PNG, SVG or PDF by extension).
type PlotSink struct {
	path   string
	fs     fsutil.FileSystem
	window *Window
	every  int
	seen   int
}

// NewPlotSink writes to path. When every > 0 the image is re-rendered after
// every that many results, otherwise only on Render.
func NewPlotSink(path string, windowSize, every int) *PlotSink {
	return &PlotSink{path: path, fs: fsutil.OSFileSystem{}, window: NewWindow(windowSize), every: every}
}

// WithFileSystem redirects output to fs.
func (s *PlotSink) WithFileSystem(fs fsutil.FileSystem) *PlotSink {
	s.fs = fs
	return s
}

// Consume records r and re-renders on the configured cadence.
func (s *PlotSink) Consume(r anomaly.Result) error {
	s.window.Add(r)
	s.seen++
	if s.every > 0 && s.seen%s.every == 0 {
		return s.Render()
	}
	return nil
}

// Render writes the current window to the sink's path.
func (s *PlotSink) Render() error {
	pts := s.window.Points()
	if len(pts) == 0 {
		return ErrEmptyWindow
	}

	p := plot.New()
	p.Title.Text = "Signal, Estimate and Anomalies"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Value"

	obs := make(plotter.XYs, 0, len(pts))
	est := make(plotter.XYs, 0, len(pts))
	var flagged plotter.XYs
	for _, pt := range pts {
		x := float64(pt.Index)
		obs = append(obs, plotter.XY{X: x, Y: pt.Observation})
		est = append(est, plotter.XY{X: x, Y: pt.Estimate})
		if pt.Anomalous {
			flagged = append(flagged, plotter.XY{X: x, Y: pt.Observation})
		}
	}

	obsLine, err := plotter.NewLine(obs)
	if err != nil {
		return fmt.Errorf("observation line: %w", err)
	}
	obsLine.Color = observationColor
	obsLine.Width = vg.Points(1)
	p.Add(obsLine)
	p.Legend.Add("Observation", obsLine)

	estLine, err := plotter.NewLine(est)
	if err != nil {
		return fmt.Errorf("estimate line: %w", err)
	}
	estLine.Color = estimateColor
	estLine.Width = vg.Points(1.5)
	p.Add(estLine)
	p.Legend.Add("Estimate", estLine)

	if len(flagged) > 0 {
		scatter, err := plotter.NewScatter(flagged)
		if err != nil {
			return fmt.Errorf("anomaly scatter: %w", err)
		}
		scatter.GlyphStyle.Color = anomalyColor
		scatter.GlyphStyle.Radius = vg.Points(3)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
		p.Legend.Add("Anomaly", scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = true

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(s.path), "."))
	if format == "" {
		format = "png"
	}
	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return writeOutput(s.fs, s.path, buf.Bytes())
}

func writeOutput(fs fsutil.FileSystem, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := fs.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
