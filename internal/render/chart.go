package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/banshee-data/signal.report/internal/anomaly"
	"github.com/banshee-data/signal.report/internal/fsutil"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartSink renders its window as an interactive HTML line chart.
type ChartSink struct {
	path   string
	title  string
	fs     fsutil.FileSystem
	window *Window
}

// NewChartSink writes HTML to path on Render.
func NewChartSink(path, title string, windowSize int) *ChartSink {
	if title == "" {
		title = "Signal Monitor"
	}
	return &ChartSink{path: path, title: title, fs: fsutil.OSFileSystem{}, window: NewWindow(windowSize)}
}

// WithFileSystem redirects output to fs.
func (s *ChartSink) WithFileSystem(fs fsutil.FileSystem) *ChartSink {
	s.fs = fs
	return s
}

// Consume records r.
func (s *ChartSink) Consume(r anomaly.Result) error {
	s.window.Add(r)
	return nil
}

// Render writes the chart to the sink's path.
func (s *ChartSink) Render() error {
	var buf bytes.Buffer
	if err := s.RenderTo(&buf); err != nil {
		return err
	}
	return writeOutput(s.fs, s.path, buf.Bytes())
}

// RenderTo renders the chart HTML to w.
func (s *ChartSink) RenderTo(w io.Writer) error {
	pts := s.window.Points()
	if len(pts) == 0 {
		return ErrEmptyWindow
	}

	xs := make([]int, len(pts))
	obs := make([]opts.LineData, len(pts))
	est := make([]opts.LineData, len(pts))
	flagged := make([]opts.ScatterData, len(pts))
	anomalies := 0
	for i, pt := range pts {
		xs[i] = pt.Index
		obs[i] = opts.LineData{Value: pt.Observation}
		est[i] = opts.LineData{Value: pt.Estimate}
		if pt.Anomalous {
			flagged[i] = opts.ScatterData{Value: pt.Observation, Symbol: "circle", SymbolSize: 10}
			anomalies++
		} else {
			// "-" is an empty slot in ECharts.
			flagged[i] = opts.ScatterData{Value: "-"}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: s.title, Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: s.title, Subtitle: fmt.Sprintf("steps %d-%d anomalies=%d", xs[0], xs[len(xs)-1], anomalies)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Step", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Value"}),
	)
	line.SetXAxis(xs).
		AddSeries("Observation", obs, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#1f77b4"})).
		AddSeries("Estimate", est, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff7f0e"}))

	scatter := charts.NewScatter()
	scatter.SetXAxis(xs).
		AddSeries("Anomaly", flagged, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d62728"}))
	line.Overlap(scatter)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
