// Package render turns monitor results into pictures and log lines. Every
// sink keeps its own bounded Window of recent points; nothing is global.
package render

import "github.com/banshee-data/signal.report/internal/anomaly"

// DefaultWindowSize is the number of recent points a sink displays.
const DefaultWindowSize = 100

// Point is one displayed step.
type Point struct {
	Index       int
	Observation float64
	Predicted   float64
	Estimate    float64 // corrected estimate
	Anomalous   bool    // the monitor's causal decision, never recomputed here
}

// Window is a fixed-capacity ring of the most recent points.
type Window struct {
	buf   []Point
	start int
	size  int
}

// NewWindow returns a window holding up to capacity points. A
// non-positive capacity uses DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{buf: make([]Point, capacity)}
}

// Add appends the first component of r, evicting the oldest point when full.
func (w *Window) Add(r anomaly.Result) {
	p := Point{
		Index:       r.Index,
		Observation: r.Value(),
		Predicted:   r.PredictedValue(),
		Estimate:    r.CorrectedValue(),
		Anomalous:   r.Anomalous,
	}
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = p
		w.size++
		return
	}
	w.buf[w.start] = p
	w.start = (w.start + 1) % len(w.buf)
}

// Len returns the number of points held.
func (w *Window) Len() int { return w.size }

// Points returns the held points, oldest first.
func (w *Window) Points() []Point {
	out := make([]Point, w.size)
	for i := range out {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}
