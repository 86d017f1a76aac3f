package anomaly

import (
	"context"
	"errors"
	"fmt"
)

// Source yields observations one at a time in arrival order. ok is false
// once the source is exhausted.
type Source interface {
	Next() (value float64, ok bool, err error)
}

// Sink consumes per-step results, e.g. for display or storage.
type Sink interface {
	Consume(Result) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Result) error

// Consume calls f(r).
func (f SinkFunc) Consume(r Result) error { return f(r) }

// Summary aggregates a run without retaining per-step history.
type Summary struct {
	Steps     int
	Anomalies int
	Skipped   int
	MaxScore  float64
}

// Run pulls observations from src, processes each through m and hands the
// result to every sink in order. Processing is strictly sequential.
//
// Run stops when the source is exhausted, an error occurs, or ctx is done;
// in the last case it returns ctx.Err() together with the partial summary.
func Run(ctx context.Context, m *Monitor, src Source, sinks ...Sink) (Summary, error) {
	var sum Summary
	if m == nil || src == nil {
		return sum, errors.New("anomaly: monitor and source are required")
	}

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		v, ok, err := src.Next()
		if err != nil {
			return sum, fmt.Errorf("failed to read observation %d: %w", sum.Steps, err)
		}
		if !ok {
			return sum, nil
		}

		res, err := m.ProcessScalar(v)
		if err != nil {
			return sum, err
		}

		sum.Steps++
		if res.Anomalous {
			sum.Anomalies++
		}
		if res.Skipped {
			sum.Skipped++
		}
		if res.Score > sum.MaxScore {
			sum.MaxScore = res.Score
		}

		for _, s := range sinks {
			if err := s.Consume(res); err != nil {
				return sum, fmt.Errorf("sink failed at step %d: %w", res.Index, err)
			}
		}
	}
}
