package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/banshee-data/signal.report/internal/anomaly"
	"github.com/banshee-data/signal.report/internal/config"
	"github.com/banshee-data/signal.report/internal/monitoring"
	sig "github.com/banshee-data/signal.report/internal/signal"
)

// namedSource is an observation source with a label for run records.
type namedSource struct {
	anomaly.Source
	name   string
	closer io.Closer
}

func (s *namedSource) Name() string { return s.name }

func (s *namedSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// openSource picks serial, file/stdin or synthetic input, in that order.
func openSource(o options, cfg *config.Config, rng *rand.Rand) (*namedSource, error) {
	switch {
	case o.serialPort != "":
		ls, err := sig.OpenSerial(o.serialPort, o.baud)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", o.serialPort, err)
		}
		return &namedSource{Source: ls, name: "serial:" + o.serialPort, closer: ls}, nil

	case o.input == "-":
		return &namedSource{Source: sig.NewLineSource(os.Stdin), name: "stdin"}, nil

	case o.input != "":
		f, err := os.Open(o.input)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		ls := sig.NewLineSource(f)
		return &namedSource{Source: ls, name: "file:" + o.input, closer: ls}, nil
	}

	synth := sig.SyntheticConfig{
		Length:       cfg.GetLength(),
		BaseLevel:    cfg.GetBaseLevel(),
		SeasonLength: cfg.GetSeasonLength(),
		NoiseLevel:   cfg.GetNoiseLevel(),
		TrendSlope:   cfg.GetTrendSlope(),
	}
	if synth.Length == 0 {
		if cfg.GetAnomalies() > 0 {
			monitoring.Logf("unbounded synthetic source: outlier injection is off (anomalies=%d ignored)", cfg.GetAnomalies())
		}
		gen, err := sig.NewSynthetic(synth, rng)
		if err != nil {
			return nil, err
		}
		return &namedSource{Source: gen, name: "synthetic"}, nil
	}

	series, err := sig.Generate(synth, rng)
	if err != nil {
		return nil, err
	}
	// Outliers in both directions.
	for _, offset := range []float64{cfg.GetAnomalyValue(), -cfg.GetAnomalyValue()} {
		var idx []int
		if series, idx, err = sig.InjectAnomalies(series, cfg.GetAnomalies(), offset, rng); err != nil {
			return nil, err
		}
		if len(idx) > 0 {
			monitoring.Logf("💉 injected %+.2f at indices %v", offset, idx)
		}
	}
	return &namedSource{Source: sig.NewSlice(series), name: "synthetic"}, nil
}
