package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/signal.report/internal/anomaly"
	"github.com/banshee-data/signal.report/internal/config"
	"github.com/banshee-data/signal.report/internal/db"
	"github.com/banshee-data/signal.report/internal/kalman"
	"github.com/banshee-data/signal.report/internal/monitoring"
	"github.com/banshee-data/signal.report/internal/render"
	"github.com/banshee-data/signal.report/internal/version"
)

type options struct {
	configPath string
	input      string
	serialPort string
	baud       int
	dbPath     string
	plotPath   string
	plotEvery  int
	chartPath  string
	seed       uint64
	debug      bool
	quiet      bool
	describe   bool
	version    bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("signal-report", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to JSON config (defaults built in)")
	fs.StringVar(&o.input, "input", "", "Read observations from file, one per line ('-' for stdin)")
	fs.StringVar(&o.serialPort, "serial", "", "Read observations from serial port")
	fs.IntVar(&o.baud, "baud", 115200, "Serial baud rate")
	fs.StringVar(&o.dbPath, "db", "", "Record the run to this SQLite database")
	fs.StringVar(&o.plotPath, "plot", "", "Write a plot of the last window (.png, .svg or .pdf)")
	fs.IntVar(&o.plotEvery, "plot-every", 0, "Re-render the plot every N observations (0 = at end only)")
	fs.StringVar(&o.chartPath, "chart", "", "Write an HTML chart of the last window")
	fs.Uint64Var(&o.seed, "seed", 0, "Seed for the synthetic source (0 = from config or clock)")
	fs.BoolVar(&o.debug, "debug", false, "Log every observation")
	fs.BoolVar(&o.quiet, "quiet", false, "Suppress logging")
	fs.BoolVar(&o.describe, "describe", false, "Print the model's steady-state gain and exit")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.input != "" && o.serialPort != "" {
		return o, errors.New("-input and -serial are mutually exclusive")
	}
	return o, nil
}

func loadConfig(o options) (*config.Config, error) {
	cfg := config.EmptyConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch {
	case o.seed != 0:
		cfg.Seed = &o.seed
	case cfg.GetSeed() == 0:
		seed := uint64(time.Now().UnixNano())
		cfg.Seed = &seed
	}
	return cfg, nil
}

// describe prints the steady-state behaviour of a scalar model.
func describe(w io.Writer, cfg *config.Config) error {
	est, err := cfg.NewEstimator()
	if err != nil {
		return err
	}
	n, _, k := est.Dims()
	if n != 1 || k != 1 {
		return fmt.Errorf("steady-state description needs a scalar model, got n=%d k=%d", n, k)
	}
	f := cfg.GetTransition()[0][0]
	h := cfg.GetObservation()[0][0]
	q := cfg.GetProcessNoise()[0][0]
	r := cfg.GetObservationNoise()[0][0]
	p, gain := kalman.SteadyStateScalar(f, h, q, r)
	fmt.Fprintf(w, "steady-state predicted variance: %.6g\n", p)
	fmt.Fprintf(w, "steady-state gain:               %.6g\n", gain)
	fmt.Fprintf(w, "steady-state corrected variance: %.6g\n", (1-gain*h)*p)
	return nil
}

func run(ctx context.Context, o options, stdout io.Writer) error {
	if o.version {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.describe {
		return describe(stdout, cfg)
	}

	est, err := cfg.NewEstimator()
	if err != nil {
		return fmt.Errorf("failed to build estimator: %w", err)
	}
	mon, err := anomaly.NewMonitor(est, cfg.MonitorConfig())
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(cfg.GetSeed(), cfg.GetSeed()^0x9e3779b97f4a7c15))
	src, err := openSource(o, cfg, rng)
	if err != nil {
		return err
	}
	defer src.Close()

	sinks := []anomaly.Sink{render.LogSink{}}

	var plotSink *render.PlotSink
	if o.plotPath != "" {
		plotSink = render.NewPlotSink(o.plotPath, cfg.GetWindowSize(), o.plotEvery)
		sinks = append(sinks, plotSink)
	}
	var chartSink *render.ChartSink
	if o.chartPath != "" {
		chartSink = render.NewChartSink(o.chartPath, "Signal Monitor", cfg.GetWindowSize())
		sinks = append(sinks, chartSink)
	}

	var store *db.DB
	var recorder *db.RunRecorder
	if o.dbPath != "" {
		if store, err = db.NewDB(o.dbPath); err != nil {
			return err
		}
		defer store.Close()

		cfgJSON, err := json.Marshal(cfg.Resolved())
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		runID, err := store.StartRun(src.Name(), cfg.GetThreshold(), string(cfgJSON))
		if err != nil {
			return err
		}
		monitoring.Logf("📼 recording run %s to %s", runID, o.dbPath)
		recorder = store.NewRunRecorder(runID, 0)
		sinks = append(sinks, recorder)
	}

	sum, runErr := anomaly.Run(ctx, mon, src, sinks...)
	if errors.Is(runErr, context.Canceled) {
		monitoring.Logf("interrupted after %d observations", sum.Steps)
		runErr = nil
	}

	if recorder != nil {
		if err := recorder.Close(); err != nil && runErr == nil {
			runErr = err
		}
		if err := store.FinishRun(recorder.RunID(), sum); err != nil && runErr == nil {
			runErr = err
		}
	}
	if plotSink != nil && sum.Steps > 0 {
		if err := plotSink.Render(); err != nil && runErr == nil {
			runErr = err
		}
	}
	if chartSink != nil && sum.Steps > 0 {
		if err := chartSink.Render(); err != nil && runErr == nil {
			runErr = err
		}
	}

	fmt.Fprintf(stdout, "observations=%d anomalies=%d skipped=%d max_residual=%.3f\n",
		sum.Steps, sum.Anomalies, sum.Skipped, sum.MaxScore)
	return runErr
}

// runMain parses args, runs the monitor and returns the process exit code.
// Deferred cleanup always runs before the caller exits.
func runMain(args []string, stdout io.Writer) int {
	o, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		log.Printf("❌ %v", err)
		return 2
	}

	switch {
	case o.quiet:
		monitoring.SetLogger(nil)
	case o.debug:
		monitoring.SetDebug(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, stdout); err != nil {
		log.Printf("❌ %v", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(os.Args[1:], os.Stdout))
}
