package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/qnn/internal/cores"
	"github.com/samcharles93/qnn/internal/logger"
	"github.com/samcharles93/qnn/internal/memory"
	"github.com/samcharles93/qnn/internal/pipeline"
	"github.com/samcharles93/qnn/internal/tensor"
	"github.com/samcharles93/qnn/internal/timing"
)

type benchReport struct {
	ID         string           `json:"id"`
	Pipeline   string           `json:"pipeline"`
	DType      string           `json:"dtype"`
	Input      []int            `json:"input_shape"`
	Autoload   bool             `json:"autoload"`
	Dispatcher string           `json:"dispatcher"`
	Cores      string           `json:"cores"`
	Warmup     int64            `json:"warmup"`
	Runs       int64            `json:"runs"`
	Total      time.Duration    `json:"total_ns"`
	Layers     []timing.Summary `json:"layers"`
	Staging    memory.Stats     `json:"staging"`
}

func (r benchReport) perRun() time.Duration {
	if r.Runs == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Runs)
}

func benchCmd() *cli.Command {
	var (
		warmupRuns int64
		benchRuns  int64
		input      string
		shapeArg   string
		seed       uint64
		jsonOut    bool
	)

	flags := append([]cli.Flag{}, pipelineFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       10,
			Destination: &warmupRuns,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of timed runs",
			Value:       100,
			Destination: &benchRuns,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "input tensor file; the first tensor is used",
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "shape",
			Usage:       "synthetic input shape H,W,C when no --input is given",
			Value:       "32,32,64",
			Destination: &shapeArg,
		},
		&cli.Uint64Flag{
			Name:        "seed",
			Usage:       "seed for the synthetic input",
			Value:       1,
			Destination: &seed,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print the report as JSON",
			Destination: &jsonOut,
		},
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Measure per-layer build and call latency",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if benchRuns < 1 {
				return cli.Exit("--runs must be at least 1", 1)
			}

			pcfg, err := pipeline.LoadConfig(pipelineArg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			env, err := setupRuntime(ctx, true)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer env.Close(log)
			stage := applyAutoloadConfig(cmd, fileConfig, pcfg.Autoload)

			in, err := benchInput(input, shapeArg, pcfg.DType, seed)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			rec := timing.NewRecorder()
			opts := env.opts
			opts.Timer = rec
			r, err := pipeline.New(pcfg, opts, log)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			// The first run builds the chain; keep only its build timings.
			if _, err := r.Run(ctx, in, stage); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			var builds []timing.Summary
			for _, s := range rec.Summaries() {
				if s.Step == "build" {
					builds = append(builds, s)
				}
			}
			for range warmupRuns {
				if _, err := r.Run(ctx, in, stage); err != nil {
					return cli.Exit(err.Error(), 1)
				}
			}
			rec.Reset()
			env.counter.Reset()

			start := time.Now()
			for range benchRuns {
				if _, err := r.Run(ctx, in, stage); err != nil {
					return cli.Exit(err.Error(), 1)
				}
			}
			total := time.Since(start)

			report := benchReport{
				ID:         "bench_" + uuid.NewString(),
				Pipeline:   r.Name(),
				DType:      r.DType(),
				Input:      in.Shape,
				Autoload:   stage,
				Dispatcher: dispatcher,
				Cores:      cores.Default().String(),
				Warmup:     warmupRuns,
				Runs:       benchRuns,
				Total:      total,
				Layers:     append(builds, rec.Summaries()...),
				Staging:    env.counter.Stats(),
			}
			log.Debug("benchmark complete", "id", report.ID, "total", total)

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printBenchReport(os.Stdout, report)
			return nil
		},
	}
}

func printBenchReport(w io.Writer, r benchReport) {
	_, _ = fmt.Fprintf(w, "Pipeline:   %s (%s)\n", r.Pipeline, r.DType)
	_, _ = fmt.Fprintf(w, "Input:      %v\n", tensor.Shape(r.Input))
	_, _ = fmt.Fprintf(w, "Dispatcher: %s cores=%s GOMAXPROCS=%d\n", r.Dispatcher, r.Cores, runtime.GOMAXPROCS(0))
	_, _ = fmt.Fprintf(w, "Autoload:   %t\n", r.Autoload)
	_, _ = fmt.Fprintf(w, "Runs:       %d (+%d warmup)\n", r.Runs, r.Warmup)
	_, _ = fmt.Fprintf(w, "Per run:    %s\n\n", r.perRun())

	rows := make([][]string, 0, len(r.Layers))
	for _, s := range r.Layers {
		rows = append(rows, []string{
			s.Layer,
			s.Step,
			strconv.Itoa(s.Count),
			s.Mean().String(),
			s.Min.String(),
			s.Max.String(),
		})
	}
	renderTable(w, []string{"LAYER", "STEP", "COUNT", "MEAN", "MIN", "MAX"}, rows)

	if r.Autoload {
		_, _ = fmt.Fprintf(w, "\nStaged:     %d calls, %d dst bytes, %d src bytes\n",
			r.Staging.Calls, r.Staging.DstBytes, r.Staging.SrcBytes)
	}
}

func benchInput(path, shapeArg, dtype string, seed uint64) (tensor.Dump, error) {
	if path != "" {
		dumps, err := loadDumps(path)
		if err != nil {
			return tensor.Dump{}, err
		}
		if len(dumps) == 0 {
			return tensor.Dump{}, fmt.Errorf("%s holds no tensors", path)
		}
		return dumps[0], nil
	}
	shape, err := parseShape(shapeArg)
	if err != nil {
		return tensor.Dump{}, err
	}
	return syntheticDump(dtype, shape, seed), nil
}

func parseShape(s string) (tensor.Shape, error) {
	fields := strings.Split(s, ",")
	shape := make(tensor.Shape, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid shape %q", s)
		}
		shape = append(shape, n)
	}
	return shape, nil
}

// syntheticDump fills a tensor of the given shape with uniform values over
// the full range of dtype.
func syntheticDump(dtype string, shape tensor.Shape, seed uint64) tensor.Dump {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	span, lo := 256, -128
	if dtype == tensor.DTypeInt16 {
		span, lo = 65536, -32768
	}
	data := make([]int32, shape.Size())
	for i := range data {
		data[i] = int32(lo + rng.IntN(span))
	}
	return tensor.Dump{
		Name:     "synthetic",
		DType:    dtype,
		Shape:    shape,
		Exponent: 0,
		Data:     data,
	}
}
