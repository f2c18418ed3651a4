package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/qnn/internal/logger"
	"github.com/samcharles93/qnn/internal/pipeline"
	"github.com/samcharles93/qnn/internal/tensor"
)

func runCmd() *cli.Command {
	var (
		input      string
		output     string
		tensorName string
		withReal   bool
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Run a pipeline over input tensors",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "input tensors (.qtf, .json, or - for stdin)",
				Required:    true,
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "write outputs here (.qtf or .json; default stdout)",
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "tensor",
				Usage:       "only run the named input tensor",
				Destination: &tensorName,
			},
			&cli.BoolFlag{
				Name:        "real",
				Usage:       "also write the dequantized values of each output",
				Destination: &withReal,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

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

			r, err := pipeline.New(pcfg, env.opts, log)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			dumps, err := loadDumps(input)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			dumps, err = selectDump(dumps, tensorName)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			outs := make([]tensor.Dump, 0, len(dumps))
			for _, d := range dumps {
				start := time.Now()
				out, err := r.Run(ctx, d, stage)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				if d.Name != "" {
					out.Name = d.Name + "/" + out.Name
				}
				if withReal {
					out = out.WithValues()
				}
				log.Info("run complete",
					"pipeline", r.Name(),
					"input", d.Name,
					"output_shape", out.Shape,
					"output_exponent", out.Exponent,
					"elapsed", time.Since(start),
				)
				outs = append(outs, out)
			}

			stats := env.counter.Stats()
			log.Debug("staging", "calls", stats.Calls, "dst_bytes", stats.DstBytes, "src_bytes", stats.SrcBytes)
			return writeDumps(output, outs)
		},
	}
}
