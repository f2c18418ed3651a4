package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/qnn/internal/logger"
	"github.com/samcharles93/qnn/internal/tensor"
)

func packCmd() *cli.Command {
	var (
		output   string
		exponent int64
	)

	return &cli.Command{
		Name:  "pack",
		Usage: "Pack JSON tensor dumps into a .qtf file",
		Description: "Dumps may carry raw \"data\" or real \"values\"; values are quantized at the\n" +
			"dump's exponent, or at --exponent when given.",
		ArgsUsage: "DUMP.json...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "destination .qtf file",
				Required:    true,
				Destination: &output,
			},
			&cli.Int64Flag{
				Name:        "exponent",
				Usage:       "quantize real values at this exponent",
				Destination: &exponent,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			inputs := cmd.Args().Slice()
			if len(inputs) == 0 {
				return cli.Exit("pack: no input files", 1)
			}
			if !isQTF(output) {
				return cli.Exit(fmt.Sprintf("pack: output %q must end in .qtf", output), 1)
			}

			var dumps []tensor.Dump
			for _, in := range inputs {
				ds, err := loadDumps(in)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				dumps = append(dumps, ds...)
			}
			if cmd.IsSet("exponent") {
				dumps = withExponent(dumps, int(exponent))
			}
			if err := writeQTF(output, dumps); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			log.Info("packed tensors", "output", output, "count", len(dumps))
			return nil
		},
	}
}

// withExponent sets the exponent of every dump given as real values.
func withExponent(dumps []tensor.Dump, exponent int) []tensor.Dump {
	for i := range dumps {
		if len(dumps[i].Values) > 0 {
			dumps[i].Exponent = exponent
		}
	}
	return dumps
}
