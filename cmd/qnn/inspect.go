package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/qnn/internal/tensor"
	"github.com/samcharles93/qnn/pkg/qtf"
)

func inspectCmd() *cli.Command {
	var showData bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "List the tensors in a .qtf file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "data",
				Usage:       "print every tensor as a JSON dump",
				Destination: &showData,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("inspect: missing FILE", 1)
			}
			if showData {
				dumps, err := loadQTF(path)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				return tensor.EncodeDumps(os.Stdout, dumps)
			}

			qf, err := qtf.Open(path)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer func() { _ = qf.Close() }()

			fmt.Printf("File:     %s\n", path)
			fmt.Printf("Version:  %d.%d\n", qf.Header.Major, qf.Header.Minor)
			fmt.Printf("Size:     %d bytes\n", qf.Header.FileSize)
			fmt.Printf("Tensors:  %d\n\n", len(qf.Tensors))

			rows := make([][]string, 0, len(qf.Tensors))
			for _, t := range qf.Tensors {
				rows = append(rows, []string{
					t.Name,
					t.DType.String(),
					tensor.Shape(t.Shape).String(),
					strconv.Itoa(t.Exponent),
					strconv.FormatUint(t.Offset, 10),
					strconv.FormatUint(t.Size, 10),
				})
			}
			renderTable(os.Stdout, []string{"NAME", "DTYPE", "SHAPE", "EXPONENT", "OFFSET", "BYTES"}, rows)
			return nil
		},
	}
}
