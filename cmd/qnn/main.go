package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/qnn/internal/logger"
)

// fileConfig holds the config file loaded before any command runs.
var fileConfig Config

func main() {
	app := &cli.Command{
		Name:   "qnn",
		Usage:  "Quantized tensor execution runtime",
		Flags:  append(loggingFlags(), runtimeFlags()...),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			runCmd(),
			benchCmd(),
			serveCmd(),
			inspectCmd(),
			packCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config file and installs the logger in ctx.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig(configPath())
	if err != nil {
		return ctx, cli.Exit(err.Error(), 1)
	}
	fileConfig = cfg
	applyConfig(cmd, cfg)

	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	log := logger.ForFormat(os.Stderr, logFormat, level)
	return logger.WithContext(ctx, log), nil
}
