package main

import "github.com/urfave/cli/v3"

var (
	configFile  string
	logLevel    string
	logFormat   string
	debug       bool
	coreList    string
	dispatcher  string
	pinThreads  bool
	stagerName  string
	arenaBytes  int64
	pipelineArg string
	autoload    bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
	}
}

func runtimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "cores",
			Usage:       "default core hint, comma separated core ids",
			Value:       "0",
			Destination: &coreList,
		},
		&cli.StringFlag{
			Name:        "dispatcher",
			Usage:       "how core hints are honoured (serial, split)",
			Value:       "serial",
			Destination: &dispatcher,
		},
		&cli.BoolFlag{
			Name:        "pin-threads",
			Usage:       "pin split workers to their hinted cores",
			Destination: &pinThreads,
		},
		&cli.StringFlag{
			Name:        "stager",
			Usage:       "memory stager used by autoload (nop, prefetch)",
			Value:       "prefetch",
			Destination: &stagerName,
		},
		&cli.Int64Flag{
			Name:        "arena-bytes",
			Usage:       "place layer outputs in a locked fast-memory arena of this size (0 disables)",
			Destination: &arenaBytes,
		},
	}
}

func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pipeline",
			Aliases:     []string{"p"},
			Usage:       "path to pipeline .yaml",
			Required:    true,
			Destination: &pipelineArg,
		},
		&cli.BoolFlag{
			Name:        "autoload",
			Usage:       "stage operands before compute (overrides the pipeline default)",
			Destination: &autoload,
		},
	}
}
