package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/qnn/internal/api"
	"github.com/samcharles93/qnn/internal/logger"
	"github.com/samcharles93/qnn/internal/pipeline"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		maxIdle     int64
		keepRuns    int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the pipeline over HTTP",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8090",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-idle",
				Usage:       "pipeline instances kept between requests",
				Value:       4,
				Destination: &maxIdle,
			},
			&cli.Int64Flag{
				Name:        "keep-runs",
				Usage:       "finished runs kept for GET /v1/runs/:id (0 keeps all)",
				Value:       1024,
				Destination: &keepRuns,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, fileConfig, &addr)

			pcfg, err := pipeline.LoadConfig(pipelineArg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			pcfg.Autoload = applyAutoloadConfig(cmd, fileConfig, pcfg.Autoload)

			env, err := setupRuntime(ctx, false)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer env.Close(log)

			provider, err := api.NewPooledRunnerProvider(pcfg, env.opts, log, int(maxIdle), int(arenaBytes))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer func() {
				if err := provider.Close(); err != nil {
					log.Warn("release runners", "error", err)
				}
			}()
			server := api.NewServer(api.NewRunStore(int(keepRuns)), api.NewRunService(provider))
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "pipeline", pcfg.Name, "dtype", pcfg.DType)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
