package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"

	"github.com/voluma/slowserve/internal/bandwidth"
	"github.com/voluma/slowserve/internal/config"
	"github.com/voluma/slowserve/internal/obs"
	"github.com/voluma/slowserve/internal/server"
)

var sigCh = make(chan os.Signal, 1)

func main() {
	app := cli.NewApp()
	app.Name = "slowserve"
	app.Usage = "Serve binary assets at an emulated remote-host bandwidth"
	app.HideVersion = true

	app.Commands = cli.Commands{
		cli.Command{
			Name:  "serve",
			Usage: "Start the asset server",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Usage: "`FILE` to load config from (optional)",
				},
				cli.StringFlag{
					Name:  "addr",
					Usage: "`ADDR` to listen on, overrides config",
				},
				cli.StringFlag{
					Name:  "root",
					Usage: "`DIR` holding the viewer and its data/ subdirectory",
				},
				cli.Float64Flag{
					Name:  "mbps",
					Usage: "bandwidth cap in `MBPS`, overrides config and env",
				},
			},
			Action: serve,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if v := c.String("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := c.String("root"); v != "" {
		cfg.Data.Root = v
	}
	if v := c.Float64("mbps"); v > 0 {
		cfg.Bandwidth.Mbps = v
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel)

	bucket := bandwidth.New(cfg.Bandwidth.BytesPerSec())
	reg := prometheus.NewRegistry()
	srv := server.New(cfg, bucket, logger, reg)

	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("root", cfg.Data.Root).
			Float64("mbps", cfg.Bandwidth.Mbps).
			Int64("cap_bps", bucket.Rate()).
			Msg("listening")
		if err := srv.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-sigCh
	logger.Info().Msg("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
