// Package main implements the runwaymesh coordinator.
//
// The coordinator owns the task queue and the node registry. Every cycle it
// reads the current traffic window, stores a summary, enqueues
// compute_congestion tasks for the workers and sweeps for dead nodes and
// expired assignments. Workers reach it over HTTP:
//
//	POST /node/heartbeat   register or refresh a node
//	GET  /task             claim the oldest pending task
//	POST /task-result      report a completed or failed task
//	GET  /tasks/:id        inspect one task
//	GET  /status           cluster snapshot with metrics and forecast
//	GET  /summary          latest traffic summary
//	POST /edge-feedback    operator feedback from edge devices
//	GET  /health           liveness
//	GET  /metrics          Prometheus metrics
//
// Example usage:
//
//	coordinator --config configs/runwaymesh.yaml
//	coordinator config > runwaymesh.yaml
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/dreamware/runwaymesh/internal/config"
	"github.com/dreamware/runwaymesh/internal/logging"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to a runwaymesh.yaml file",
		EnvVars: []string{"RUNWAY_CONFIG"},
	}
	return &cli.App{
		Name:  "coordinator",
		Usage: "runwaymesh task coordinator",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:  "listen",
				Usage: "HTTP listen address",
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the coordinator (default)",
				Action: serveAction,
			},
			{
				Name:  "config",
				Usage: "print the effective configuration as YAML",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					out, err := config.Dump(cfg)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					_, err = c.App.Writer.Write(out)
					return err
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if l := c.String("listen"); l != "" {
		cfg.Coordinator.Listen = l
	}
	return cfg, nil
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return cli.Exit(fmt.Sprintf("logging: %v", err), 1)
	}
	defer closer.Close()
	gin.SetMode(ginMode(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg, logger, newRegistry())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer srv.Close()

	ln, err := net.Listen("tcp", cfg.Coordinator.Listen)
	if err != nil {
		return cli.Exit(fmt.Sprintf("listen on %s: %v", cfg.Coordinator.Listen, err), 1)
	}
	if err := srv.serve(ctx, ln); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
