// Package main implements the runwaymesh worker node.
//
// A node never listens on a port. It announces itself to the coordinator with
// periodic heartbeats, polls for compute_congestion tasks, analyzes the
// traffic batch each task carries and reports the metrics back:
//
//	┌──────────────┐  heartbeat / claim   ┌─────────────┐
//	│     Node     │ ───────────────────► │ Coordinator │
//	│  - Worker    │ ◄─────────────────── │             │
//	│  - Analyze   │    task or empty     │             │
//	│              │ ───────────────────► │             │
//	└──────────────┘   result / failure   └─────────────┘
//
// Configuration comes from runwaymesh.yaml and RUNWAY_* variables; the
// --coordinator and --id flags override the file.
//
// Example usage:
//
//	node --coordinator http://localhost:8080 --id edge-1
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/dreamware/runwaymesh/internal/cluster"
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
	return &cli.App{
		Name:  "node",
		Usage: "runwaymesh worker node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a runwaymesh.yaml file",
				EnvVars: []string{"RUNWAY_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "coordinator",
				Usage: "coordinator base URL",
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "node id (generated when empty)",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return cli.Exit(fmt.Sprintf("logging: %v", err), 1)
	}
	defer closer.Close()
	log := logging.Component(logger, "node").WithField("node_id", cfg.Node.ID)

	client := cluster.NewClient(cluster.ClientConfig{
		BaseURL:        cfg.Node.CoordinatorURL,
		MaxRetries:     cfg.Node.MaxRetries,
		RetryPause:     cfg.Node.RetryPause,
		RequestTimeout: cfg.Node.RequestTimeout,
	}, logging.Component(logger, "client"))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("coordinator", cfg.Node.CoordinatorURL).Info("node starting")
	w := NewWorker(cfg.Node.ID, client, cfg.Node.HeartbeatInterval, cfg.Node.PollInterval, logging.Component(logger, "node"))
	w.Run(ctx)

	log.WithFields(logrus.Fields{"fetched": w.Stats().TasksFetched}).Info("node stopped")
	return nil
}

// loadConfig reads the file configuration and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if u := c.String("coordinator"); u != "" {
		cfg.Node.CoordinatorURL = u
	}
	if id := c.String("id"); id != "" {
		cfg.Node.ID = id
	}
	if cfg.Node.ID == "" {
		cfg.Node.ID = "node-" + uuid.NewString()[:8]
	}
	if cfg.Node.CoordinatorURL == "" {
		return nil, fmt.Errorf("coordinator URL is required")
	}
	return cfg, nil
}
