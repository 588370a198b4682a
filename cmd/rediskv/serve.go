package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	rediskv "github.com/raniellyferreira/redis-inmemory-kv"
	kvprom "github.com/raniellyferreira/redis-inmemory-kv/prometheus"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run a node until SIGINT or SIGTERM",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON config file; flags override its values",
			},
			&cli.StringFlag{Name: "addr", Usage: "Redis protocol listen address, empty to disable", Value: ":6379"},
			&cli.StringFlag{Name: "http-addr", Usage: "HTTP/JSON listen address, empty to disable"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Prometheus /metrics listen address, empty to disable"},
			&cli.StringFlag{Name: "password", Usage: "require AUTH with this password"},
			&cli.IntFlag{Name: "shards", Usage: "storage shard count, rounded up to a power of two", Value: 64},
			&cli.DurationFlag{Name: "read-timeout", Usage: "close idle Redis protocol connections after this long"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: "info"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json", Value: "text"},
			&cli.StringFlag{Name: "log-file", Usage: "write logs to a rotated file instead of stderr"},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	applyFlags(&cfg, cmd)

	slogger, closer, err := newLogger(cfg.Log, cmd.Root().ErrWriter)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger := rediskv.NewSlogLogger(slogger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := append(cfg.nodeOptions(), rediskv.WithLogger(logger))

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, rediskv.WithMetrics(kvprom.NewMetrics(reg)))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	node, err := rediskv.New(opts...)
	if err != nil {
		return err
	}
	if err := node.Start(ctx); err != nil {
		_ = node.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("Metrics server listening", rediskv.Field{Key: "addr", Value: cfg.MetricsAddr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", rediskv.Field{Key: "run_id", Value: node.RunID()})
		return node.Close()
	})

	logger.Info("rediskv ready",
		rediskv.Field{Key: "addr", Value: node.Addr()},
		rediskv.Field{Key: "http_addr", Value: node.HTTPAddr()},
		rediskv.Field{Key: "version", Value: rediskv.Version})

	return g.Wait()
}
