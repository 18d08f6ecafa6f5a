package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"gapscan/internal/core"
	"gapscan/internal/ingest"
	"gapscan/internal/journal"
	"gapscan/internal/market"
	"gapscan/internal/obs"
	"gapscan/internal/ops"
	"gapscan/internal/publish"
	"gapscan/internal/risk"
	"gapscan/internal/scanner"
	"gapscan/internal/server"
	"gapscan/pkg/conn"

	"github.com/gin-gonic/gin"
	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	envFile := flag.String("env-file", "", "Env file loaded before GAPSCAN_* overrides (default: .env when present)")
	feedPath := flag.String("feed-path", "", "Override feed.file.path and use the file feed")
	noServer := flag.Bool("no-server", false, "Disable the HTTP API")
	pyroscopeAddr := flag.String("pyroscope", "", "Override profiling.pyroscope_address")
	flag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := ops.Load(*configPath, envFiles...)
	if err != nil {
		logs.Errorf("config load failed, err: %+v", err)
		os.Exit(1)
	}
	if *feedPath != "" {
		cfg.Feed.Kind = ops.FeedFile
		cfg.Feed.File.Path = *feedPath
	}
	if *noServer {
		cfg.Server.Enabled = false
	}
	if *pyroscopeAddr != "" {
		cfg.Profiling.PyroscopeAddress = *pyroscopeAddr
	}

	if err := run(cfg); err != nil {
		logs.Errorf("scanner stopped, err: %+v", err)
		os.Exit(1)
	}
}

func run(cfg ops.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-sys.Shutdown():
			stop()
		case <-ctx.Done():
		}
	}()

	if cfg.Profiling.PyroscopeAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.AppName,
			ServerAddress:   cfg.Profiling.PyroscopeAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return errors.Wrap(err, "start pyroscope").With("address", cfg.Profiling.PyroscopeAddress)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.NewMetrics()
	store := market.NewStore()

	src, err := cfg.Feed.Source()
	if err != nil {
		return errors.Wrap(err, "build feed source").With("kind", cfg.Feed.Kind)
	}
	ingestor := ingest.New(store, src, ingest.Config{
		PollInterval: cfg.Feed.PollInterval,
		Metrics:      metrics,
	})

	window, err := core.NewWindow(cfg.Session.Timezone, cfg.Session.StartHour, cfg.Session.EndHour)
	if err != nil {
		return err
	}

	engineCfg := core.Config{
		Store:        store,
		Ingestor:     ingestor,
		Scanner:      scanner.New(store, cfg.Scan.Criteria, scanner.WithMetrics(metrics)),
		Risk:         risk.NewController(cfg.Risk),
		Evaluator:    risk.NewEvaluator(),
		Metrics:      metrics,
		Window:       window,
		ScanInterval: cfg.Scan.Interval,
	}

	if cfg.Journal.Enabled {
		client, err := conn.New(cfg.Journal.Postgres)
		if err != nil {
			return errors.Wrap(err, "connect journal database")
		}
		defer client.Close()
		if err := client.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping journal database").With("host", cfg.Journal.Postgres.Host)
		}
		j, err := journal.New(client.DB())
		if err != nil {
			return errors.Wrap(err, "open journal")
		}
		logs.Infof("journal enabled, session: %s", j.Session())
		engineCfg.Journal = j
	}

	if cfg.Publish.Enabled {
		rdb := publish.NewRedisClient(cfg.Publish.Addr, cfg.Publish.Password, cfg.Publish.DB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logs.Warnf("redis %s not reachable yet, err: %+v", cfg.Publish.Addr, err)
		}
		engineCfg.Publisher = publish.New(rdb, publish.Config{
			Key:     cfg.Publish.Key,
			Channel: cfg.Publish.Channel,
			TTL:     cfg.Publish.TTL,
		})
	}

	engine, err := core.New(engineCfg)
	if err != nil {
		return err
	}

	if cfg.Server.Enabled {
		gin.SetMode(gin.ReleaseMode)
		srv := server.New(engine, metrics.Registry())
		go func() {
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
				logs.Errorf("http api stopped, err: %+v", err)
				stop()
			}
		}()
	}

	return engine.Run(ctx)
}
