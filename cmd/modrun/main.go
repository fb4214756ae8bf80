package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/modrun"
	"github.com/bft-labs/modrun/internal/cliconfig"
	"github.com/bft-labs/modrun/internal/container"
	"github.com/bft-labs/modrun/pkg/lifecycle"
	"github.com/bft-labs/modrun/pkg/log"
	"github.com/bft-labs/modrun/pkg/metrics"
	pkgmodrun "github.com/bft-labs/modrun/pkg/modrun"
)

const helpDescription = `
Drive a directory of modules through a shared lifecycle in dependency order.

Highlights:
  - Modules are described by TOML or YAML files with name, version and dependencies.
  - Dependencies use a small grammar: "db" required, "?!cache" recommended,
    "?ui" optional, "!!legacy" incompatible, and a "<" prefix reverses the edge.
  - Startup states wait for dependencies, teardown states wait for dependents.
  - Configure via file, MODRUN_* env, or flags; optionally watch for new modules.
`

var exampleUsage = strings.TrimSpace(`
  modrun --dir ./modules
  modrun --dir ./modules --target loaded --target enabled --watch
  modrun --config $HOME/.modrun/config.toml --lifecycle ./lifecycle.toml --metrics-addr :9100
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "modrun",
		Short:         "Drive modules through a lifecycle in dependency order",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// MODRUN_* override file config but not flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := log.NewZerologAdapter(log.Level(cfg.LogLevel))
			logger.Info("configuration",
				log.String("dir", cfg.DescriptorDir),
				log.String("lifecycle", cfg.LifecyclePath),
				log.Strings("targets", cfg.Targets),
				log.String("shutdown_state", cfg.ShutdownState),
				log.Bool("watch", cfg.Watch),
			)

			return run(cmd.Context(), cfg, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.modrun/config.toml)")
	root.Flags().StringVar(&cfg.DescriptorDir, "dir", cfg.DescriptorDir, "directory of module descriptor files")
	root.Flags().StringVar(&cfg.LifecyclePath, "lifecycle", cfg.LifecyclePath, "lifecycle TOML file (default: built-in lifecycle)")
	root.Flags().StringSliceVar(&cfg.Targets, "target", cfg.Targets, "target state to run, repeatable and run in order")
	root.Flags().StringVar(&cfg.ShutdownState, "shutdown-state", cfg.ShutdownState, "state to run on exit in watch mode (empty skips teardown)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	root.Flags().BoolVar(&cfg.Watch, "watch", cfg.Watch, "watch the descriptor directory and drive new modules")
	root.Flags().DurationVar(&cfg.DebounceDelay, "debounce", cfg.DebounceDelay, "delay coalescing descriptor changes")
	root.Flags().DurationVar(&cfg.RunTimeout, "timeout", cfg.RunTimeout, "timeout per target run (0 disables)")
	root.Flags().IntVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, "path cache budget in cached states")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "modrun: %v\n", err)
		os.Exit(1)
	}
}

func run(parent context.Context, cfg cliconfig.Config, logger log.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	graph, err := buildLifecycle(cfg, logger)
	if err != nil {
		return err
	}

	opts := []pkgmodrun.Option{
		pkgmodrun.WithLogger(logger),
		pkgmodrun.WithCacheSize(int64(cfg.CacheSize)),
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, pkgmodrun.WithMetrics(metrics.New(reg)))

		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving metrics", log.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", log.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	m, err := modrun.New(graph, opts...)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}
	defer m.Close()

	runner := modrun.NewRunner(m, cfg.DescriptorDir, container.Factory{}, modrun.RunnerConfig{
		Targets:       cfg.Targets,
		ShutdownState: cfg.ShutdownState,
		RunTimeout:    cfg.RunTimeout,
		DebounceDelay: cfg.DebounceDelay,
	}, logger)

	added, err := runner.Sync(ctx)
	if err != nil {
		logger.Warn("some modules were not registered", log.Err(err))
	}
	if added == 0 && !cfg.Watch {
		return fmt.Errorf("no modules found in %s", cfg.DescriptorDir)
	}

	if err := runner.RunTargets(ctx); err != nil {
		return err
	}

	if !cfg.Watch {
		return nil
	}

	if err := runner.Watch(ctx); err != nil {
		return fmt.Errorf("watch descriptors: %w", err)
	}
	logger.Info("received signal, shutting down")

	// The signal context is done; teardown gets a fresh one.
	shutdownCtx := context.Background()
	if cfg.RunTimeout == 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, time.Minute)
		defer cancel()
	}
	if _, err := runner.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildLifecycle(cfg cliconfig.Config, logger log.Logger) (*lifecycle.Graph, error) {
	lf := cliconfig.DefaultLifecycle()
	if cfg.LifecyclePath != "" {
		var err error
		if lf, err = cliconfig.LoadLifecycle(cfg.LifecyclePath); err != nil {
			return nil, fmt.Errorf("load lifecycle: %w", err)
		}
	}
	graph, err := lf.Build(container.NewRegistry(logger))
	if err != nil {
		return nil, fmt.Errorf("build lifecycle: %w", err)
	}
	return graph, nil
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux
}
