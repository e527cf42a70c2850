package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gatehouse/gatehouse/pkg/api"
	"github.com/gatehouse/gatehouse/pkg/buffer"
	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/client"
	"github.com/gatehouse/gatehouse/pkg/config"
	"github.com/gatehouse/gatehouse/pkg/log"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/processor"
	"github.com/gatehouse/gatehouse/pkg/router"
	"github.com/gatehouse/gatehouse/pkg/store"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	exitValidation = 1
	exitStartup    = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse - Sharded temporal authorization service",
	Long: `Gatehouse is a horizontally sharded authorization service. It stores
users, groups, application component grants and entity grants as a
temporal event history, answers access decisions including grants
inherited through group-to-group mappings, and routes keyed operations
across shards by hash range with support for live re-sharding.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Gatehouse version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)

	serveCmd.Flags().String("config", "/etc/gatehouse/config.yaml", "Path to configuration file")
	validateCmd.Flags().String("config", "/etc/gatehouse/config.yaml", "Path to configuration file")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Gatehouse service",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(exitValidation)
		}

		if err := run(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
			os.Exit(exitStartup)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file without starting the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")

		if _, err := config.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(exitValidation)
		}
		fmt.Println("✓ Configuration is valid")
		return nil
	},
}

func run(cfg *config.Config) error {
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	logger := log.WithComponent("main")
	logger.Info().Str("version", Version).Msg("starting gatehouse")

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.NewBoltStoreWithRetry(cfg.Storage.DataDir, store.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval.Std(),
		MaxElapsed:      cfg.Retry.MaxElapsed.Std(),
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	trip := metrics.NewTripSwitch()
	buf := buffer.New(st, trip, buffer.Config{
		MaxSize:       cfg.Buffer.SizeLimit,
		FlushInterval: cfg.Buffer.FlushLoopInterval.Std(),
	})
	c := cache.New(cfg.Cache.CachedEventCount)
	proc := processor.New(st, c, trip)

	// Shard routing is optional: a standalone instance serves its own
	// store only
	var rt *router.Router
	var mgr *client.Manager
	if len(cfg.Routing.Shards) > 0 {
		mgr, err = client.NewManager(types.ShardConfigSet(cfg.Routing.Shards))
		if err != nil {
			return fmt.Errorf("failed to build shard manager: %w", err)
		}
		rt = router.New(mgr, router.Window{
			Kind:        types.ElementKind(cfg.Routing.DataElementKind),
			SourceStart: cfg.Routing.SourceRangeStart,
			SourceEnd:   cfg.Routing.SourceRangeEnd,
			TargetStart: cfg.Routing.TargetRangeStart,
			TargetEnd:   cfg.Routing.TargetRangeEnd,
			TargetURL:   cfg.Routing.TargetURL,
		}, cfg.Routing.RoutingInitiallyOn)
		logger.Info().Int("shards", len(cfg.Routing.Shards)).Msg("shard routing configured")
	}

	buf.Start()
	defer buf.Stop()

	// With shards configured, element operations dispatch through the
	// router; bulk ingestion and the cache feed stay local so peers can
	// deliver events to this instance directly
	var backend api.Backend = api.NewLocalBackend(st, buf, proc, c)
	if rt != nil {
		backend = api.NewRoutingBackend(backend, rt)
	}

	server := api.NewServer(api.Options{
		Backend:        backend,
		Router:         rt,
		Manager:        mgr,
		Trip:           trip,
		MetricsEnabled: cfg.Metrics.Enabled,
		Version:        Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
	logger.Info().Msg("stopped")
	return nil
}
