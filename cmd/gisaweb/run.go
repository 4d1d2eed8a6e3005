package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/auth"
	"github.com/ISA-Forensic/GiSaWeb/pkg/catalog"
	"github.com/ISA-Forensic/GiSaWeb/pkg/config"
	"github.com/ISA-Forensic/GiSaWeb/pkg/gateway"
	"github.com/ISA-Forensic/GiSaWeb/pkg/knowledge"
	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
	"github.com/ISA-Forensic/GiSaWeb/pkg/relay"
	"github.com/ISA-Forensic/GiSaWeb/pkg/route"
	"github.com/ISA-Forensic/GiSaWeb/pkg/server"
	"github.com/ISA-Forensic/GiSaWeb/pkg/speechcache"
	"github.com/ISA-Forensic/GiSaWeb/pkg/store"
	"github.com/ISA-Forensic/GiSaWeb/pkg/telemetry/logging"
	"github.com/ISA-Forensic/GiSaWeb/pkg/telemetry/metrics"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the GiSaWeb gateway server",
	Long: `Start the gateway server with the specified configuration.

The server aggregates model catalogs from the configured connections and
routes OpenAI-compatible requests to the connection owning each model.

Examples:
  # Start with default config
  gisaweb run

  # Start with custom config
  gisaweb run --config /etc/gisaweb/config.yaml

  # Override listen address
  gisaweb run --listen 0.0.0.0:8080

  # Validate config without starting server
  gisaweb run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload configuration on file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnv(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Stores
	var (
		models    store.ModelStore
		knowStore store.KnowledgeStore
	)
	switch cfg.Store.Backend {
	case "sqlite":
		db, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer db.Close()
		models, knowStore = db, db
	default:
		mem := store.NewMemoryStore()
		models, knowStore = mem, mem
	}

	// Core components
	state := gateway.NewState(gateway.Settings{
		Enabled:         cfg.Gateway.Enabled(),
		ForwardIdentity: cfg.Gateway.ForwardUserInfoHeaders,
		Bypass:          cfg.Gateway.BypassModelAccessControl,
		RequestTimeout:  cfg.Gateway.RequestTimeout,
		ListTimeout:     cfg.Gateway.ModelListTimeout,
	})

	reg := registry.New(cfg.Gateway.BaseURLs, cfg.Gateway.APIKeys, cfg.Gateway.Connections)
	client := upstream.NewClient(upstream.Config{})
	defer client.CloseIdleConnections()

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.IsEnabled() {
		collector = metrics.NewCollector()
	}

	checker := &access.ACLChecker{}
	aggregator := catalog.NewAggregator(reg, client, func() catalog.Settings {
		s := state.Snapshot()
		return catalog.Settings{
			Enabled:         s.Enabled,
			ForwardIdentity: s.ForwardIdentity,
			ListTimeout:     s.ListTimeout,
		}
	}, collector)

	filter := &catalog.Filter{
		Models:  models,
		Checker: checker,
		Bypass:  func() bool { return state.Snapshot().Bypass },
	}

	router := route.NewRouter(reg, aggregator, models, checker)
	rel := relay.NewRelay(client, collector, cfg.Gateway.RequestTimeout)

	knowSvc := knowledge.NewService(reg, client, knowStore, checker, func() knowledge.Settings {
		s := state.Snapshot()
		return knowledge.Settings{
			ForwardIdentity: s.ForwardIdentity,
			RequestTimeout:  s.RequestTimeout,
		}
	})

	// Speech cache
	var speech *speechcache.Cache
	if cfg.SpeechCache.IsEnabled() {
		speech, err = speechcache.NewCache(cfg.SpeechCache.Dir)
		if err != nil {
			return err
		}
		sweeper := speechcache.NewSweeper(speech, speechcache.RetentionConfig{
			Schedule: cfg.SpeechCache.SweepSchedule,
			MaxAge:   cfg.SpeechCache.MaxAge,
		})
		if err := sweeper.Start(ctx); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	// Auth
	validator := auth.NewValidator(keyInfos(cfg))

	// Optional live reload
	if runFlags.watch {
		watcher := config.NewWatcher(cfgFile, 0)
		go func() {
			if err := watcher.Watch(ctx, func(next *config.Config) {
				reg.SetURLs(next.Gateway.BaseURLs)
				reg.SetKeys(next.Gateway.APIKeys)
				reg.SetConfigs(next.Gateway.Connections)
				state.Update(func(s *gateway.Settings) {
					s.Enabled = next.Gateway.Enabled()
					s.ForwardIdentity = next.Gateway.ForwardUserInfoHeaders
					s.Bypass = next.Gateway.BypassModelAccessControl
					s.RequestTimeout = next.Gateway.RequestTimeout
					s.ListTimeout = next.Gateway.ModelListTimeout
				})
				validator.Replace(keyInfos(next))
			}); err != nil {
				logger.Error("configuration watcher exited", "error", err)
			}
		}()
	}

	gw := gateway.New(state, reg, aggregator, filter, router, rel, knowSvc, speech, client)
	srv := server.NewServer(&cfg.Server, gw, validator, collector)

	logger.Info("gateway initialized",
		"connections", len(cfg.Gateway.BaseURLs),
		"store", cfg.Store.Backend,
	)

	return srv.Start(ctx)
}

// keyInfos converts configured API keys into validator entries.
func keyInfos(cfg *config.Config) []*auth.KeyInfo {
	infos := make([]*auth.KeyInfo, 0, len(cfg.Auth.Keys))
	for _, k := range cfg.Auth.Keys {
		infos = append(infos, &auth.KeyInfo{
			Key:     k.Key,
			UserID:  k.UserID,
			Name:    k.Name,
			Email:   k.Email,
			Role:    k.Role,
			Enabled: k.IsEnabled(),
		})
	}
	return infos
}
