package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mchmarny/campusweb/pkg/api"
	"github.com/mchmarny/campusweb/pkg/cms"
	"github.com/mchmarny/campusweb/pkg/config"
	"github.com/mchmarny/campusweb/pkg/enquiry"
	"github.com/mchmarny/campusweb/pkg/logger"
	"github.com/mchmarny/campusweb/pkg/menu"
	"github.com/mchmarny/campusweb/pkg/metric"
	"github.com/mchmarny/campusweb/pkg/nav"
	"github.com/mchmarny/campusweb/pkg/server"
	"github.com/mchmarny/campusweb/pkg/settings"
	"github.com/mchmarny/campusweb/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	port   int
	host   string
	cmsURL string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the site API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", server.DefaultPort, "Port to listen on")
	cmd.Flags().StringVar(&opts.host, "host", "", "Host interface to bind, all interfaces when empty")
	cmd.Flags().StringVar(&opts.cmsURL, "cms-url", "", "Base URL of the CMS API")

	return cmd
}

// loadConfig layers explicitly set flags over the file and environment configuration.
func loadConfig(cmd *cobra.Command, root *rootOptions, opts *serveOptions) (*config.Config, error) {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("host") {
		cfg.Host = opts.host
	}
	if flags.Changed("cms-url") {
		cfg.CMS.BaseURL = opts.cmsURL
	}
	if root.logLevel != "" {
		cfg.LogLevel = root.logLevel
	}
	if root.logFormat != "" {
		cfg.LogFormat = root.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// run wires the service together and blocks until ctx is canceled or a
// component fails.
func run(ctx context.Context, cfg *config.Config) error {
	logger.SetDefaultLogger(logger.Options{
		Module:  appName,
		Version: version,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	slog.Info("starting "+appName, "commit", commit, "date", date, "cms", cfg.CMS.BaseURL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metric.New(reg)

	client, err := cms.New(cfg.CMS.BaseURL,
		cms.WithTimeout(cfg.CMS.Timeout),
		cms.WithUserAgent(appName+"/"+version),
	)
	if err != nil {
		return fmt.Errorf("failed to create cms client: %w", err)
	}

	st := store.New(client, m)

	var (
		defaults settings.Provider = settings.Static(settings.Defaults())
		watcher  *settings.Watcher
	)
	if cfg.SettingsDefaultsFile != "" {
		if watcher, err = settings.NewWatcher(cfg.SettingsDefaultsFile); err != nil {
			return fmt.Errorf("failed to load settings defaults: %w", err)
		}
		defaults = watcher
	}

	composer := nav.Composer{
		Labels:   cfg.Menus,
		Fallback: cfg.Fallback,
		Builder:  menu.Builder{MaxDepth: cfg.MaxMenuDepth},
	}

	h := api.New(st, composer, defaults, enquiry.NewService(client), m)

	opts := []server.Option{
		server.WithHost(cfg.Host),
		server.WithPort(cfg.Port),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
		server.WithErrorLog(logger.NewLogLogger(slog.LevelError)),
		server.WithMount("/api", h.Routes()),
		server.WithReadinessCheck(st),
	}
	if cfg.EnableMetrics {
		opts = append(opts, server.WithMetrics(reg, m))
	}
	if len(cfg.AllowedOrigins) > 0 {
		opts = append(opts, server.WithCORS(cfg.AllowedOrigins...))
	}
	if cfg.TLSCertFile != "" {
		opts = append(opts, server.WithTLS(server.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}))
	}

	srv := server.New(opts...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(gctx)
	})

	g.Go(func() error {
		// The first fetch settles the loading state; failures are recorded in the store.
		if err := st.Refresh(gctx); err != nil && gctx.Err() == nil {
			slog.Warn("initial site data fetch failed", "error", err)
		}
		return st.Run(gctx, cfg.CMS.RefreshInterval)
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info(appName + " stopped")
	return nil
}
