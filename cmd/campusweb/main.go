package main

import (
	"fmt"
	"os"

	"github.com/mchmarny/campusweb/pkg/logger"
	"github.com/spf13/cobra"
)

const appName = "campusweb"

var (
	version = "dev"     // Set at build time via -ldflags "-X main.version=version"
	commit  = "none"    // Set at build time via -ldflags "-X main.commit=commit"
	date    = "unknown" // Set at build time via -ldflags "-X main.date=date"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Navigation, settings and enquiry API for the college website",
		Long: `campusweb fetches named menus and site settings from the CMS backend,
builds the header, mobile and footer navigation trees, serves resolved
site settings and forwards contact enquiries to the CMS.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			lo := logger.FromEnv(appName, version)
			if opts.logLevel != "" {
				lo.Level = opts.logLevel
			}
			if opts.logFormat != "" {
				lo.Format = opts.logFormat
			}
			lo.Writer = cmd.ErrOrStderr()
			logger.SetDefaultLogger(lo)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (default from LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: json or text (default from LOG_FORMAT)")

	cmd.AddCommand(
		newServeCmd(opts),
		newTreeCmd(),
		newVersionCmd(),
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, built %s)\n", appName, version, commit, date)
			return err
		},
	}
}
