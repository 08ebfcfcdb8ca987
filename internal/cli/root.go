// Package cli wires Cobra subcommands to the bridge; it holds no bridge logic.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
)

// Set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// app is shared by the subcommands once the root pre-run has loaded it.
type app struct {
	cfg *config.Config
	log *logging.Logger
}

// NewRootCmd creates the root command and registers all subcommands.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		dev        bool
	)
	a := &app{}

	root := &cobra.Command{
		Use:   "shell",
		Short: "Native bridge shell",
		// main renders fatal errors.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var (
				cfg *config.Config
				err error
			)
			if configPath != "" {
				cfg, err = config.LoadFile(configPath)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if flags.Changed("dev") {
				cfg.Logging.Development = dev
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logging.New(logging.Config{
				Level:       cfg.Logging.Level,
				Development: cfg.Logging.Development,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newChannelsCmd(a))
	root.AddCommand(newVersionCmd())

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML or TOML config file layered over the environment")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.BoolVar(&dev, "dev", false, "Human-readable development logging")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and build info",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "nativebridge %s (%s)\n", Version, Commit)
			return err
		},
	}
}
