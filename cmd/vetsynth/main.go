// Package main provides the vetsynth command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/logger"
	"github.com/TFMV/vetsynth/version"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFile    string

	cfg *config.Config
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "vetsynth",
		Short: "vetsynth generates a synthetic veterinary clinic database",
		Long: `vetsynth synthesizes a veterinary clinic relational dataset (animals, microchips,
owners, doctors, appointments, slots) and derives two polluted versions of it:
one with artificial unicity and one with dirty data.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				cfg.Log.Level = opts.LogLevel
			}
			if opts.LogFile != "" {
				cfg.Log.File = opts.LogFile
			}
			logger.SetLogPath(cfg.Log.File)
			logger.SetLevel(cfg.Log.Level)
			opts.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "Path of the JSON log file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of vetsynth",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	})
	root.AddCommand(newGenerateCommand(opts))
	root.AddCommand(newLoadCommand(opts))
	root.AddCommand(newValidateCommand(opts))
	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newInspectCommand())

	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
