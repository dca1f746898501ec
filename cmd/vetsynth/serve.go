package main

import (
	"github.com/spf13/cobra"

	"github.com/TFMV/vetsynth/api"
	"github.com/TFMV/vetsynth/logger"
)

// ServeOptions represents the options for the serve command.
type ServeOptions struct {
	Port    string
	RunDir  string
	Prefork bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	options := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a generated run over HTTP",
		Long: `The serve command exposes the report, the exported relation files and
Prometheus metrics of a run directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if options.Port != "" {
				cfg.Server.Port = options.Port
			}
			if options.RunDir != "" {
				cfg.Server.RunDir = options.RunDir
			}
			if cmd.Flags().Changed("prefork") {
				cfg.Server.Prefork = options.Prefork
			}
			if cfg.Server.RunDir == "" {
				cfg.Server.RunDir = cfg.Output.Dir
			}
			server := api.NewServer(api.ServerOptions{
				Port:    cfg.Server.Port,
				Prefork: cfg.Server.Prefork,
				RunDir:  cfg.Server.RunDir,
				Logger:  logger.GetLogger(),
			})
			return server.Start()
		},
	}

	cmd.Flags().StringVarP(&options.Port, "port", "p", "", "Port to listen on")
	cmd.Flags().StringVarP(&options.RunDir, "dir", "d", "", "Run directory to serve")
	cmd.Flags().BoolVar(&options.Prefork, "prefork", false, "Enable fiber prefork")

	return cmd
}
