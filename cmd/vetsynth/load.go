package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/logger"
	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/export"
	"github.com/TFMV/vetsynth/pkg/loaders"
)

// LoadOptions represents the options for the load command.
type LoadOptions struct {
	InputDir   string
	Format     string
	Driver     string
	DSN        string
	DriverPath string
	Stages     []string
}

func newLoadCommand(root *rootOptions) *cobra.Command {
	options := &LoadOptions{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load an exported run into a database",
		Long: `The load command reads the relations of a generated run directory and loads
each stage into its configured schema, replacing any previous content.

Supported drivers: postgres, sqlite, adbc.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, root, options)
		},
	}

	cmd.Flags().StringVarP(&options.InputDir, "input", "i", "", "Run directory (defaults to output.dir)")
	cmd.Flags().StringVarP(&options.Format, "format", "f", "", "Format to read (parquet, arrow, csv)")
	cmd.Flags().StringVar(&options.Driver, "driver", "", "Database driver (overrides load.driver)")
	cmd.Flags().StringVar(&options.DSN, "dsn", "", "Connection string (overrides load.dsn)")
	cmd.Flags().StringVar(&options.DriverPath, "driver-path", "", "ADBC driver shared library")
	cmd.Flags().StringSliceVar(&options.Stages, "stage", nil, "Stages to load (rel, au, dirty)")

	return cmd
}

func runLoad(cmd *cobra.Command, root *rootOptions, options *LoadOptions) error {
	cfg := root.cfg
	if options.Driver != "" {
		cfg.Load.Driver = options.Driver
	}
	if options.DSN != "" {
		cfg.Load.DSN = options.DSN
	}
	if options.DriverPath != "" {
		cfg.Load.DriverPath = options.DriverPath
	}
	if err := cfg.Load.Validate(); err != nil {
		return err
	}
	dir := options.InputDir
	if dir == "" {
		dir = cfg.Output.Dir
	}
	format, err := inputFormat(options.Format, cfg)
	if err != nil {
		return err
	}
	stages, err := parseStages(options.Stages)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	log := logger.GetLogger()

	loader, err := loaders.DefaultFactory.Create(core.LoaderConfig{
		Driver:     cfg.Load.Driver,
		DSN:        cfg.Load.DSN,
		DriverPath: cfg.Load.DriverPath,
	})
	if err != nil {
		return err
	}
	defer loader.Close()

	total := 0
	for _, st := range stages {
		rels, err := export.Load(ctx, dir, st, format)
		if err != nil {
			return err
		}
		if len(rels) == 0 {
			log.Warn("No relations found", zap.String("stage", string(st)), zap.String("dir", dir))
			continue
		}
		err = loaders.LoadAll(ctx, loader, cfg.Load.Schemas, rels, log)
		releaseRelations(rels)
		if err != nil {
			return err
		}
		total += len(rels)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d relations with %s\n", total, cfg.Load.Driver)
	return nil
}
