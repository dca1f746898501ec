package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/internal/pipeline"
	"github.com/TFMV/vetsynth/logger"
)

// GenerateOptions represents the options for the generate command.
type GenerateOptions struct {
	Seed       uint64
	NbAnimals  int
	LastDate   string
	OutputDir  string
	Formats    []string
	Workers    int
	NoDirty    bool
	NoPublish  bool
	NoProgress bool
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	options := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the clean, artificial-unicity and dirty snapshots",
		Long: `The generate command builds the clean snapshot, derives the artificial-unicity
and dirty snapshots, exports every relation as <relation>_<stage>.<ext>,
checks referential integrity and writes report.json and report.html.

Flags override the matching config keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, options)
		},
	}

	cmd.Flags().Uint64Var(&options.Seed, "seed", 0, "Global seed (overrides generation.seed)")
	cmd.Flags().IntVarP(&options.NbAnimals, "animals", "n", 0, "Number of animals (overrides generation.nb_animals)")
	cmd.Flags().StringVar(&options.LastDate, "last-date", "", "Last operation date, YYYY-MM-DD")
	cmd.Flags().StringVarP(&options.OutputDir, "output", "o", "", "Output directory")
	cmd.Flags().StringSliceVarP(&options.Formats, "format", "f", nil, "Export formats (csv, parquet, arrow, json)")
	cmd.Flags().IntVar(&options.Workers, "workers", 0, "Concurrent export writers")
	cmd.Flags().BoolVar(&options.NoDirty, "no-dirty", false, "Skip the dirty-data pass")
	cmd.Flags().BoolVar(&options.NoPublish, "no-publish", false, "Do not upload to S3 even when a bucket is configured")
	cmd.Flags().BoolVar(&options.NoProgress, "no-progress", false, "Disable the progress spinner")

	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, options *GenerateOptions) error {
	cfg := root.cfg
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Generation.Seed = options.Seed
	}
	if options.NbAnimals > 0 {
		cfg.Generation.NbAnimals = options.NbAnimals
	}
	if options.LastDate != "" {
		cfg.Generation.LastOperationDate = options.LastDate
	}
	if options.OutputDir != "" {
		cfg.Output.Dir = options.OutputDir
	}
	if len(options.Formats) > 0 {
		cfg.Output.Formats = options.Formats
	}
	if options.Workers > 0 {
		cfg.Output.Workers = options.Workers
	}
	if options.NoDirty {
		cfg.Dirty.Enabled = false
	}
	if options.NoPublish {
		cfg.Publish.S3.Bucket = ""
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	log := logger.GetLogger()
	p := pipeline.New(cfg, log)

	if !options.NoProgress && isTerminal(os.Stderr) {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		p.OnStage(func(stage string) { s.Suffix = " " + stage })
		s.Start()
		defer s.Stop()
	}

	run, err := p.Run(ctx)
	if err != nil && !pipeline.IsIntegrityFailure(err) {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files to %s (seed %d, %d unscheduled appointments, %d unmet doctor hours)\n",
		len(run.Files), cfg.Output.Dir, cfg.Generation.Seed, len(run.Unscheduled), run.TotalUnmetHours())
	if len(run.Published) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "published %d objects to s3://%s/%s\n",
			len(run.Published), cfg.Publish.S3.Bucket, cfg.Publish.S3.Prefix)
	}
	if err != nil {
		log.Error("Integrity checks failed", zap.Error(err))
	}
	return err
}

// isTerminal reports whether f is a character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
