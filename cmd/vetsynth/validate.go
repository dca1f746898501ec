package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/TFMV/vetsynth/logger"
	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/export"
	"github.com/TFMV/vetsynth/pkg/schema"
	"github.com/TFMV/vetsynth/validation"
)

// ValidateOptions represents the options for the validate command.
type ValidateOptions struct {
	InputDir string
	Format   string
	Stages   []string
	Verbose  bool
}

func newValidateCommand(root *rootOptions) *cobra.Command {
	options := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check primary and foreign keys of an exported run",
		Long: `The validate command reads a run directory back and checks that every
surrogate key is unique and contiguous from its offset and that every
foreign key resolves. It exits non-zero when a check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, root, options)
		},
	}

	cmd.Flags().StringVarP(&options.InputDir, "input", "i", "", "Run directory (defaults to output.dir)")
	cmd.Flags().StringVarP(&options.Format, "format", "f", "", "Format to read (parquet, arrow, csv)")
	cmd.Flags().StringSliceVar(&options.Stages, "stage", nil, "Stages to check (rel, au, dirty)")
	cmd.Flags().BoolVarP(&options.Verbose, "verbose", "v", false, "Print passing checks too")

	return cmd
}

func runValidate(cmd *cobra.Command, root *rootOptions, options *ValidateOptions) error {
	cfg := root.cfg
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
	out := cmd.OutOrStdout()

	var failed error
	checked := 0
	for _, st := range stages {
		rels, err := export.Load(ctx, dir, st, format)
		if err != nil {
			return err
		}
		if len(rels) == 0 {
			continue
		}
		offsets := cfg.AU.IDOffsets
		if st == core.StageClean {
			offsets = cfg.Generation.IDOffsets
		}
		v := validation.NewValidator(st, offsets, log)
		v.SchemaLevel = schemaLevel(format)
		res, err := v.Validate(ctx, rels)
		releaseRelations(rels)
		if err != nil {
			return err
		}
		checked++
		printResult(out, st, res, options.Verbose)
		if err := res.Err(); err != nil && failed == nil {
			failed = err
		}
	}
	if checked == 0 {
		return fmt.Errorf("no %s relations found in %s", format, dir)
	}
	return failed
}

func printResult(w io.Writer, stage core.Stage, res validation.Result, verbose bool) {
	fmt.Fprintf(w, "stage %s: %d schemas, %d foreign keys, %d primary keys\n",
		stage, len(res.Schemas), len(res.ForeignKeys), len(res.PrimaryKeys))
	for _, sc := range res.Schemas {
		if sc.Valid && !verbose {
			continue
		}
		fmt.Fprintf(w, "  %s %s schema (%s)\n", status(sc.Valid), sc.Relation, sc.Level)
		for _, e := range sc.Errors {
			fmt.Fprintf(w, "      %s\n", e)
		}
	}
	for _, fk := range res.ForeignKeys {
		if fk.Status && !verbose {
			continue
		}
		fmt.Fprintf(w, "  %s %s.%s -> %s.%s (%d checked, %d nulls, %d violations)\n",
			status(fk.Status), fk.Relation, fk.Column, fk.RefRelation, fk.RefColumn, fk.Checked, fk.Nulls, fk.Violations)
		if len(fk.Sample) > 0 {
			fmt.Fprintf(w, "      e.g. %v\n", fk.Sample)
		}
	}
	for _, pk := range res.PrimaryKeys {
		if pk.Status && !verbose {
			continue
		}
		fmt.Fprintf(w, "  %s %s.%s (offset %d, %d rows, %d duplicates, contiguous %t)\n",
			status(pk.Status), pk.Relation, pk.Column, pk.Offset, pk.Rows, pk.Duplicates, pk.Contiguous)
	}
}

// schemaLevel is strict enough for typed formats, names only for CSV whose
// types are inferred on read.
func schemaLevel(format string) schema.ValidationLevel {
	if format == "csv" {
		return schema.ValidationLevelRelaxed
	}
	return schema.ValidationLevelCompatible
}

func status(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
