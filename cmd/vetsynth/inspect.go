package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/spf13/cobra"

	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/readers"
)

// InspectOptions represents the options for the inspect command.
type InspectOptions struct {
	Rows int
}

func newInspectCommand() *cobra.Command {
	options := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the schema and first rows of an exported relation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], options)
		},
	}
	cmd.Flags().IntVarP(&options.Rows, "rows", "r", 5, "Number of rows to print")
	return cmd
}

func runInspect(cmd *cobra.Command, path string, options *InspectOptions) error {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\n", path)

	if format == "parquet" {
		pf, err := file.OpenParquetFile(path, false)
		if err != nil {
			return fmt.Errorf("open parquet file: %w", err)
		}
		fmt.Fprintf(out, "Number of row groups: %d\n", pf.NumRowGroups())
		pf.Close()
	}

	reader, err := readers.DefaultFactory.Create(core.ReaderConfig{Type: format, Path: path})
	if err != nil {
		return err
	}
	defer reader.Close()

	if name, stage, ok := core.RelationFromSchema(reader.Schema()); ok {
		fmt.Fprintf(out, "Relation: %s (stage %s)\n", name, stage)
	}

	fmt.Fprintln(out, "\nSchema:")
	for i, field := range reader.Schema().Fields() {
		fmt.Fprintf(out, "  Field %d: %s (%s)\n", i, field.Name, field.Type)
	}

	fmt.Fprintf(out, "\nFirst %d rows:\n", options.Rows)
	var total int64
	for {
		rec, err := reader.Read(cmd.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		printRows(out, rec, total, options.Rows)
		total += rec.NumRows()
		rec.Release()
	}
	fmt.Fprintf(out, "\nNumber of rows: %d\n", total)
	return nil
}

// printRows prints the rows of rec that fall within the first max rows,
// rec starting at row offset.
func printRows(w io.Writer, rec arrow.Record, offset int64, max int) {
	for i := 0; i < int(rec.NumRows()) && offset+int64(i) < int64(max); i++ {
		cells := make([]string, rec.NumCols())
		for j, col := range rec.Columns() {
			if col.IsNull(i) {
				cells[j] = "NULL"
			} else {
				cells[j] = col.ValueStr(i)
			}
		}
		fmt.Fprintf(w, "Row %d: [%s]\n", offset+int64(i), strings.Join(cells, ", "))
	}
}
