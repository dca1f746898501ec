package main

import (
	"fmt"
	"slices"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/pkg/core"
)

// readableFormats are the export formats that can be read back.
var readableFormats = []string{"parquet", "arrow", "csv"}

// inputFormat picks the format to read a run directory with. An explicit
// choice wins, otherwise the first readable configured output format.
func inputFormat(explicit string, cfg *config.Config) (string, error) {
	if explicit != "" {
		if !slices.Contains(readableFormats, explicit) {
			return "", fmt.Errorf("format %q cannot be read back", explicit)
		}
		return explicit, nil
	}
	for _, f := range readableFormats {
		if slices.Contains(cfg.Output.Formats, f) {
			return f, nil
		}
	}
	return "", fmt.Errorf("none of the output formats %v can be read back", cfg.Output.Formats)
}

// parseStages resolves stage names, defaulting to every stage.
func parseStages(names []string) ([]core.Stage, error) {
	if len(names) == 0 {
		return core.Stages, nil
	}
	stages := make([]core.Stage, 0, len(names))
	for _, n := range names {
		st := core.Stage(n)
		if !slices.Contains(core.Stages, st) {
			return nil, fmt.Errorf("unknown stage %q (want one of %v)", n, core.Stages)
		}
		stages = append(stages, st)
	}
	return stages, nil
}

func releaseRelations(rels []core.Relation) {
	for _, r := range rels {
		if r.Record != nil {
			r.Record.Release()
		}
	}
}
