// Package pipeline runs a full vetsynth generation: the clean snapshot, its
// artificial-unicity and dirty derivatives, export, integrity checks,
// reporting and optional publishing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/metrics"
	"github.com/TFMV/vetsynth/pkg/au"
	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/diff"
	"github.com/TFMV/vetsynth/pkg/dirty"
	"github.com/TFMV/vetsynth/pkg/export"
	"github.com/TFMV/vetsynth/pkg/generator"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/publish"
	"github.com/TFMV/vetsynth/pkg/refdata"
	"github.com/TFMV/vetsynth/report"
	"github.com/TFMV/vetsynth/validation"
	"github.com/TFMV/vetsynth/version"
)

// Pipeline runs the stages of one generation.
type Pipeline struct {
	cfg      *config.Config
	log      *zap.Logger
	mem      memory.Allocator
	progress func(stage string)
	timings  []metrics.StageTiming
}

// New creates a pipeline over a validated configuration.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		log:      log,
		mem:      memory.NewGoAllocator(),
		progress: func(string) {},
	}
}

// OnStage registers a callback invoked as each stage starts.
func (p *Pipeline) OnStage(fn func(stage string)) {
	p.progress = fn
}

// stage times fn under name.
func (p *Pipeline) stage(name string, fn func() error) error {
	p.progress(name)
	start := time.Now()
	err := fn()
	d := time.Since(start)
	p.timings = append(p.timings, metrics.StageTiming{Stage: name, Duration: d})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	p.log.Info("Stage finished", zap.String("stage", name), zap.Duration("duration", d))
	return nil
}

func releaseAll(rels []core.Relation) {
	for _, r := range rels {
		r.Release()
	}
}

// Run executes every stage. A run whose integrity checks fail still writes
// its exports and report, and returns a *metrics.ValidationError.
func (p *Pipeline) Run(ctx context.Context) (metrics.RunReport, error) {
	start := time.Now()
	gen := p.cfg.Generation
	last, err := gen.LastDate()
	if err != nil {
		return metrics.RunReport{}, err
	}

	run := metrics.RunReport{
		Metadata: metrics.RunMetadata{
			Version:       version.GetVersion(),
			Seed:          gen.Seed,
			NbAnimals:     gen.NbAnimals,
			ClinicStart:   gen.ClinicStartYear,
			LastDate:      last.Format(time.DateOnly),
			Country:       gen.Calendar.CountryCode,
			OutputDir:     p.cfg.Output.Dir,
			Formats:       p.cfg.Output.Formats,
			StartTime:     start,
			DirtyDisabled: !p.cfg.Dirty.Enabled,
		},
	}

	var (
		ref      *refdata.Data
		clean    *model.Clean
		polluted *model.AU
		stages   = map[core.Stage][]core.Relation{}
	)
	defer func() {
		for _, rels := range stages {
			releaseAll(rels)
		}
	}()

	if err := p.stage("reference", func() error {
		if gen.ReferenceDir != "" {
			ref, err = refdata.LoadDir(gen.ReferenceDir)
		} else {
			ref, err = refdata.Embedded()
		}
		return err
	}); err != nil {
		return run, err
	}

	if err := p.stage("generate", func() error {
		g, err := generator.New(gen, ref, p.log)
		if err != nil {
			return err
		}
		clean, err = g.Run(ctx)
		return err
	}); err != nil {
		return run, err
	}
	stages[core.StageClean] = clean.Relations(p.mem)

	if err := p.stage("au", func() error {
		polluted, err = au.New(p.cfg.AU, gen.Seed, p.log).Transform(ctx, clean)
		return err
	}); err != nil {
		return run, err
	}
	stages[core.StageAU] = polluted.Relations(p.mem)

	if p.cfg.Dirty.Enabled {
		if err := p.stage("dirty", func() error {
			steps := dirty.DefaultRecipe()
			if len(p.cfg.Dirty.Steps) > 0 {
				if steps, err = dirty.FromConfig(p.cfg.Dirty.Steps); err != nil {
					return err
				}
			}
			rels, results, err := dirty.New(steps, gen.Seed, p.log).Relations(ctx, stages[core.StageAU], p.mem)
			if err != nil {
				return err
			}
			stages[core.StageDirty] = rels
			for _, r := range results {
				run.Corruptions = append(run.Corruptions, metrics.CorruptionResult(r))
			}
			run.Drift, err = p.drift(ctx, stages[core.StageAU], rels)
			return err
		}); err != nil {
			return run, err
		}
	}

	var all []core.Relation
	for _, st := range core.Stages {
		all = append(all, stages[st]...)
	}
	for _, r := range all {
		run.Relations = append(run.Relations, metrics.RelationCount{
			Relation: r.Name,
			Stage:    string(r.Stage),
			Rows:     r.Record.NumRows(),
			Columns:  int(r.Record.NumCols()),
		})
	}
	for _, u := range clean.Unmet {
		run.Unmet = append(run.Unmet, metrics.UnmetHours{Month: u.Month.Format("2006-01"), Category: u.Category, Hours: u.Hours})
	}
	run.Unscheduled = clean.Unscheduled

	if err := p.stage("export", func() error {
		files, err := export.New(p.cfg.Output.Dir, p.cfg.Output.Formats, p.cfg.Output.Workers, p.log).Export(ctx, all)
		for _, f := range files {
			run.Files = append(run.Files, metrics.FileResult{
				Relation: f.Relation, Stage: string(f.Stage), Format: f.Format, Path: f.Path, Rows: f.Rows,
			})
		}
		return err
	}); err != nil {
		return run, err
	}

	var integrity error
	if err := p.stage("validate", func() error {
		for _, st := range core.Stages {
			rels, ok := stages[st]
			if !ok {
				continue
			}
			offsets := p.cfg.AU.IDOffsets
			if st == core.StageClean {
				offsets = gen.IDOffsets
			}
			res, err := validation.NewValidator(st, offsets, p.log).Validate(ctx, rels)
			if err != nil {
				return err
			}
			run.Schemas = append(run.Schemas, res.Schemas...)
			run.ForeignKeys = append(run.ForeignKeys, res.ForeignKeys...)
			run.PrimaryKeys = append(run.PrimaryKeys, res.PrimaryKeys...)
			if err := res.Err(); err != nil && integrity == nil {
				integrity = err
			}
		}
		return nil
	}); err != nil {
		return run, err
	}

	if s3 := p.cfg.Publish.S3; s3.Bucket != "" {
		if err := p.stage("publish", func() error {
			// The report is written first so it is published with the data.
			if err := p.finish(ctx, &run, start); err != nil {
				return err
			}
			pub, err := publish.New(ctx, s3, p.log)
			if err != nil {
				return err
			}
			run.Published, err = pub.PublishDir(ctx, p.cfg.Output.Dir)
			return err
		}); err != nil {
			return run, err
		}
	}

	if err := p.finish(ctx, &run, start); err != nil {
		return run, err
	}
	p.log.Info("Run complete",
		zap.Uint64("seed", gen.Seed),
		zap.Int("relations", len(run.Relations)),
		zap.Int("unmet_hours", run.TotalUnmetHours()),
		zap.Int("unscheduled", len(run.Unscheduled)),
		zap.Bool("passed", run.Passed()),
		zap.Duration("duration", run.Metadata.Duration))
	return run, integrity
}

// drift compares the dirty relations with their artificial-unicity source
// on the surrogate keys, which the dirty pass never touches.
func (p *Pipeline) drift(ctx context.Context, au, dirtyRels []core.Relation) ([]metrics.CellDrift, error) {
	keys := make(map[string][]string)
	for _, k := range validation.PrimaryKeys(core.StageAU) {
		keys[k.Relation] = []string{k.Column}
	}
	sums, err := diff.Relations(ctx, au, dirtyRels, keys, diff.Options{Workers: p.cfg.Output.Workers})
	if err != nil {
		return nil, fmt.Errorf("drift audit: %w", err)
	}
	var out []metrics.CellDrift
	for _, sum := range sums {
		cols := lo.Keys(sum.Columns)
		slices.Sort(cols)
		for _, c := range cols {
			out = append(out, metrics.CellDrift{Relation: sum.Relation, Column: c, Cells: sum.Columns[c]})
		}
		p.log.Debug("Drift audited",
			zap.String("relation", sum.Relation),
			zap.Int64("rows_modified", sum.Modified),
			zap.Int64("added", sum.Added),
			zap.Int64("deleted", sum.Deleted))
	}
	return out, nil
}

// finish stamps the timings and writes the JSON and HTML reports.
func (p *Pipeline) finish(ctx context.Context, run *metrics.RunReport, start time.Time) error {
	run.Metadata.EndTime = time.Now()
	run.Metadata.Duration = run.Metadata.EndTime.Sub(start)
	run.Metadata.Stages = append([]metrics.StageTiming(nil), p.timings...)
	if !p.cfg.Output.Report {
		return nil
	}

	store := &metrics.JSONMetricsStore{FilePath: filepath.Join(p.cfg.Output.Dir, report.JSONFile)}
	if err := store.SaveWithContext(ctx, *run); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	html := &report.HTMLReportGenerator{}
	if err := html.SaveReportToFile(*run, filepath.Join(p.cfg.Output.Dir, report.HTMLFile)); err != nil {
		return fmt.Errorf("failed to save html report: %w", err)
	}
	return nil
}

// IsIntegrityFailure reports whether err came from failed integrity checks
// rather than from a stage aborting.
func IsIntegrityFailure(err error) bool {
	var verr *metrics.ValidationError
	return errors.As(err, &verr)
}
