// Package export writes snapshot relations to files, one file per relation
// and format.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/readers"
	"github.com/TFMV/vetsynth/pkg/writers"
)

// ErrRelationMismatch is returned when a file's recorded relation differs
// from the one its name announces.
var ErrRelationMismatch = errors.New("relation mismatch")

// File describes one written export.
type File struct {
	Relation string     `json:"relation"`
	Stage    core.Stage `json:"stage"`
	Format   string     `json:"format"`
	Path     string     `json:"path"`
	Rows     int64      `json:"rows"`
}

// Exporter writes relations through the writer factory.
type Exporter struct {
	dir     string
	formats []string
	workers int
	factory *writers.Factory
	log     *zap.Logger
}

// New creates an exporter writing to dir. Workers bounds the number of
// files written concurrently.
func New(dir string, formats []string, workers int, log *zap.Logger) *Exporter {
	if workers <= 0 {
		workers = 4
	}
	return &Exporter{
		dir:     dir,
		formats: formats,
		workers: workers,
		factory: writers.DefaultFactory,
		log:     log,
	}
}

// Path returns the file a relation is exported to.
func Path(dir string, rel core.Relation, format string) string {
	return filepath.Join(dir, rel.FileName(format))
}

// Export writes every relation in every configured format. The relations
// are only read, the caller keeps ownership.
func (e *Exporter) Export(ctx context.Context, rels []core.Relation) ([]File, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	files := make([]File, 0, len(rels)*len(e.formats))
	for _, rel := range rels {
		for _, format := range e.formats {
			files = append(files, File{
				Relation: rel.Name,
				Stage:    rel.Stage,
				Format:   format,
				Path:     Path(e.dir, rel, format),
				Rows:     rel.Record.NumRows(),
			})
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, f := range files {
		rel := rels[i/len(e.formats)]
		g.Go(func() error {
			return e.write(ctx, f, rel)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (e *Exporter) write(ctx context.Context, f File, rel core.Relation) error {
	w, err := e.factory.Create(core.WriterConfig{
		Type:        f.Format,
		Path:        f.Path,
		IndexColumn: f.Format == "csv",
		Relation:    f.Relation,
		Stage:       f.Stage,
	})
	if err != nil {
		return fmt.Errorf("export %s: %w", filepath.Base(f.Path), err)
	}

	if err := w.Write(ctx, rel.Record); err != nil {
		w.Close()
		return fmt.Errorf("export %s: %w", filepath.Base(f.Path), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("export %s: %w", filepath.Base(f.Path), err)
	}

	e.log.Debug("Relation exported",
		zap.String("relation", f.Relation),
		zap.String("stage", string(f.Stage)),
		zap.String("format", f.Format),
		zap.Int64("rows", f.Rows))
	return nil
}

// Discover lists the exports of one stage and format found in dir, sorted by
// relation name.
func Discover(dir string, stage core.Stage, format string) ([]File, error) {
	suffix := "_" + string(stage) + "." + format
	matches, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(matches))
	for _, m := range matches {
		files = append(files, File{
			Relation: strings.TrimSuffix(filepath.Base(m), suffix),
			Stage:    stage,
			Format:   format,
			Path:     m,
			Rows:     -1,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Relation < files[j].Relation })
	return files, nil
}

// Load reads the exports of one stage back into relations. The caller
// releases them.
func Load(ctx context.Context, dir string, stage core.Stage, format string) ([]core.Relation, error) {
	files, err := Discover(dir, stage, format)
	if err != nil {
		return nil, err
	}

	rels := make([]core.Relation, 0, len(files))
	for _, f := range files {
		rec, err := read(ctx, f)
		if err != nil {
			for _, r := range rels {
				r.Release()
			}
			return nil, err
		}
		rels = append(rels, core.Relation{Name: f.Relation, Stage: stage, Record: rec})
	}
	return rels, nil
}

func read(ctx context.Context, f File) (arrow.Record, error) {
	r, err := readers.DefaultFactory.Create(core.ReaderConfig{Type: f.Format, Path: f.Path})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(f.Path), err)
	}
	defer r.Close()

	if name, stage, ok := core.RelationFromSchema(r.Schema()); ok && (name != f.Relation || stage != f.Stage) {
		return nil, fmt.Errorf("read %s: %w: file holds %s_%s", filepath.Base(f.Path), ErrRelationMismatch, name, stage)
	}

	rec, err := r.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(f.Path), err)
	}
	return rec, nil
}
