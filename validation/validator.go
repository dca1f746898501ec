// Package validation checks the integrity of a snapshot: every relation has
// its expected schema, every foreign key resolves and every surrogate key is
// unique and contiguous.
package validation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/metrics"
	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/schema"
)

var (
	ErrMissingRelation = errors.New("relation not found")
	ErrMissingColumn   = errors.New("column not found")
)

// DefaultSampleSize bounds the dangling values kept per foreign key.
const DefaultSampleSize = 10

// Result holds the integrity checks of one stage.
type Result struct {
	Schemas     []metrics.SchemaResult
	ForeignKeys []metrics.ForeignKeyResult
	PrimaryKeys []metrics.PrimaryKeyResult
}

// Err returns a *metrics.ValidationError when any check failed.
func (r Result) Err() error {
	badSchema := lo.Filter(r.Schemas, func(sc metrics.SchemaResult, _ int) bool { return !sc.Valid })
	if len(badSchema) > 0 {
		return &metrics.ValidationError{
			Code:    metrics.CodeSchema,
			Message: fmt.Sprintf("%d relations do not have their expected schema", len(badSchema)),
			Details: map[string]interface{}{"checks": badSchema},
		}
	}
	bad := lo.Filter(r.ForeignKeys, func(fk metrics.ForeignKeyResult, _ int) bool { return !fk.Status })
	if len(bad) > 0 {
		return &metrics.ValidationError{
			Code:    metrics.CodeForeignKey,
			Message: fmt.Sprintf("%d foreign keys do not resolve", len(bad)),
			Details: map[string]interface{}{"checks": bad},
		}
	}
	badPK := lo.Filter(r.PrimaryKeys, func(pk metrics.PrimaryKeyResult, _ int) bool { return !pk.Status })
	if len(badPK) > 0 {
		return &metrics.ValidationError{
			Code:    metrics.CodePrimaryKey,
			Message: fmt.Sprintf("%d primary keys are not unique and contiguous", len(badPK)),
			Details: map[string]interface{}{"checks": badPK},
		}
	}
	return nil
}

// Validator manages the checks of one snapshot stage.
type Validator struct {
	Stage      core.Stage
	References []Reference
	Keys       []Key
	Offsets    map[string]int
	SampleSize int
	// Schemas are the expected schemas per relation, checked at SchemaLevel.
	Schemas     map[string]*arrow.Schema
	SchemaLevel schema.ValidationLevel

	// Logger for structured logging.
	Logger *zap.Logger
}

// NewValidator builds a validator with the references and keys of stage.
// Offsets are the first surrogate key per relation.
func NewValidator(stage core.Stage, offsets map[string]int, logger *zap.Logger) *Validator {
	return &Validator{
		Stage:       stage,
		References:  References(stage),
		Keys:        PrimaryKeys(stage),
		Offsets:     offsets,
		SampleSize:  DefaultSampleSize,
		Schemas:     model.Schemas(stage),
		SchemaLevel: schema.ValidationLevelStrict,
		Logger:      logger,
	}
}

// Validate runs the schema, key and reference checks concurrently.
func (v *Validator) Validate(ctx context.Context, rels []core.Relation) (Result, error) {
	start := time.Now()
	v.Logger.Info("Starting validation", zap.String("stage", string(v.Stage)), zap.Int("relations", len(rels)))

	byName := make(map[string]arrow.Record, len(rels))
	for _, r := range rels {
		byName[r.Name] = r.Record
	}

	var (
		wg    sync.WaitGroup
		errCh = make(chan error, 3)
		res   Result
	)
	wg.Add(3)

	go func() {
		defer wg.Done()
		schemas, err := CheckSchemas(v.Stage, byName, v.Schemas, v.SchemaLevel)
		if err != nil {
			errCh <- fmt.Errorf("schema validation failed: %w", err)
			return
		}
		res.Schemas = schemas
	}()

	go func() {
		defer wg.Done()
		fks, err := CheckForeignKeys(ctx, v.Stage, byName, v.References, v.SampleSize)
		if err != nil {
			errCh <- fmt.Errorf("foreign key validation failed: %w", err)
			return
		}
		res.ForeignKeys = fks
	}()

	go func() {
		defer wg.Done()
		pks, err := CheckPrimaryKeys(v.Stage, byName, v.Keys, v.Offsets)
		if err != nil {
			errCh <- fmt.Errorf("primary key validation failed: %w", err)
			return
		}
		res.PrimaryKeys = pks
	}()

	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		v.Logger.Error("Validation error", zap.Error(err))
		return Result{}, err
	}

	v.Logger.Info("Validation complete",
		zap.String("stage", string(v.Stage)),
		zap.Int("schemas", len(res.Schemas)),
		zap.Int("foreign_keys", len(res.ForeignKeys)),
		zap.Int("primary_keys", len(res.PrimaryKeys)),
		zap.Bool("passed", res.Err() == nil),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// CheckSchemas compares each relation of expected with its record at level.
func CheckSchemas(stage core.Stage, rels map[string]arrow.Record, expected map[string]*arrow.Schema, level schema.ValidationLevel) ([]metrics.SchemaResult, error) {
	names := lo.Keys(expected)
	slices.Sort(names)

	v := schema.NewArrowSchemaValidator()
	v.SetValidationLevel(level)
	out := make([]metrics.SchemaResult, 0, len(names))
	for _, name := range names {
		rec, ok := rels[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingRelation, name)
		}
		res := v.ValidateAgainstTarget(rec.Schema(), expected[name])
		out = append(out, metrics.SchemaResult{
			Stage:    string(stage),
			Relation: name,
			Level:    level.String(),
			Errors:   res.Messages(),
			Warnings: lo.Flatten(lo.Values(res.Warnings)),
			Valid:    res.Valid,
		})
	}
	return out, nil
}

// column finds relation.name in rels.
func column(rels map[string]arrow.Record, relation, name string) (arrow.Array, error) {
	rec, ok := rels[relation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRelation, relation)
	}
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingColumn, relation, name)
	}
	return rec.Column(idx[0]), nil
}

// valueSet collects the non-null values of col as text.
func valueSet(col arrow.Array) map[string]struct{} {
	set := make(map[string]struct{}, col.Len())
	for i := range col.Len() {
		if !col.IsNull(i) {
			set[col.ValueStr(i)] = struct{}{}
		}
	}
	return set
}

// CheckForeignKeys computes, for every reference, the values of the foreign
// key column missing from the referenced key column. Values compare as text
// so typed and all-text snapshots check alike.
func CheckForeignKeys(ctx context.Context, stage core.Stage, rels map[string]arrow.Record, refs []Reference, sample int) ([]metrics.ForeignKeyResult, error) {
	keySets := make(map[Key]map[string]struct{})
	for _, ref := range refs {
		k := Key{Relation: ref.RefRelation, Column: ref.RefColumn}
		if _, ok := keySets[k]; ok {
			continue
		}
		col, err := column(rels, k.Relation, k.Column)
		if err != nil {
			return nil, err
		}
		keySets[k] = valueSet(col)
	}

	out := make([]metrics.ForeignKeyResult, 0, len(refs))
	for _, ref := range refs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		col, err := column(rels, ref.Relation, ref.Column)
		if err != nil {
			return nil, err
		}
		keys := keySets[Key{Relation: ref.RefRelation, Column: ref.RefColumn}]

		r := metrics.ForeignKeyResult{
			Stage:       string(stage),
			Relation:    ref.Relation,
			Column:      ref.Column,
			RefRelation: ref.RefRelation,
			RefColumn:   ref.RefColumn,
			Checked:     int64(col.Len()),
		}
		var missing []string
		for i := range col.Len() {
			if col.IsNull(i) {
				r.Nulls++
				continue
			}
			v := col.ValueStr(i)
			if _, ok := keys[v]; !ok {
				r.Violations++
				missing = append(missing, v)
			}
		}
		missing = lo.Uniq(missing)
		if len(missing) > sample {
			missing = missing[:sample]
		}
		r.Sample = missing
		r.Status = r.Violations == 0
		out = append(out, r)
	}
	return out, nil
}

// CheckPrimaryKeys checks that every key column holds the values offset,
// offset+1, ... once each. A missing offset means 1.
func CheckPrimaryKeys(stage core.Stage, rels map[string]arrow.Record, keys []Key, offsets map[string]int) ([]metrics.PrimaryKeyResult, error) {
	out := make([]metrics.PrimaryKeyResult, 0, len(keys))
	for _, k := range keys {
		col, err := column(rels, k.Relation, k.Column)
		if err != nil {
			return nil, err
		}
		from := k.Relation
		if k.OffsetOf != "" {
			from = k.OffsetOf
		}
		offset := config.Offset(offsets, from)

		r := metrics.PrimaryKeyResult{
			Stage:    string(stage),
			Relation: k.Relation,
			Column:   k.Column,
			Offset:   offset,
			Rows:     int64(col.Len()),
		}
		ids, ok := intValues(col)
		r.Duplicates = int64(len(ids) - len(lo.Uniq(ids)))
		if ok {
			slices.Sort(ids)
			r.Contiguous = len(ids) == 0 || (ids[0] == int64(offset) && ids[len(ids)-1] == int64(offset)+int64(len(ids))-1)
		}
		r.Status = ok && r.Duplicates == 0 && r.Contiguous
		out = append(out, r)
	}
	return out, nil
}

// intValues reads col as integers. It reports false when a value is null or
// not an integer.
func intValues(col arrow.Array) ([]int64, bool) {
	out := make([]int64, 0, col.Len())
	ok := true
	if ints, typed := col.(*array.Int64); typed {
		for i := range ints.Len() {
			if ints.IsNull(i) {
				ok = false
				continue
			}
			out = append(out, ints.Value(i))
		}
		return out, ok
	}
	for i := range col.Len() {
		if col.IsNull(i) {
			ok = false
			continue
		}
		v, err := strconv.ParseInt(col.ValueStr(i), 10, 64)
		if err != nil {
			ok = false
			continue
		}
		out = append(out, v)
	}
	return out, ok
}
