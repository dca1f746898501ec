// Package refdata loads the reference tables the generators draw from:
// base animal profiles, breed weight ranges, microchip codes, services and
// the reason/service probability maps.
package refdata

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

//go:embed data/*.csv
var embedded embed.FS

// File names of the reference tables.
const (
	FileAnimals        = "animal_list.csv"
	FileCatWeights     = "cat_breed_weight_range.csv"
	FileDogWeights     = "dog_breed_weight_range.csv"
	FileCodes          = "microchip_codes_data.csv"
	FileServices       = "service_list.csv"
	FileReasonServices = "appt_reason_service_list.csv"
	FileSurgeryTypes   = "surgery_types_distribution.csv"
)

// MissingColumnError reports a reference table without a required column.
type MissingColumnError struct {
	Relation string
	Column   string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q not found in %s", e.Column, e.Relation)
}

type AnimalProfile struct {
	Species string
	Breed   string
	Name    string
	Gender  string
}

type BreedWeight struct {
	MaleMin, MaleMax     float64
	FemaleMin, FemaleMax float64
}

type CodeEntry struct {
	Code       string
	Brand      string
	Provider   string
	Country    string
	MarketYear *int
}

type ReasonService struct {
	Reason      string
	Service     string
	Probability float64
}

// SurgeryType covers draws u with MinProp < u <= MaxProp.
type SurgeryType struct {
	Type    string
	MinProp float64
	MaxProp float64
}

// Data is the full set of reference tables.
type Data struct {
	Animals        []AnimalProfile
	BreedWeights   map[string]BreedWeight
	Codes          []CodeEntry
	Services       []string
	ReasonServices []ReasonService
	SurgeryTypes   []SurgeryType
}

// Embedded returns the reference tables shipped with the binary.
func Embedded() (*Data, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// LoadDir reads the reference tables from a directory, falling back to the
// embedded copy when dir is empty.
func LoadDir(dir string) (*Data, error) {
	if dir == "" {
		return Embedded()
	}
	return Load(os.DirFS(dir))
}

// Load reads every reference table from fsys.
func Load(fsys fs.FS) (*Data, error) {
	d := &Data{BreedWeights: map[string]BreedWeight{}}

	err := readTable(fsys, FileAnimals, map[string]arrow.DataType{
		"species": arrow.BinaryTypes.String, "breed": arrow.BinaryTypes.String,
		"name": arrow.BinaryTypes.String, "gender": arrow.BinaryTypes.String,
	}, func(t *table) {
		species, breed, name, gender := t.strings("species"), t.strings("breed"), t.strings("name"), t.strings("gender")
		for i := 0; i < t.rows && t.err == nil; i++ {
			d.Animals = append(d.Animals, AnimalProfile{species.Value(i), breed.Value(i), name.Value(i), gender.Value(i)})
		}
	})
	if err != nil {
		return nil, err
	}

	weightTypes := map[string]arrow.DataType{
		"breed":             arrow.BinaryTypes.String,
		"male_min_weight":   arrow.PrimitiveTypes.Float64,
		"male_max_weight":   arrow.PrimitiveTypes.Float64,
		"female_min_weight": arrow.PrimitiveTypes.Float64,
		"female_max_weight": arrow.PrimitiveTypes.Float64,
	}
	for _, name := range []string{FileCatWeights, FileDogWeights} {
		err := readTable(fsys, name, weightTypes, func(t *table) {
			breed := t.strings("breed")
			mMin, mMax := t.floats("male_min_weight"), t.floats("male_max_weight")
			fMin, fMax := t.floats("female_min_weight"), t.floats("female_max_weight")
			for i := 0; i < t.rows && t.err == nil; i++ {
				d.BreedWeights[breed.Value(i)] = BreedWeight{mMin.Value(i), mMax.Value(i), fMin.Value(i), fMax.Value(i)}
			}
		})
		if err != nil {
			return nil, err
		}
	}

	err = readTable(fsys, FileCodes, map[string]arrow.DataType{
		"code": arrow.BinaryTypes.String, "brand": arrow.BinaryTypes.String,
		"provider": arrow.BinaryTypes.String, "country": arrow.BinaryTypes.String,
		"market_year": arrow.PrimitiveTypes.Int64,
	}, func(t *table) {
		code, brand, provider, country := t.strings("code"), t.strings("brand"), t.strings("provider"), t.strings("country")
		year := t.ints("market_year")
		for i := 0; i < t.rows && t.err == nil; i++ {
			e := CodeEntry{Code: code.Value(i), Brand: brand.Value(i), Provider: provider.Value(i), Country: country.Value(i)}
			if year.IsValid(i) {
				y := int(year.Value(i))
				e.MarketYear = &y
			}
			d.Codes = append(d.Codes, e)
		}
	})
	if err != nil {
		return nil, err
	}

	err = readTable(fsys, FileServices, map[string]arrow.DataType{
		"service_name": arrow.BinaryTypes.String,
	}, func(t *table) {
		names := t.strings("service_name")
		for i := 0; i < t.rows && t.err == nil; i++ {
			d.Services = append(d.Services, names.Value(i))
		}
	})
	if err != nil {
		return nil, err
	}

	err = readTable(fsys, FileReasonServices, map[string]arrow.DataType{
		"reason": arrow.BinaryTypes.String, "service": arrow.BinaryTypes.String,
		"probability": arrow.PrimitiveTypes.Float64,
	}, func(t *table) {
		reason, service, p := t.strings("reason"), t.strings("service"), t.floats("probability")
		for i := 0; i < t.rows && t.err == nil; i++ {
			d.ReasonServices = append(d.ReasonServices, ReasonService{reason.Value(i), service.Value(i), p.Value(i)})
		}
	})
	if err != nil {
		return nil, err
	}

	err = readTable(fsys, FileSurgeryTypes, map[string]arrow.DataType{
		"type": arrow.BinaryTypes.String, "min_prop": arrow.PrimitiveTypes.Float64,
		"max_prop": arrow.PrimitiveTypes.Float64,
	}, func(t *table) {
		typ, lo, hi := t.strings("type"), t.floats("min_prop"), t.floats("max_prop")
		for i := 0; i < t.rows && t.err == nil; i++ {
			d.SurgeryTypes = append(d.SurgeryTypes, SurgeryType{typ.Value(i), lo.Value(i), hi.Value(i)})
		}
	})
	if err != nil {
		return nil, err
	}

	return d, d.validate()
}

func (d *Data) validate() error {
	if len(d.Animals) == 0 {
		return errors.New("refdata: animal list is empty")
	}
	known := map[string]bool{}
	for _, s := range d.Services {
		known[s] = true
	}
	for _, rs := range d.ReasonServices {
		if !known[rs.Service] {
			return fmt.Errorf("refdata: reason %q maps to unknown service %q", rs.Reason, rs.Service)
		}
	}
	for _, st := range d.SurgeryTypes {
		if !known[st.Type] {
			return fmt.Errorf("refdata: unknown surgery type %q", st.Type)
		}
	}
	return nil
}

// table is one reference file read into a single record. Column lookups
// record the first missing column in err and return an empty array so the
// fill callback can stay linear.
type table struct {
	name string
	rec  arrow.Record
	rows int
	err  error
}

func (t *table) column(name string) arrow.Array {
	idx := t.rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		if t.err == nil {
			t.err = &MissingColumnError{Relation: t.name, Column: name}
		}
		t.rows = 0
		return nil
	}
	return t.rec.Column(idx[0])
}

func (t *table) strings(name string) *array.String {
	if c, ok := t.column(name).(*array.String); ok {
		return c
	}
	t.rows = 0
	return nil
}

func (t *table) floats(name string) *array.Float64 {
	if c, ok := t.column(name).(*array.Float64); ok {
		return c
	}
	t.rows = 0
	return nil
}

func (t *table) ints(name string) *array.Int64 {
	if c, ok := t.column(name).(*array.Int64); ok {
		return c
	}
	t.rows = 0
	return nil
}

func readTable(fsys fs.FS, name string, types map[string]arrow.DataType, fill func(*table)) error {
	f, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open reference table %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewInferringReader(f,
		csv.WithHeader(true),
		csv.WithChunk(-1),
		csv.WithNullReader(true, ""),
		csv.WithColumnTypes(types),
		csv.WithAllocator(memory.NewGoAllocator()),
	)
	defer r.Release()

	if !r.Next() {
		if r.Err() != nil {
			return fmt.Errorf("failed to read reference table %s: %w", name, r.Err())
		}
		return fmt.Errorf("reference table %s is empty", name)
	}
	t := &table{name: name, rec: r.Record(), rows: int(r.Record().NumRows())}
	fill(t)
	return t.err
}
