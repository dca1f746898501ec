// Package generator builds the clean clinic database: animals, microchips,
// appointments, weights, services, doctors, slots and owners, with every
// foreign key resolved.
//
// Generation is an ordered list of stages applied to a build arena. Rows
// carry temporary ids (their index in the arena) until the stage that can
// order them assigns final surrogate keys.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/randx"
	"github.com/TFMV/vetsynth/pkg/refdata"
)

// MinAnimals is the smallest population the generator accepts.
const MinAnimals = 100

// MinOperatingYears is the shortest clinic operating window accepted.
const MinOperatingYears = 5

var (
	ErrEmptyBase               = errors.New("base animal list is empty")
	ErrPopulationTooSmall      = errors.New("population too small")
	ErrInvalidStartYear        = errors.New("clinic start year out of range")
	ErrOperatingWindowTooShort = errors.New("operating window too short")
	ErrTooManyBornBefore       = errors.New("prop_born_before_opening must be in [0, 0.5)")
	ErrUnknownBreed            = errors.New("no weight range for breed")
	ErrUnknownGender           = errors.New("unexpected gender")
	ErrNoMicrochipCode         = errors.New("no microchip code on the market")
	ErrNoOwners                = errors.New("no owners available")
)

// Stage is one named step of the generation fold.
type Stage struct {
	Name string
	Run  func(ctx context.Context, b *Build) error
}

// Generator holds the validated parameters of one run.
type Generator struct {
	cfg         config.GenerationConfig
	ref         *refdata.Data
	cal         *calendar.Calendar
	weekStart   time.Weekday
	opening     time.Time
	last        time.Time
	lastWorking time.Time
	log         *zap.Logger
}

// New validates cfg against the reference data and returns a generator.
func New(cfg config.GenerationConfig, ref *refdata.Data, log *zap.Logger) (*Generator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(ref.Animals) == 0 {
		return nil, ErrEmptyBase
	}
	if cfg.NbAnimals < MinAnimals {
		return nil, fmt.Errorf("%w: %d animals, need at least %d", ErrPopulationTooSmall, cfg.NbAnimals, MinAnimals)
	}
	last, err := cfg.LastDate()
	if err != nil {
		return nil, err
	}
	if cfg.ClinicStartYear < 2000 || cfg.ClinicStartYear > last.Year() {
		return nil, fmt.Errorf("%w: %d not in [2000, %d]", ErrInvalidStartYear, cfg.ClinicStartYear, last.Year())
	}
	if last.Year()-cfg.ClinicStartYear < MinOperatingYears {
		return nil, fmt.Errorf("%w: %d to %d, need %d years", ErrOperatingWindowTooShort,
			cfg.ClinicStartYear, last.Year(), MinOperatingYears)
	}
	if cfg.PropBornBeforeOpening < 0 || cfg.PropBornBeforeOpening >= 0.5 {
		return nil, fmt.Errorf("%w: got %g", ErrTooManyBornBefore, cfg.PropBornBeforeOpening)
	}
	cal, err := cfg.Calendar.Calendar()
	if err != nil {
		return nil, err
	}
	weekStart, err := cfg.Calendar.WeekStart()
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:         cfg,
		ref:         ref,
		cal:         cal,
		weekStart:   weekStart,
		opening:     calendar.Date(cfg.ClinicStartYear, time.January, 1),
		last:        last,
		lastWorking: cal.PreviousWorkingDay(last),
		log:         log,
	}, nil
}

// Calendar returns the working calendar of the run.
func (g *Generator) Calendar() *calendar.Calendar { return g.cal }

func (g *Generator) rand(stage string) *randx.Rand {
	return randx.Derive(g.cfg.Seed, stage)
}

func (g *Generator) offset(relation string) int {
	return config.Offset(g.cfg.IDOffsets, relation)
}

// Stages lists the generation steps in dependency order.
func (g *Generator) Stages() []Stage {
	return []Stage{
		{"animals", g.animals},
		{"microchip_codes", g.microchipCodes},
		{"microchips", g.microchips},
		{"appointments", g.appointments},
		{"animal_weights", g.animalWeights},
		{"services", g.services},
		{"doctors", g.doctors},
		{"doctor_historization", g.doctorHistorization},
		{"slots", g.slots},
		{"appointment_slots", g.appointmentSlots},
		{"owners", g.owners},
	}
}

// Run applies every stage and returns the clean snapshot.
func (g *Generator) Run(ctx context.Context) (*model.Clean, error) {
	b := &Build{}
	if err := g.RunStages(ctx, b, g.Stages()); err != nil {
		return nil, err
	}
	return &b.Clean, nil
}

// RunStages folds stages over b, stopping at the first error.
func (g *Generator) RunStages(ctx context.Context, b *Build, stages []Stage) error {
	for _, s := range stages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		start := time.Now()
		if err := s.Run(ctx, b); err != nil {
			return fmt.Errorf("stage %s: %w", s.Name, err)
		}
		g.log.Info("Stage complete",
			zap.String("stage", s.Name),
			zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// Build is the arena the stages read and extend.
type Build struct {
	animals []animalRow
	chips   []chipRow // chips[i] belongs to animals[i]
	appts   []apptRow
	// byAnimal lists each animal's appointments in chronological order.
	byAnimal [][]int
	// animalOrder maps final animal order to arena index.
	animalOrder []int

	// apptIndex maps a final appointment id to its arena index.
	apptIndex map[int]int
	months    []time.Time
	demand    map[string][]int // category -> hours per month

	ownerProfiles []model.Owner
	links         []link

	Clean model.Clean
}

type animalRow struct {
	profile refdata.AnimalProfile
	dob     time.Time
	hash    string
	id      int
}

type chipRow struct {
	codeID   int
	number   int64
	implant  time.Time
	location string
	id       int
}

type apptRow struct {
	animal int
	reason string
	date   time.Time
	id     int
	owner  int
}

// link ties an animal (by arena index) to an owner (by profile index).
type link struct {
	animal int
	owner  int
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
