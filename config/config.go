// Package config loads and validates the vetsynth run configuration.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/TFMV/vetsynth/pkg/calendar"
)

// --- Configuration Structs ---

type CalendarConfig struct {
	CountryCode   string   `mapstructure:"country_code"`
	WeeklyDaysOff []string `mapstructure:"weekly_days_off"`
	WeekStartDay  string   `mapstructure:"week_start_day"`
	// ExtraHolidays are YYYY-MM-DD dates added to the country's holidays.
	ExtraHolidays []string `mapstructure:"extra_holidays"`
}

type StaffingConfig struct {
	YearlyTurnover      float64 `mapstructure:"yearly_turnover"`
	WeeklyWorkingDays   int     `mapstructure:"weekly_working_days"`
	DailyMaxWorkedHours int     `mapstructure:"daily_max_worked_hours"`
	MaxMonthlyHours     int     `mapstructure:"max_monthly_hours"`
	CapacityTiers       []int   `mapstructure:"capacity_tiers"`
	HolidayWeeks        int     `mapstructure:"holiday_weeks"`
	RegularDuration     int     `mapstructure:"regular_duration"`
	SurgeryDuration     int     `mapstructure:"surgery_duration"`
	MinContractDays     int     `mapstructure:"min_contract_days"`
	MaxOverlapDays      int     `mapstructure:"max_overlap_days"`
	BaselinePercentile  float64 `mapstructure:"baseline_percentile"`
}

type SlotConfig struct {
	StartHour    int `mapstructure:"start_hour"`
	EndHour      int `mapstructure:"end_hour"`
	MaxDeferrals int `mapstructure:"max_deferrals"`
}

type OwnerConfig struct {
	MinNbAppt                 int             `mapstructure:"min_nb_appt"`
	NbCities                  int             `mapstructure:"nb_cities"`
	RatioCityStreets          int             `mapstructure:"ratio_city_streets"`
	PropHouseholdSeveralOwner float64         `mapstructure:"prop_household_several_owner"`
	HouseholdDistribution     map[int]float64 `mapstructure:"household_distribution"`
}

type GenerationConfig struct {
	Seed                     uint64             `mapstructure:"seed"`
	NbAnimals                int                `mapstructure:"nb_animals"`
	ClinicStartYear          int                `mapstructure:"clinic_start_year"`
	LastOperationDate        string             `mapstructure:"last_operation_date"`
	PropBornBeforeOpening    float64            `mapstructure:"prop_born_before_opening"`
	MaxAnimalAgeAtOpening    int                `mapstructure:"max_animal_age_at_opening"`
	DobMicrochipGapDays      int                `mapstructure:"dob_microchip_gap_days"`
	LifeExpectancyYears      int                `mapstructure:"life_expectancy_years"`
	PercFollowUp             float64            `mapstructure:"perc_followup"`
	ImplantLocations         map[string]float64 `mapstructure:"implant_locations"`
	FirstReasonBeforeOpening map[string]float64 `mapstructure:"first_reason_before_opening"`
	FirstReasonAfterOpening  map[string]float64 `mapstructure:"first_reason_after_opening"`
	NonFollowUpReasons       map[string]float64 `mapstructure:"non_followup_reasons"`
	Calendar                 CalendarConfig     `mapstructure:"calendar"`
	Staffing                 StaffingConfig     `mapstructure:"staffing"`
	Slots                    SlotConfig         `mapstructure:"slots"`
	Owners                   OwnerConfig        `mapstructure:"owners"`
	IDOffsets                map[string]int     `mapstructure:"id_offsets"`
	ReferenceDir             string             `mapstructure:"reference_dir"`
}

type AUConfig struct {
	// Rates per relation: microchip_code, service and animal.
	Rates     map[string]float64 `mapstructure:"rates"`
	IDOffsets map[string]int     `mapstructure:"id_offsets"`
}

// DirtyStep is one corruption applied to a fraction of a column.
type DirtyStep struct {
	Relation string            `mapstructure:"relation"`
	Column   string            `mapstructure:"column"`
	Op       string            `mapstructure:"op"`
	Fraction float64           `mapstructure:"fraction"`
	Params   map[string]string `mapstructure:"params"`
}

type DirtyConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Steps   []DirtyStep `mapstructure:"steps"`
}

type OutputConfig struct {
	Dir     string   `mapstructure:"dir"`
	Formats []string `mapstructure:"formats"`
	Workers int      `mapstructure:"workers"`
	Report  bool     `mapstructure:"report"`
}

type DatabaseConfig struct {
	Driver     string            `mapstructure:"driver"`
	DSN        string            `mapstructure:"dsn"`
	DriverPath string            `mapstructure:"driver_path"`
	Schemas    map[string]string `mapstructure:"schemas"`
}

// S3Config selects the publish bucket. Without static keys the default AWS
// credential chain applies.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Prefix          string `mapstructure:"prefix"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type PublishConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	RunDir  string `mapstructure:"run_dir"`
	Prefork bool   `mapstructure:"prefork"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	Generation GenerationConfig `mapstructure:"generation"`
	AU         AUConfig         `mapstructure:"au"`
	Dirty      DirtyConfig      `mapstructure:"dirty"`
	Output     OutputConfig     `mapstructure:"output"`
	Load       DatabaseConfig   `mapstructure:"load"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

// EnvPrefix prefixes environment overrides, e.g. VETSYNTH_LOAD_DSN.
const EnvPrefix = "VETSYNTH"

func defaultOffsets() map[string]int {
	return map[string]int{
		"microchip_code":   3,
		"appointment":      23,
		"animal":           47,
		"microchip":        34,
		"appointment_slot": 17,
		"owner":            85,
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Generation: GenerationConfig{
			Seed:                  56,
			NbAnimals:             250000,
			ClinicStartYear:       2015,
			PropBornBeforeOpening: 0.3,
			MaxAnimalAgeAtOpening: 10,
			DobMicrochipGapDays:   100,
			LifeExpectancyYears:   15,
			PercFollowUp:          0.5,
			ImplantLocations: map[string]float64{
				"between_shoulders":  0.9,
				"midline_cervicals":  0.01,
				"left_lateral_neck":  0.08,
				"right_lateral_neck": 0.01,
			},
			FirstReasonBeforeOpening: map[string]float64{
				"annual_visit": 0.6, "sick_pet": 0.2, "injured_pet": 0.2,
			},
			FirstReasonAfterOpening: map[string]float64{
				"initial_visit": 0.4, "annual_visit": 0.15, "sick_pet": 0.2, "injured_pet": 0.15, "surgery": 0.1,
			},
			NonFollowUpReasons: map[string]float64{
				"annual_visit": 0.5, "sick_pet": 0.2, "injured_pet": 0.2, "surgery": 0.1,
			},
			Calendar: CalendarConfig{
				CountryCode:   "JO",
				WeeklyDaysOff: []string{"friday"},
				WeekStartDay:  "saturday",
			},
			Staffing: StaffingConfig{
				YearlyTurnover:      0.125,
				WeeklyWorkingDays:   6,
				DailyMaxWorkedHours: 8,
				MaxMonthlyHours:     200,
				CapacityTiers:       []int{200, 175, 150, 125, 100},
				HolidayWeeks:        5,
				RegularDuration:     1,
				SurgeryDuration:     3,
				MinContractDays:     365,
				MaxOverlapDays:      180,
				BaselinePercentile:  95,
			},
			Slots: SlotConfig{StartHour: 8, EndHour: 20, MaxDeferrals: 8},
			Owners: OwnerConfig{
				MinNbAppt:                 3,
				NbCities:                  10,
				RatioCityStreets:          25,
				PropHouseholdSeveralOwner: 0.3,
				HouseholdDistribution:     map[int]float64{1: 0.6, 2: 0.25, 3: 0.1, 4: 0.05},
			},
			IDOffsets: defaultOffsets(),
		},
		AU: AUConfig{
			Rates:     map[string]float64{"microchip_code": 0.5, "service": 0.5, "animal": 0.75},
			IDOffsets: defaultOffsets(),
		},
		Dirty:  DirtyConfig{Enabled: true},
		Output: OutputConfig{Dir: "working_data", Formats: []string{"csv"}, Workers: 4, Report: true},
		Load: DatabaseConfig{
			Driver: "postgres",
			Schemas: map[string]string{
				"rel":   "clean_db",
				"au":    "polluted_au_db",
				"dirty": "polluted_dirty_db",
			},
		},
		Server: ServerConfig{Port: "3000", RunDir: "working_data"},
		Log:    LogConfig{Level: "info", File: "vetsynth.log"},
	}
}

// --- Load Configuration ---

// LoadConfig reads configPath (YAML) over the defaults. A .env file in the
// working directory is loaded first, and VETSYNTH_* variables override
// scalar keys. An empty configPath yields the defaults plus overrides.
func LoadConfig(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	cfg := Default()
	// Maps given in the file replace the defaults instead of merging into them.
	zeroMaps := func(dc *mapstructure.DecoderConfig) { dc.ZeroFields = true }
	if err := v.Unmarshal(cfg, zeroMaps); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// envKeys are the keys that may be set from the environment alone.
var envKeys = []string{
	"generation.seed",
	"generation.nb_animals",
	"generation.last_operation_date",
	"generation.reference_dir",
	"output.dir",
	"load.driver",
	"load.dsn",
	"load.driver_path",
	"publish.s3.bucket",
	"publish.s3.region",
	"publish.s3.endpoint",
	"publish.s3.prefix",
	"publish.s3.access_key_id",
	"publish.s3.secret_access_key",
	"server.port",
	"server.run_dir",
	"log.level",
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// --- Derived values ---

// LastDate parses last_operation_date, defaulting to today.
func (g *GenerationConfig) LastDate() (time.Time, error) {
	if g.LastOperationDate == "" {
		return calendar.Truncate(time.Now().UTC()), nil
	}
	d, err := time.Parse(time.DateOnly, g.LastOperationDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid last_operation_date: %w", err)
	}
	return d, nil
}

// Offset returns the first surrogate key of relation, defaulting to 1.
func Offset(offsets map[string]int, relation string) int {
	if v, ok := offsets[relation]; ok {
		return v
	}
	return 1
}

// Calendar builds the working calendar described by c.
func (c *CalendarConfig) Calendar() (*calendar.Calendar, error) {
	daysOff := make([]time.Weekday, 0, len(c.WeeklyDaysOff))
	for _, name := range c.WeeklyDaysOff {
		d, err := calendar.ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		daysOff = append(daysOff, d)
	}
	extra := make([]time.Time, 0, len(c.ExtraHolidays))
	for _, s := range c.ExtraHolidays {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, fmt.Errorf("invalid extra holiday %q: %w", s, err)
		}
		extra = append(extra, d)
	}
	return calendar.New(c.CountryCode, daysOff, extra)
}

// WeekStart parses week_start_day.
func (c *CalendarConfig) WeekStart() (time.Weekday, error) {
	return calendar.ParseWeekday(c.WeekStartDay)
}

// --- Validation Functions ---

// validate is a helper function to reduce repetition.
func validate(condition bool, format string, a ...any) error {
	if !condition {
		return fmt.Errorf(format, a...)
	}
	return nil
}

func validateDistribution(name string, dist map[string]float64) error {
	if err := validate(len(dist) > 0, "%s must not be empty", name); err != nil {
		return err
	}
	sum := 0.0
	for k, p := range dist {
		if err := validate(p >= 0, "%s: negative probability for %q", name, k); err != nil {
			return err
		}
		sum += p
	}
	return validate(math.Abs(sum-1) < 1e-6, "%s must sum to 1, got %.4f", name, sum)
}

func validateOffsets(offsets map[string]int) error {
	for rel, v := range offsets {
		if err := validate(v > 0, "id offset for %s must be positive, got %d", rel, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation validation failed: %w", err)
	}
	if err := c.AU.Validate(); err != nil {
		return fmt.Errorf("au validation failed: %w", err)
	}
	for i, step := range c.Dirty.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("dirty step %d validation failed: %w", i, err)
		}
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}
	return nil
}

func (g *GenerationConfig) Validate() error {
	if _, err := g.LastDate(); err != nil {
		return err
	}
	for name, dist := range map[string]map[string]float64{
		"implant_locations":           g.ImplantLocations,
		"first_reason_before_opening": g.FirstReasonBeforeOpening,
		"first_reason_after_opening":  g.FirstReasonAfterOpening,
		"non_followup_reasons":        g.NonFollowUpReasons,
	} {
		if err := validateDistribution(name, dist); err != nil {
			return err
		}
	}
	if err := validate(g.PercFollowUp >= 0 && g.PercFollowUp <= 1, "perc_followup must be between 0 and 1"); err != nil {
		return err
	}
	if err := validate(g.LifeExpectancyYears > 0, "life_expectancy_years must be positive"); err != nil {
		return err
	}
	if err := validate(g.DobMicrochipGapDays > 0, "dob_microchip_gap_days must be positive"); err != nil {
		return err
	}
	if _, err := g.Calendar.Calendar(); err != nil {
		return fmt.Errorf("calendar configuration error: %w", err)
	}
	if _, err := g.Calendar.WeekStart(); err != nil {
		return fmt.Errorf("calendar configuration error: %w", err)
	}
	if err := g.Staffing.Validate(); err != nil {
		return fmt.Errorf("staffing configuration error: %w", err)
	}
	if err := g.Slots.Validate(); err != nil {
		return fmt.Errorf("slot configuration error: %w", err)
	}
	if err := g.Owners.Validate(); err != nil {
		return fmt.Errorf("owner configuration error: %w", err)
	}
	return validateOffsets(g.IDOffsets)
}

func (s *StaffingConfig) Validate() error {
	if err := validate(s.WeeklyWorkingDays > 0 && s.WeeklyWorkingDays <= 7, "weekly_working_days must be in 1..7"); err != nil {
		return err
	}
	if err := validate(s.DailyMaxWorkedHours > 0, "daily_max_worked_hours must be positive"); err != nil {
		return err
	}
	if err := validate(s.HolidayWeeks >= 0 && s.HolidayWeeks < 52, "holiday_weeks must be in 0..51"); err != nil {
		return err
	}
	if err := validate(len(s.CapacityTiers) > 0, "capacity_tiers must not be empty"); err != nil {
		return err
	}
	if err := validate(slices.Max(s.CapacityTiers) <= s.MaxMonthlyHours, "capacity tiers cannot exceed max_monthly_hours"); err != nil {
		return err
	}
	if err := validate(s.RegularDuration > 0 && s.SurgeryDuration > 0, "durations must be positive"); err != nil {
		return err
	}
	return validate(s.BaselinePercentile > 0 && s.BaselinePercentile <= 100, "baseline_percentile must be in (0, 100]")
}

func (s *SlotConfig) Validate() error {
	if err := validate(s.StartHour >= 0 && s.StartHour < s.EndHour && s.EndHour <= 24, "slot hours must satisfy 0 <= start < end <= 24"); err != nil {
		return err
	}
	return validate(s.MaxDeferrals >= 0, "max_deferrals cannot be negative")
}

func (o *OwnerConfig) Validate() error {
	if err := validate(o.NbCities > 0 && o.RatioCityStreets > 0, "nb_cities and ratio_city_streets must be positive"); err != nil {
		return err
	}
	if err := validate(o.PropHouseholdSeveralOwner >= 0, "prop_household_several_owner cannot be negative"); err != nil {
		return err
	}
	dist := map[string]float64{}
	for k, p := range o.HouseholdDistribution {
		if err := validate(k > 0, "household size must be positive, got %d", k); err != nil {
			return err
		}
		dist[fmt.Sprint(k)] = p
	}
	return validateDistribution("household_distribution", dist)
}

func (a *AUConfig) Validate() error {
	for rel, r := range a.Rates {
		if err := validate(r >= 0 && r <= 1, "rate for %s must be between 0 and 1", rel); err != nil {
			return err
		}
	}
	return validateOffsets(a.IDOffsets)
}

func (d *DirtyStep) Validate() error {
	if err := validate(d.Relation != "" && d.Column != "", "relation and column are required"); err != nil {
		return err
	}
	if err := validate(d.Op != "", "op is required"); err != nil {
		return err
	}
	if d.Op == "replace_from_position" {
		return validate(len(d.Params) > 0, "replace_from_position needs old=new params")
	}
	return validate(d.Fraction > 0 && d.Fraction <= 1, "fraction must be in (0, 1]")
}

var supportedFormats = []string{"csv", "parquet", "arrow", "json"}

func (o *OutputConfig) Validate() error {
	if err := validate(o.Dir != "", "output dir is required"); err != nil {
		return err
	}
	for _, f := range o.Formats {
		if err := validate(slices.Contains(supportedFormats, f), "unsupported output format %q", f); err != nil {
			return err
		}
	}
	return validate(o.Workers > 0, "workers must be positive")
}

// Validate checks the settings a loader needs.
// supportedDrivers are the database loaders. adbc without driver_path uses
// the platform default PostgreSQL driver library.
var supportedDrivers = []string{"postgres", "sqlite", "adbc"}

func (d *DatabaseConfig) Validate() error {
	if err := validate(d.Driver != "", "load driver is required"); err != nil {
		return err
	}
	if err := validate(d.DSN != "", "load dsn is required"); err != nil {
		return err
	}
	return validate(slices.Contains(supportedDrivers, d.Driver), "unsupported load driver %q", d.Driver)
}

// Enabled reports whether a bucket is configured.
func (s *S3Config) Enabled() bool {
	return s.Bucket != ""
}
