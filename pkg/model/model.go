// Package model holds the typed rows of every relation in the clean and
// artificial-unicity snapshots.
package model

import "time"

// Appointment reasons.
const (
	ReasonInitialVisit    = "initial_visit"
	ReasonAnnualVisit     = "annual_visit"
	ReasonSickPet         = "sick_pet"
	ReasonInjuredPet      = "injured_pet"
	ReasonSurgery         = "surgery"
	ReasonFollowUp        = "follow_up"
	ReasonFollowUpSurgery = "follow_up_surgery"
)

// Doctor specialties.
const (
	SpecialtySurgeon    = "surgeon"
	SpecialtyGeneralist = "generalist"
)

// Slot types.
const (
	SlotRegular  = "regular"
	SlotOvertime = "overtime"
)

// Gender codes of the reference animal list.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

type MicrochipCode struct {
	ID         int
	Code       string
	Brand      string
	Provider   string
	Country    string
	MarketYear *int
}

type Microchip struct {
	ID          int
	CodeID      int
	Number      int64
	ImplantDate time.Time
	Location    string
}

type Animal struct {
	ID          int
	Species     string
	Breed       string
	Name        string
	MicrochipID int
	Gender      string
	DOB         time.Time
	HashID      string
}

type AnimalWeight struct {
	ID            int
	AnimalID      int
	AppointmentID int
	Weight        float64
}

type Owner struct {
	ID          int
	FirstName   string
	LastName    string
	Address     string
	City        string
	PostalCode  string
	PhoneNumber string
}

type AnimalOwner struct {
	ID          int
	MicrochipID int
	OwnerID     int
}

type Doctor struct {
	ID              int
	FirstName       string
	LastName        string
	Specialty       string
	LicenseNumber   string
	StartDate       time.Time
	EndDate         *time.Time
	PeriodStartDate *time.Time
	PeriodEndDate   *time.Time
	MaxMonthlyHours *int
}

// DoctorHistorization is one month of a doctor's contract.
type DoctorHistorization struct {
	ID              int
	DoctorID        int
	FirstName       string
	LastName        string
	Specialty       string
	LicenseNumber   string
	PeriodStartDate time.Time
	PeriodEndDate   time.Time
	MaxMonthlyHours int
}

type Service struct {
	ID   int
	Name string
}

type Appointment struct {
	ID       int
	AnimalID int
	Reason   string
	Date     time.Time
	OwnerID  int
}

type AppointmentService struct {
	ID            int
	AppointmentID int
	ServiceID     int
}

type Slot struct {
	ID       int
	DoctorID int
	Date     time.Time
	Hour     int
	Type     string
	Week     int
}

// Time renders the slot hour as HH:00:00.
func (s Slot) Time() string {
	return time.Date(0, 1, 1, s.Hour, 0, 0, 0, time.UTC).Format("15:04:05")
}

type AppointmentSlot struct {
	ID            int
	AppointmentID int
	SlotID        int
}

// UnmetHours records demand no doctor could absorb in a month.
type UnmetHours struct {
	Month    time.Time `json:"month"`
	Category string    `json:"category"`
	Hours    int       `json:"hours"`
}

// Clean is the generated ground-truth snapshot plus its diagnostics.
type Clean struct {
	MicrochipCodes      []MicrochipCode
	Microchips          []Microchip
	Animals             []Animal
	AnimalWeights       []AnimalWeight
	Owners              []Owner
	AnimalOwners        []AnimalOwner
	Doctors             []Doctor
	DoctorHistory       []DoctorHistorization
	Services            []Service
	Appointments        []Appointment
	AppointmentServices []AppointmentService
	Slots               []Slot
	AppointmentSlots    []AppointmentSlot

	// Unmet lists monthly demand above staffed capacity.
	Unmet []UnmetHours
	// Unscheduled lists appointment ids that found no slot.
	Unscheduled []int
}
