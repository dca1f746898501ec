package model

import "time"

type MicrochipCodeAU struct {
	MicrochipCode
	CodeV1 int
}

type ServiceAU struct {
	Service
	ServiceV1 int
}

// AnimalAU is one registration of an animal; the same physical animal may
// appear once per promoted appointment.
type AnimalAU struct {
	ID          int
	Species     string
	Breed       string
	Name        string
	MicrochipID int
	Gender      string
	DOB         time.Time
	Weight      float64
	HashID      string
	OwnerID     int
	AnimalV1    int

	// AppointmentV1 is the clean appointment the row was promoted from.
	AppointmentV1 int
}

type MicrochipAU struct {
	ID          int
	CodeID      int
	Number      int64
	ImplantDate time.Time
	Location    string
	OwnerID     int
	MicrochipV1 int
	CodeV1      int
}

type OwnerAU struct {
	ID          int
	FirstName   string
	LastName    string
	Address     string
	City        string
	PostalCode  string
	PhoneNumber string
	AnimalID    int
	OwnerV1     int
}

type AppointmentAU struct {
	ID            int
	AnimalID      int
	Reason        string
	Date          time.Time
	ServiceID     int
	OwnerID       int
	AppointmentV1 int
	AnimalV1      int
	OwnerV1       int
}

type SlotAU struct {
	ID       int
	DoctorID int
	Date     time.Time
	Hour     int
	Type     string
	DoctorV1 int
}

// DoctorAU is a doctor denormalized to one row per contract month.
type DoctorAU struct {
	ID              int
	FirstName       string
	LastName        string
	Specialty       string
	LicenseNumber   string
	StartDate       time.Time
	EndDate         *time.Time
	PeriodStartDate time.Time
	PeriodEndDate   time.Time
	MaxMonthlyHours int
	DoctorV1        int
}

// AU is the artificial-unicity snapshot.
type AU struct {
	MicrochipCodes   []MicrochipCodeAU
	Services         []ServiceAU
	Animals          []AnimalAU
	Microchips       []MicrochipAU
	Owners           []OwnerAU
	Appointments     []AppointmentAU
	AppointmentSlots []AppointmentSlot
	Slots            []SlotAU
	Doctors          []DoctorAU
}
