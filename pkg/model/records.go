package model

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/tables"
)

// Relation names, shared by exports, loaders and integrity checks.
const (
	RelMicrochipCode       = "microchip_code"
	RelMicrochip           = "microchip"
	RelAnimal              = "animal"
	RelAnimalWeight        = "animal_weight"
	RelOwner               = "owner"
	RelAnimalOwner         = "animal_owner"
	RelDoctor              = "doctor"
	RelDoctorHistorization = "doctor_historization"
	RelService             = "service"
	RelAppointment         = "appointment"
	RelAppointmentService  = "appointment_service"
	RelSlot                = "slot"
	RelAppointmentSlot     = "appointment_slot"
)

var microchipCodeCols = []tables.Column[MicrochipCode]{
	tables.Int("id_code", func(r MicrochipCode) int { return r.ID }),
	tables.String("code", func(r MicrochipCode) string { return r.Code }),
	tables.String("brand", func(r MicrochipCode) string { return r.Brand }),
	tables.String("provider", func(r MicrochipCode) string { return r.Provider }),
	tables.String("country", func(r MicrochipCode) string { return r.Country }),
}

var microchipCols = []tables.Column[Microchip]{
	tables.Int("id_microchip", func(r Microchip) int { return r.ID }),
	tables.Int("id_code", func(r Microchip) int { return r.CodeID }),
	tables.Int("number", func(r Microchip) int { return int(r.Number) }),
	tables.Date("implant_date", func(r Microchip) time.Time { return r.ImplantDate }),
	tables.String("location", func(r Microchip) string { return r.Location }),
}

var animalCols = []tables.Column[Animal]{
	tables.Int("id_animal", func(r Animal) int { return r.ID }),
	tables.String("species", func(r Animal) string { return r.Species }),
	tables.String("breed", func(r Animal) string { return r.Breed }),
	tables.String("name", func(r Animal) string { return r.Name }),
	tables.Int("id_microchip", func(r Animal) int { return r.MicrochipID }),
	tables.String("gender", func(r Animal) string { return r.Gender }),
	tables.Date("dob", func(r Animal) time.Time { return r.DOB }),
	tables.String("hash_id", func(r Animal) string { return r.HashID }),
}

var animalWeightCols = []tables.Column[AnimalWeight]{
	tables.Int("id_weight", func(r AnimalWeight) int { return r.ID }),
	tables.Int("id_animal", func(r AnimalWeight) int { return r.AnimalID }),
	tables.Int("id_appointment", func(r AnimalWeight) int { return r.AppointmentID }),
	tables.Float("weight", func(r AnimalWeight) float64 { return r.Weight }),
}

var ownerCols = []tables.Column[Owner]{
	tables.Int("id_owner", func(r Owner) int { return r.ID }),
	tables.String("first_name", func(r Owner) string { return r.FirstName }),
	tables.String("last_name", func(r Owner) string { return r.LastName }),
	tables.String("address", func(r Owner) string { return r.Address }),
	tables.String("city", func(r Owner) string { return r.City }),
	tables.String("postal_code", func(r Owner) string { return r.PostalCode }),
	tables.String("phone_number", func(r Owner) string { return r.PhoneNumber }),
}

var animalOwnerCols = []tables.Column[AnimalOwner]{
	tables.Int("id_animal_owner", func(r AnimalOwner) int { return r.ID }),
	tables.Int("id_microchip", func(r AnimalOwner) int { return r.MicrochipID }),
	tables.Int("id_owner", func(r AnimalOwner) int { return r.OwnerID }),
}

var doctorCols = []tables.Column[Doctor]{
	tables.Int("id_doctor", func(r Doctor) int { return r.ID }),
	tables.String("first_name", func(r Doctor) string { return r.FirstName }),
	tables.String("last_name", func(r Doctor) string { return r.LastName }),
	tables.String("specialty", func(r Doctor) string { return r.Specialty }),
	tables.String("license_number", func(r Doctor) string { return r.LicenseNumber }),
	tables.Date("start_date", func(r Doctor) time.Time { return r.StartDate }),
	tables.OptDate("end_date", func(r Doctor) *time.Time { return r.EndDate }),
	tables.OptDate("period_start_date", func(r Doctor) *time.Time { return r.PeriodStartDate }),
	tables.OptDate("period_end_date", func(r Doctor) *time.Time { return r.PeriodEndDate }),
	tables.OptInt("max_monthly_hours", func(r Doctor) *int { return r.MaxMonthlyHours }),
}

var doctorHistoCols = []tables.Column[DoctorHistorization]{
	tables.Int("id_doctor_histo", func(r DoctorHistorization) int { return r.ID }),
	tables.Int("id_doctor", func(r DoctorHistorization) int { return r.DoctorID }),
	tables.String("first_name", func(r DoctorHistorization) string { return r.FirstName }),
	tables.String("last_name", func(r DoctorHistorization) string { return r.LastName }),
	tables.String("specialty", func(r DoctorHistorization) string { return r.Specialty }),
	tables.String("license_number", func(r DoctorHistorization) string { return r.LicenseNumber }),
	tables.Date("period_start_date", func(r DoctorHistorization) time.Time { return r.PeriodStartDate }),
	tables.Date("period_end_date", func(r DoctorHistorization) time.Time { return r.PeriodEndDate }),
	tables.Int("max_monthly_hours", func(r DoctorHistorization) int { return r.MaxMonthlyHours }),
}

var serviceCols = []tables.Column[Service]{
	tables.Int("id_service", func(r Service) int { return r.ID }),
	tables.String("service_name", func(r Service) string { return r.Name }),
}

var appointmentCols = []tables.Column[Appointment]{
	tables.Int("id_appointment", func(r Appointment) int { return r.ID }),
	tables.Int("id_animal", func(r Appointment) int { return r.AnimalID }),
	tables.String("appt_reason", func(r Appointment) string { return r.Reason }),
	tables.Date("appt_date", func(r Appointment) time.Time { return r.Date }),
	tables.Int("id_owner", func(r Appointment) int { return r.OwnerID }),
}

var appointmentServiceCols = []tables.Column[AppointmentService]{
	tables.Int("id_appointment_service", func(r AppointmentService) int { return r.ID }),
	tables.Int("id_appointment", func(r AppointmentService) int { return r.AppointmentID }),
	tables.Int("id_service", func(r AppointmentService) int { return r.ServiceID }),
}

var slotCols = []tables.Column[Slot]{
	tables.Int("id_slot", func(r Slot) int { return r.ID }),
	tables.Int("id_doctor", func(r Slot) int { return r.DoctorID }),
	tables.Date("date", func(r Slot) time.Time { return r.Date }),
	tables.String("time", func(r Slot) string { return r.Time() }),
	tables.String("type", func(r Slot) string { return r.Type }),
}

var appointmentSlotCols = []tables.Column[AppointmentSlot]{
	tables.Int("id_appointment_slot", func(r AppointmentSlot) int { return r.ID }),
	tables.Int("id_appointment", func(r AppointmentSlot) int { return r.AppointmentID }),
	tables.Int("id_slot", func(r AppointmentSlot) int { return r.SlotID }),
}

func relation[T any](mem memory.Allocator, stage core.Stage, name string, cols []tables.Column[T], rows []T) core.Relation {
	return core.Relation{Name: name, Stage: stage, Record: tables.Record(mem, cols, rows)}
}

// Relations converts the clean snapshot to arrow relations in load order.
func (c *Clean) Relations(mem memory.Allocator) []core.Relation {
	s := core.StageClean
	return []core.Relation{
		relation(mem, s, RelMicrochipCode, microchipCodeCols, c.MicrochipCodes),
		relation(mem, s, RelMicrochip, microchipCols, c.Microchips),
		relation(mem, s, RelAnimal, animalCols, c.Animals),
		relation(mem, s, RelAnimalWeight, animalWeightCols, c.AnimalWeights),
		relation(mem, s, RelOwner, ownerCols, c.Owners),
		relation(mem, s, RelAnimalOwner, animalOwnerCols, c.AnimalOwners),
		relation(mem, s, RelDoctor, doctorCols, c.Doctors),
		relation(mem, s, RelDoctorHistorization, doctorHistoCols, c.DoctorHistory),
		relation(mem, s, RelService, serviceCols, c.Services),
		relation(mem, s, RelAppointment, appointmentCols, c.Appointments),
		relation(mem, s, RelAppointmentService, appointmentServiceCols, c.AppointmentServices),
		relation(mem, s, RelSlot, slotCols, c.Slots),
		relation(mem, s, RelAppointmentSlot, appointmentSlotCols, c.AppointmentSlots),
	}
}

var microchipCodeAUCols = append(
	tables.Adapt(microchipCodeCols, func(r MicrochipCodeAU) MicrochipCode { return r.MicrochipCode }),
	tables.Int("id_code_v1", func(r MicrochipCodeAU) int { return r.CodeV1 }),
)

var serviceAUCols = append(
	tables.Adapt(serviceCols, func(r ServiceAU) Service { return r.Service }),
	tables.Int("id_service_v1", func(r ServiceAU) int { return r.ServiceV1 }),
)

var animalAUCols = []tables.Column[AnimalAU]{
	tables.Int("id_animal", func(r AnimalAU) int { return r.ID }),
	tables.String("species", func(r AnimalAU) string { return r.Species }),
	tables.String("breed", func(r AnimalAU) string { return r.Breed }),
	tables.String("name", func(r AnimalAU) string { return r.Name }),
	tables.Int("id_microchip", func(r AnimalAU) int { return r.MicrochipID }),
	tables.String("gender", func(r AnimalAU) string { return r.Gender }),
	tables.Date("dob", func(r AnimalAU) time.Time { return r.DOB }),
	tables.Float("weight", func(r AnimalAU) float64 { return r.Weight }),
	tables.String("hash_id", func(r AnimalAU) string { return r.HashID }),
	tables.Int("id_owner", func(r AnimalAU) int { return r.OwnerID }),
	tables.Int("id_animal_v1", func(r AnimalAU) int { return r.AnimalV1 }),
}

var microchipAUCols = []tables.Column[MicrochipAU]{
	tables.Int("id_microchip", func(r MicrochipAU) int { return r.ID }),
	tables.Int("id_code", func(r MicrochipAU) int { return r.CodeID }),
	tables.Int("number", func(r MicrochipAU) int { return int(r.Number) }),
	tables.Date("implant_date", func(r MicrochipAU) time.Time { return r.ImplantDate }),
	tables.String("location", func(r MicrochipAU) string { return r.Location }),
	tables.Int("id_owner", func(r MicrochipAU) int { return r.OwnerID }),
	tables.Int("id_microchip_v1", func(r MicrochipAU) int { return r.MicrochipV1 }),
	tables.Int("id_code_v1", func(r MicrochipAU) int { return r.CodeV1 }),
}

var ownerAUCols = []tables.Column[OwnerAU]{
	tables.Int("id_owner", func(r OwnerAU) int { return r.ID }),
	tables.String("first_name", func(r OwnerAU) string { return r.FirstName }),
	tables.String("last_name", func(r OwnerAU) string { return r.LastName }),
	tables.String("address", func(r OwnerAU) string { return r.Address }),
	tables.String("city", func(r OwnerAU) string { return r.City }),
	tables.String("postal_code", func(r OwnerAU) string { return r.PostalCode }),
	tables.String("phone_number", func(r OwnerAU) string { return r.PhoneNumber }),
	tables.Int("id_animal", func(r OwnerAU) int { return r.AnimalID }),
	tables.Int("id_owner_v1", func(r OwnerAU) int { return r.OwnerV1 }),
}

var appointmentAUCols = []tables.Column[AppointmentAU]{
	tables.Int("id_appointment", func(r AppointmentAU) int { return r.ID }),
	tables.Int("id_animal", func(r AppointmentAU) int { return r.AnimalID }),
	tables.String("appt_reason", func(r AppointmentAU) string { return r.Reason }),
	tables.Date("appt_date", func(r AppointmentAU) time.Time { return r.Date }),
	tables.Int("id_service", func(r AppointmentAU) int { return r.ServiceID }),
	tables.Int("id_owner", func(r AppointmentAU) int { return r.OwnerID }),
	tables.Int("id_appointment_v1", func(r AppointmentAU) int { return r.AppointmentV1 }),
	tables.Int("id_animal_v1", func(r AppointmentAU) int { return r.AnimalV1 }),
	tables.Int("id_owner_v1", func(r AppointmentAU) int { return r.OwnerV1 }),
}

var slotAUCols = []tables.Column[SlotAU]{
	tables.Int("id_slot", func(r SlotAU) int { return r.ID }),
	tables.Int("id_doctor", func(r SlotAU) int { return r.DoctorID }),
	tables.Date("date", func(r SlotAU) time.Time { return r.Date }),
	tables.String("time", func(r SlotAU) string { return Slot{Hour: r.Hour}.Time() }),
	tables.String("type", func(r SlotAU) string { return r.Type }),
	tables.Int("id_doctor_v1", func(r SlotAU) int { return r.DoctorV1 }),
}

var doctorAUCols = []tables.Column[DoctorAU]{
	tables.Int("id_doctor", func(r DoctorAU) int { return r.ID }),
	tables.String("first_name", func(r DoctorAU) string { return r.FirstName }),
	tables.String("last_name", func(r DoctorAU) string { return r.LastName }),
	tables.String("specialty", func(r DoctorAU) string { return r.Specialty }),
	tables.String("license_number", func(r DoctorAU) string { return r.LicenseNumber }),
	tables.Date("start_date", func(r DoctorAU) time.Time { return r.StartDate }),
	tables.OptDate("end_date", func(r DoctorAU) *time.Time { return r.EndDate }),
	tables.Date("period_start_date", func(r DoctorAU) time.Time { return r.PeriodStartDate }),
	tables.Date("period_end_date", func(r DoctorAU) time.Time { return r.PeriodEndDate }),
	tables.Int("max_monthly_hours", func(r DoctorAU) int { return r.MaxMonthlyHours }),
	tables.Int("id_doctor_v1", func(r DoctorAU) int { return r.DoctorV1 }),
}

// Relations converts the AU snapshot to arrow relations in load order.
func (a *AU) Relations(mem memory.Allocator) []core.Relation {
	s := core.StageAU
	return []core.Relation{
		relation(mem, s, RelMicrochipCode, microchipCodeAUCols, a.MicrochipCodes),
		relation(mem, s, RelMicrochip, microchipAUCols, a.Microchips),
		relation(mem, s, RelAnimal, animalAUCols, a.Animals),
		relation(mem, s, RelOwner, ownerAUCols, a.Owners),
		relation(mem, s, RelDoctor, doctorAUCols, a.Doctors),
		relation(mem, s, RelService, serviceAUCols, a.Services),
		relation(mem, s, RelAppointment, appointmentAUCols, a.Appointments),
		relation(mem, s, RelSlot, slotAUCols, a.Slots),
		relation(mem, s, RelAppointmentSlot, appointmentSlotCols, a.AppointmentSlots),
	}
}

// Schemas returns the expected schema of every relation of stage. Dirty
// relations carry the artificial-unicity columns as nullable text.
func Schemas(stage core.Stage) map[string]*arrow.Schema {
	switch stage {
	case core.StageClean:
		return map[string]*arrow.Schema{
			RelMicrochipCode:       tables.Schema(microchipCodeCols),
			RelMicrochip:           tables.Schema(microchipCols),
			RelAnimal:              tables.Schema(animalCols),
			RelAnimalWeight:        tables.Schema(animalWeightCols),
			RelOwner:               tables.Schema(ownerCols),
			RelAnimalOwner:         tables.Schema(animalOwnerCols),
			RelDoctor:              tables.Schema(doctorCols),
			RelDoctorHistorization: tables.Schema(doctorHistoCols),
			RelService:             tables.Schema(serviceCols),
			RelAppointment:         tables.Schema(appointmentCols),
			RelAppointmentService:  tables.Schema(appointmentServiceCols),
			RelSlot:                tables.Schema(slotCols),
			RelAppointmentSlot:     tables.Schema(appointmentSlotCols),
		}
	case core.StageAU:
		return map[string]*arrow.Schema{
			RelMicrochipCode:   tables.Schema(microchipCodeAUCols),
			RelMicrochip:       tables.Schema(microchipAUCols),
			RelAnimal:          tables.Schema(animalAUCols),
			RelOwner:           tables.Schema(ownerAUCols),
			RelDoctor:          tables.Schema(doctorAUCols),
			RelService:         tables.Schema(serviceAUCols),
			RelAppointment:     tables.Schema(appointmentAUCols),
			RelSlot:            tables.Schema(slotAUCols),
			RelAppointmentSlot: tables.Schema(appointmentSlotCols),
		}
	case core.StageDirty:
		out := Schemas(core.StageAU)
		for name, sc := range out {
			fields := make([]arrow.Field, sc.NumFields())
			for i, f := range sc.Fields() {
				fields[i] = arrow.Field{Name: f.Name, Type: arrow.BinaryTypes.String, Nullable: true}
			}
			out[name] = arrow.NewSchema(fields, nil)
		}
		return out
	}
	return nil
}
