package validation

import (
	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/model"
)

// Reference is a foreign key: every non-null value of Relation.Column must
// appear in RefRelation.RefColumn.
type Reference struct {
	Relation    string
	Column      string
	RefRelation string
	RefColumn   string
}

// Key is the surrogate primary key column of a relation. OffsetOf names the
// relation whose offset the keys start from when they are inherited.
type Key struct {
	Relation string
	Column   string
	OffsetOf string
}

func ref(rel, col, refRel, refCol string) Reference {
	return Reference{Relation: rel, Column: col, RefRelation: refRel, RefColumn: refCol}
}

// CleanReferences lists the foreign keys of the clean snapshot.
func CleanReferences() []Reference {
	return []Reference{
		ref(model.RelMicrochip, "id_code", model.RelMicrochipCode, "id_code"),
		ref(model.RelAnimal, "id_microchip", model.RelMicrochip, "id_microchip"),
		ref(model.RelAnimalWeight, "id_animal", model.RelAnimal, "id_animal"),
		ref(model.RelAnimalWeight, "id_appointment", model.RelAppointment, "id_appointment"),
		ref(model.RelAnimalOwner, "id_microchip", model.RelMicrochip, "id_microchip"),
		ref(model.RelAnimalOwner, "id_owner", model.RelOwner, "id_owner"),
		ref(model.RelDoctorHistorization, "id_doctor", model.RelDoctor, "id_doctor"),
		ref(model.RelAppointment, "id_animal", model.RelAnimal, "id_animal"),
		ref(model.RelAppointment, "id_owner", model.RelOwner, "id_owner"),
		ref(model.RelAppointmentService, "id_appointment", model.RelAppointment, "id_appointment"),
		ref(model.RelAppointmentService, "id_service", model.RelService, "id_service"),
		ref(model.RelSlot, "id_doctor", model.RelDoctor, "id_doctor"),
		ref(model.RelAppointmentSlot, "id_appointment", model.RelAppointment, "id_appointment"),
		ref(model.RelAppointmentSlot, "id_slot", model.RelSlot, "id_slot"),
	}
}

// AUReferences lists the foreign keys of the artificial-unicity snapshot.
// The dirty snapshot shares them.
func AUReferences() []Reference {
	return []Reference{
		ref(model.RelMicrochip, "id_code", model.RelMicrochipCode, "id_code"),
		ref(model.RelMicrochip, "id_owner", model.RelOwner, "id_owner"),
		ref(model.RelAnimal, "id_microchip", model.RelMicrochip, "id_microchip"),
		ref(model.RelAnimal, "id_owner", model.RelOwner, "id_owner"),
		ref(model.RelOwner, "id_animal", model.RelAnimal, "id_animal"),
		ref(model.RelAppointment, "id_animal", model.RelAnimal, "id_animal"),
		ref(model.RelAppointment, "id_service", model.RelService, "id_service"),
		ref(model.RelAppointment, "id_owner", model.RelOwner, "id_owner"),
		ref(model.RelSlot, "id_doctor", model.RelDoctor, "id_doctor"),
		ref(model.RelAppointmentSlot, "id_appointment", model.RelAppointment, "id_appointment"),
		ref(model.RelAppointmentSlot, "id_slot", model.RelSlot, "id_slot"),
	}
}

var primaryKeys = map[string]string{
	model.RelMicrochipCode:       "id_code",
	model.RelMicrochip:           "id_microchip",
	model.RelAnimal:              "id_animal",
	model.RelAnimalWeight:        "id_weight",
	model.RelOwner:               "id_owner",
	model.RelAnimalOwner:         "id_animal_owner",
	model.RelDoctor:              "id_doctor",
	model.RelDoctorHistorization: "id_doctor_histo",
	model.RelService:             "id_service",
	model.RelAppointment:         "id_appointment",
	model.RelAppointmentService:  "id_appointment_service",
	model.RelSlot:                "id_slot",
	model.RelAppointmentSlot:     "id_appointment_slot",
}

// inheritedKeys maps artificial-unicity relations to the clean relation
// their rows, and so their keys, are taken from.
var inheritedKeys = map[string]string{
	model.RelAppointment: model.RelAppointmentService,
	model.RelDoctor:      model.RelDoctorHistorization,
}

var auRelations = []string{
	model.RelMicrochipCode, model.RelMicrochip, model.RelAnimal, model.RelOwner, model.RelDoctor,
	model.RelService, model.RelAppointment, model.RelSlot, model.RelAppointmentSlot,
}

var cleanRelations = []string{
	model.RelMicrochipCode, model.RelMicrochip, model.RelAnimal, model.RelAnimalWeight, model.RelOwner,
	model.RelAnimalOwner, model.RelDoctor, model.RelDoctorHistorization, model.RelService,
	model.RelAppointment, model.RelAppointmentService, model.RelSlot, model.RelAppointmentSlot,
}

// References returns the foreign keys of a stage.
func References(stage core.Stage) []Reference {
	if stage == core.StageClean {
		return CleanReferences()
	}
	return AUReferences()
}

// PrimaryKeys returns the key column of every relation of a stage.
func PrimaryKeys(stage core.Stage) []Key {
	rels := auRelations
	if stage == core.StageClean {
		rels = cleanRelations
	}
	keys := make([]Key, len(rels))
	for i, r := range rels {
		keys[i] = Key{Relation: r, Column: primaryKeys[r]}
		if stage != core.StageClean {
			keys[i].OffsetOf = inheritedKeys[r]
		}
	}
	return keys
}
