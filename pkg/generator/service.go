package generator

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/TFMV/vetsynth/pkg/idalloc"
	"github.com/TFMV/vetsynth/pkg/model"
)

// services builds the catalogue and maps each appointment to the services
// its reason implies: a surgery type for surgeries, then each listed
// service with its probability.
func (g *Generator) services(_ context.Context, b *Build) error {
	r := g.rand("services")

	start := g.offset(model.RelService)
	byName := make(map[string]int, len(g.ref.Services))
	b.Clean.Services = make([]model.Service, len(g.ref.Services))
	for i, name := range g.ref.Services {
		b.Clean.Services[i] = model.Service{ID: start + i, Name: name}
		byName[name] = start + i
	}

	byReason := map[string][]int{}
	for i, rs := range g.ref.ReasonServices {
		byReason[rs.Reason] = append(byReason[rs.Reason], i)
	}

	type pair struct{ appt, service int }
	seen := map[pair]bool{}
	var rows []model.AppointmentService
	add := func(appt int, service string) error {
		id, ok := byName[service]
		if !ok {
			return fmt.Errorf("unknown service %q", service)
		}
		if p := (pair{appt, id}); !seen[p] {
			seen[p] = true
			rows = append(rows, model.AppointmentService{AppointmentID: appt, ServiceID: id})
		}
		return nil
	}

	for _, a := range b.Clean.Appointments {
		if a.Reason == model.ReasonSurgery {
			u := r.Float64()
			for _, st := range g.ref.SurgeryTypes {
				if st.MinProp < u && u <= st.MaxProp {
					if err := add(a.ID, st.Type); err != nil {
						return err
					}
					break
				}
			}
		}
		for _, i := range byReason[a.Reason] {
			rs := g.ref.ReasonServices[i]
			if r.Float64() < rs.Probability {
				if err := add(a.ID, rs.Service); err != nil {
					return err
				}
			}
		}
	}

	slices.SortFunc(rows, func(x, y model.AppointmentService) int {
		return cmp.Or(cmp.Compare(x.AppointmentID, y.AppointmentID), cmp.Compare(x.ServiceID, y.ServiceID))
	})
	if err := idalloc.Assign(rows, g.offset(model.RelAppointmentService), func(s *model.AppointmentService, id int) { s.ID = id }); err != nil {
		return err
	}
	b.Clean.AppointmentServices = rows
	return nil
}
