package appointment

import (
	"context"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// Scope is the slice of the appointment table an actor may see.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeFull
	ScopeOperational
	ScopeDoctor
	ScopePatient
)

func (s Scope) String() string {
	switch s {
	case ScopeFull:
		return "full"
	case ScopeOperational:
		return "operational"
	case ScopeDoctor:
		return "doctor"
	case ScopePatient:
		return "patient"
	default:
		return "none"
	}
}

// ResolveScope applies the visibility rules in order; the first match wins.
func ResolveScope(actor *model.Actor) Scope {
	switch {
	case actor.HasPermission(model.PermManageAppointments):
		return ScopeFull
	case actor.HasRole(model.RoleClinicReceptionist):
		return ScopeOperational
	case !actor.HasPermission(model.PermViewAppointments):
		return ScopeNone
	case actor.HasRole(model.RoleDoctor):
		return ScopeDoctor
	case actor.HasRole(model.RolePatient):
		return ScopePatient
	default:
		return ScopeNone
	}
}

// ListAppointmentsFor returns the appointments visible to actor, newest
// first, projected to the fields its scope allows.
func (s *Service) ListAppointmentsFor(ctx context.Context, actor *model.Actor) ([]*model.AppointmentView, error) {
	scope := ResolveScope(actor)

	var filter model.AppointmentFilter
	switch scope {
	case ScopeNone:
		s.metrics.RecordDecision(opList, "empty")
		return []*model.AppointmentView{}, nil
	case ScopeDoctor:
		filter.DoctorID = actor.ID
	case ScopePatient:
		filter.PatientID = actor.ID
	}

	rows, err := s.store.Appointments().List(ctx, filter)
	if err != nil {
		return nil, s.finish(opList, err)
	}

	views := make([]*model.AppointmentView, 0, len(rows))
	for _, row := range rows {
		views = append(views, project(scope, row))
	}

	s.logger.Debug("appointments listed", "actor_id", actor.ID, "scope", scope.String(), "count", len(views))
	return views, s.finish(opList, nil)
}

func project(scope Scope, row *model.AppointmentDetail) *model.AppointmentView {
	v := &model.AppointmentView{
		ID:                   row.ID,
		AppointmentTimestamp: row.AppointmentTimestamp,
		Status:               row.Status,
	}

	switch scope {
	case ScopeFull:
		patientID, doctorID := row.PatientID, row.DoctorID
		createdAt, updatedAt := row.CreatedAt, row.UpdatedAt
		doctorName, patientName := row.DoctorName, row.PatientName
		v.PatientID = &patientID
		v.DoctorID = &doctorID
		v.ArrivalTimestamp = row.ArrivalTimestamp
		v.Notes = row.Notes
		v.CreatedByStaff = row.CreatedByStaff
		v.DeletedAt = row.DeletedAt
		v.CreatedAt = &createdAt
		v.UpdatedAt = &updatedAt
		v.DoctorName = &doctorName
		v.PatientName = &patientName
	case ScopeOperational:
		createdAt := row.CreatedAt
		doctorName, patientName := row.DoctorName, row.PatientName
		v.ArrivalTimestamp = row.ArrivalTimestamp
		v.Notes = row.Notes
		v.CreatedAt = &createdAt
		v.DoctorName = &doctorName
		v.PatientName = &patientName
	case ScopeDoctor:
		patientName := row.PatientName
		v.PatientName = &patientName
	case ScopePatient:
		doctorName := row.DoctorName
		v.DoctorName = &doctorName
	}
	return v
}
