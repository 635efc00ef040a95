package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Accepted appointment date/time layouts, tried in order.
var appointmentLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 3:04 PM",
}

func parseAppointmentTime(date, clock string) (time.Time, error) {
	raw := strings.TrimSpace(date) + " " + strings.ToUpper(strings.TrimSpace(clock))

	var lastErr error
	for _, layout := range appointmentLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, apperrors.ValidationWrap("Invalid appointment date or time", lastErr)
}

// CreateAppointmentFor books an appointment on behalf of actor. Staff may
// register the patient in the same call by omitting patient_id; the patient
// and the appointment then commit or roll back together. A patient omitting
// patient_id books for themselves.
func (s *Service) CreateAppointmentFor(ctx context.Context, actor *model.Actor, req *model.CreateAppointmentRequest) (int64, error) {
	if req == nil || strings.TrimSpace(req.DoctorID) == "" ||
		strings.TrimSpace(req.ApptDate) == "" || strings.TrimSpace(req.ApptTime) == "" {
		return 0, s.finish(opCreate, apperrors.Validation("Missing required appointment data"))
	}

	var id int64
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		var err error
		id, err = s.createAppointment(ctx, q, actor, req)
		return err
	})
	if err != nil {
		return 0, s.finish(opCreate, err)
	}

	s.logger.Info("appointment created", "appointment_id", id, "actor_id", actor.ID)
	return id, s.finish(opCreate, nil)
}

func (s *Service) createAppointment(ctx context.Context, q repository.Queries, actor *model.Actor, req *model.CreateAppointmentRequest) (int64, error) {
	var patientID int64
	if strings.TrimSpace(req.PatientID) != "" {
		id, err := parseID(req.PatientID, "Invalid patient ID")
		if err != nil {
			return 0, err
		}
		patientID = id
	} else {
		switch {
		case actor.HasPermission(model.PermCreateUser):
			id, err := s.patients.CreatePatient(ctx, q, actor, req.NewPatient())
			if err != nil {
				return 0, err
			}
			patientID = id
		case actor.HasRole(model.RolePatient):
			// a patient booking without naming anyone books for themselves
			patientID = actor.ID
		default:
			return 0, apperrors.Forbidden("Patient must exist or user creation permission required")
		}
	}

	doctorID, err := parseID(req.DoctorID, "Invalid doctor ID")
	if err != nil {
		return 0, err
	}

	isPatient, err := q.RBAC().UserHasRole(ctx, patientID, model.RolePatient)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	if !isPatient {
		return 0, apperrors.Validation("Selected patient is not a valid patient.")
	}

	isDoctor, err := q.RBAC().UserHasRole(ctx, doctorID, model.RoleDoctor)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	if !isDoctor {
		return 0, apperrors.Validation("Selected doctor is not a valid doctor.")
	}

	at, err := parseAppointmentTime(req.ApptDate, req.ApptTime)
	if err != nil {
		return 0, err
	}

	var createdByStaff *int64
	switch {
	case actor.HasPermission(model.PermManageAppointments), actor.HasRole(model.RoleClinicReceptionist):
		staffID := actor.ID
		createdByStaff = &staffID
	case actor.HasPermission(model.PermCreateAppointments) && actor.HasRole(model.RolePatient):
		if patientID != actor.ID {
			return 0, apperrors.Forbidden("Patients can only book appointments for themselves")
		}
	default:
		return 0, apperrors.Forbidden("Not authorized to create appointments")
	}

	appt := &model.Appointment{
		PatientID:            patientID,
		DoctorID:             doctorID,
		AppointmentTimestamp: at,
		Status:               model.AppointmentStatusRequested,
		Notes:                req.Notes,
		CreatedByStaff:       createdByStaff,
	}
	id, err := q.Appointments().Create(ctx, appt)
	if err != nil {
		return 0, apperrors.Internal(err)
	}

	payload := model.AppointmentCreatedPayload{
		AppointmentID:  id,
		PatientID:      patientID,
		DoctorID:       doctorID,
		ScheduledFor:   at,
		CreatedByStaff: createdByStaff,
		ActorID:        actor.ID,
	}
	if err := event.Emit(ctx, q.Outbox(), model.EventAppointmentCreated, id, payload); err != nil {
		return 0, apperrors.Internal(err)
	}
	return id, nil
}
