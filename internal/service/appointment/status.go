package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Statuses a receptionist may set.
var receptionistTargets = map[model.AppointmentStatus]bool{
	model.AppointmentStatusConfirmed: true,
	model.AppointmentStatusCancelled: true,
	model.AppointmentStatusNoShow:    true,
}

// UpdateAppointmentStatusFor moves an appointment along its lifecycle and
// returns its id. The row is locked for the duration of the check so two
// concurrent updates cannot both pass the transition table.
func (s *Service) UpdateAppointmentStatusFor(ctx context.Context, actor *model.Actor, req *model.UpdateAppointmentStatusRequest) (int64, error) {
	if req == nil || strings.TrimSpace(req.AppointmentID) == "" || strings.TrimSpace(req.Status) == "" {
		return 0, s.finish(opUpdateStatus, apperrors.Validation("Missing required appointment data"))
	}

	id, err := parseID(req.AppointmentID, "Invalid appointment ID")
	if err != nil {
		return 0, s.finish(opUpdateStatus, err)
	}

	target, ok := model.ParseAppointmentStatus(req.Status)
	if !ok {
		return 0, s.finish(opUpdateStatus, apperrors.Validation("Invalid appointment status"))
	}

	var from model.AppointmentStatus
	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		appt, err := q.Appointments().GetForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Appointment not found", err)
		}
		if err != nil {
			return apperrors.Internal(err)
		}
		from = appt.Status

		if !appt.Status.CanTransitionTo(target) {
			return apperrors.Conflict(fmt.Sprintf("Cannot change status from '%s' to '%s'", appt.Status, target))
		}
		if err := authorizeTransition(actor, appt, target, req.Notes); err != nil {
			return err
		}

		if err := q.Appointments().UpdateStatus(ctx, id, target, req.Notes); err != nil {
			return apperrors.Internal(err)
		}

		payload := model.AppointmentStatusChangedPayload{
			AppointmentID: id,
			From:          appt.Status,
			To:            target,
			ActorID:       actor.ID,
		}
		if err := event.Emit(ctx, q.Outbox(), model.EventAppointmentStatusChanged, id, payload); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return 0, s.finish(opUpdateStatus, err)
	}

	s.logger.Info("appointment status changed",
		"appointment_id", id,
		"from", string(from),
		"to", string(target),
		"actor_id", actor.ID,
	)
	return id, s.finish(opUpdateStatus, nil)
}

// authorizeTransition applies the role gate after the lifecycle check has
// passed. The first matching tier decides.
func authorizeTransition(actor *model.Actor, appt *model.Appointment, target model.AppointmentStatus, notes *string) error {
	switch {
	case actor.HasPermission(model.PermManageAppointments):
		return nil

	case actor.HasRole(model.RoleClinicReceptionist):
		if !receptionistTargets[target] {
			return apperrors.Forbidden("Receptionists cannot set this status")
		}
		if target == model.AppointmentStatusCancelled && (notes == nil || strings.TrimSpace(*notes) == "") {
			return apperrors.Validation("Cancellation reason is required")
		}
		return nil

	case actor.HasRole(model.RoleDoctor):
		if appt.DoctorID != actor.ID {
			return apperrors.Forbidden("Doctors can only update their own appointments")
		}
		if target != model.AppointmentStatusCompleted {
			return apperrors.Forbidden("Doctors can only mark appointments as completed")
		}
		return nil

	case actor.HasRole(model.RolePatient):
		if appt.PatientID != actor.ID {
			return apperrors.Forbidden("Patients can only update their own appointments")
		}
		if appt.Status != model.AppointmentStatusRequested || target != model.AppointmentStatusCancelled {
			return apperrors.Forbidden("Patients can only cancel requested appointments")
		}
		return nil
	}

	return apperrors.Forbidden("Not authorized to update appointment status")
}
