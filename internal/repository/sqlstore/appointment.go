package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type appointmentRepository struct {
	base
}

const appointmentColumns = `id, patient_id, doctor_id, appointment_timestamp, arrival_timestamp,
	status, notes, created_by_staff, deleted_at, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) (int64, error) {
	query := `
		INSERT INTO appointments (
			patient_id, doctor_id, appointment_timestamp, status, notes,
			created_by_staff, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	now := r.now()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	id, err := r.insert(ctx, query,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.AppointmentTimestamp,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedByStaff,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create appointment: %w", err)
	}
	appointment.ID = id
	return id, nil
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = ? AND deleted_at IS NULL
		FOR UPDATE`

	var appointment model.Appointment
	if err := r.get(ctx, &appointment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("appointment %d: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus, notes *string) error {
	query := `
		UPDATE appointments
		SET status = ?, notes = COALESCE(?, notes), updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`

	result, err := r.exec(ctx, query, status, notes, r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.AppointmentDetail, error) {
	query := `
		SELECT a.id, a.patient_id, a.doctor_id, a.appointment_timestamp, a.arrival_timestamp,
			a.status, a.notes, a.created_by_staff, a.deleted_at, a.created_at, a.updated_at,
			COALESCE(dd.name, '') AS doctor_name,
			COALESCE(pd.name, '') AS patient_name
		FROM appointments a
		LEFT JOIN user_details dd ON dd.user_id = a.doctor_id
		LEFT JOIN user_details pd ON pd.user_id = a.patient_id
		WHERE a.deleted_at IS NULL`

	var args []interface{}
	if filter.DoctorID != 0 {
		query += ` AND a.doctor_id = ?`
		args = append(args, filter.DoctorID)
	}
	if filter.PatientID != 0 {
		query += ` AND a.patient_id = ?`
		args = append(args, filter.PatientID)
	}
	query += ` ORDER BY a.appointment_timestamp DESC, a.id DESC`

	appointments := []*model.AppointmentDetail{}
	if err := r.selectAll(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}
