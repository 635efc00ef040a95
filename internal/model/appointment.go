package model

import (
	"strings"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusRequested AppointmentStatus = "requested"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusRequested: {AppointmentStatusConfirmed, AppointmentStatusCancelled},
	AppointmentStatusConfirmed: {AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow},
}

// ParseAppointmentStatus normalizes s and reports whether it is a known status.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	status := AppointmentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case AppointmentStatusRequested, AppointmentStatusConfirmed, AppointmentStatusCancelled,
		AppointmentStatusCompleted, AppointmentStatusNoShow:
		return status, true
	}
	return status, false
}

// CanTransitionTo reports whether the lifecycle table has an edge s -> next.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s AppointmentStatus) IsTerminal() bool {
	return len(appointmentTransitions[s]) == 0
}

type Appointment struct {
	Base
	PatientID            int64             `db:"patient_id" json:"patient_id"`
	DoctorID             int64             `db:"doctor_id" json:"doctor_id"`
	AppointmentTimestamp time.Time         `db:"appointment_timestamp" json:"appointment_timestamp"`
	ArrivalTimestamp     *time.Time        `db:"arrival_timestamp" json:"arrival_timestamp,omitempty"`
	Status               AppointmentStatus `db:"status" json:"status"`
	Notes                *string           `db:"notes" json:"notes,omitempty"`
	CreatedByStaff       *int64            `db:"created_by_staff" json:"created_by_staff,omitempty"`
}

// AppointmentDetail is an appointment joined with the display names of both
// participants.
type AppointmentDetail struct {
	Appointment
	DoctorName  string `db:"doctor_name" json:"doctor_name"`
	PatientName string `db:"patient_name" json:"patient_name"`
}

// AppointmentFilter restricts a listing. Zero values mean no restriction.
type AppointmentFilter struct {
	DoctorID  int64
	PatientID int64
}

// AppointmentView is the role-scoped projection returned to callers. Fields
// outside the caller's scope are nil and omitted from JSON.
type AppointmentView struct {
	ID                   int64             `json:"id"`
	PatientID            *int64            `json:"patient_id,omitempty"`
	DoctorID             *int64            `json:"doctor_id,omitempty"`
	AppointmentTimestamp time.Time         `json:"appointment_timestamp"`
	ArrivalTimestamp     *time.Time        `json:"arrival_timestamp,omitempty"`
	Status               AppointmentStatus `json:"status"`
	Notes                *string           `json:"notes,omitempty"`
	CreatedByStaff       *int64            `json:"created_by_staff,omitempty"`
	DeletedAt            *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt            *time.Time        `json:"created_at,omitempty"`
	UpdatedAt            *time.Time        `json:"updated_at,omitempty"`
	DoctorName           *string           `json:"doctor_name,omitempty"`
	PatientName          *string           `json:"patient_name,omitempty"`
}

// CreateAppointmentRequest carries raw form values. PatientID may be empty
// when staff register a new patient in the same request, in which case the
// registration fields below are used, or when a patient books for themselves.
type CreateAppointmentRequest struct {
	PatientID string  `json:"patient_id" form:"patient_id"`
	DoctorID  string  `json:"doctor_id" form:"doctor_id" validate:"required"`
	ApptDate  string  `json:"appt_date" form:"appt_date" validate:"required"`
	ApptTime  string  `json:"appt_time" form:"appt_time" validate:"required"`
	Notes     *string `json:"notes" form:"notes"`

	Name      string `json:"name" form:"name"`
	UserName  string `json:"user_name" form:"user_name"`
	Email     string `json:"email" form:"email"`
	ContactNo string `json:"contact_no" form:"contact_no"`
}

// NewPatient extracts the patient registration fields.
func (r *CreateAppointmentRequest) NewPatient() *NewPatientRequest {
	return &NewPatientRequest{
		Name:      r.Name,
		UserName:  r.UserName,
		Email:     r.Email,
		ContactNo: r.ContactNo,
	}
}

type UpdateAppointmentStatusRequest struct {
	AppointmentID string  `json:"appointment_id" form:"appointment_id" validate:"required"`
	Status        string  `json:"status" form:"status" validate:"required"`
	Notes         *string `json:"notes" form:"notes"`
}
