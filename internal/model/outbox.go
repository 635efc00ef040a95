package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
	OutboxStatusDead      OutboxStatus = "DEAD"
)

// Event types recorded by core writes
const (
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentStatusChanged = "appointment.status_changed"
	EventUserCreated              = "user.created"
	EventUserRoleAssigned         = "user.role_assigned"
	EventUserRoleRemoved          = "user.role_removed"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	AggregateID  int64           `db:"aggregate_id" json:"aggregate_id"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

// AppointmentCreatedPayload is the payload of EventAppointmentCreated.
type AppointmentCreatedPayload struct {
	AppointmentID  int64     `json:"appointment_id"`
	PatientID      int64     `json:"patient_id"`
	DoctorID       int64     `json:"doctor_id"`
	ScheduledFor   time.Time `json:"scheduled_for"`
	CreatedByStaff *int64    `json:"created_by_staff,omitempty"`
	ActorID        int64     `json:"actor_id"`
}

// AppointmentStatusChangedPayload is the payload of EventAppointmentStatusChanged.
type AppointmentStatusChangedPayload struct {
	AppointmentID int64             `json:"appointment_id"`
	From          AppointmentStatus `json:"from"`
	To            AppointmentStatus `json:"to"`
	ActorID       int64             `json:"actor_id"`
}

// UserRoleChangedPayload is the payload of the role assignment events.
type UserRoleChangedPayload struct {
	UserID  int64    `json:"user_id"`
	Role    RoleName `json:"role"`
	ActorID int64    `json:"actor_id"`
}

// UserCreatedPayload is the payload of EventUserCreated.
type UserCreatedPayload struct {
	UserID  int64    `json:"user_id"`
	Role    RoleName `json:"role"`
	ActorID int64    `json:"actor_id"`
}
