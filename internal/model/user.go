package model

import (
	"time"
)

// User represents a system user
type User struct {
	ID             int64      `json:"id" db:"id"`
	UserName       string     `json:"user_name" db:"user_name"`
	Email          string     `json:"email" db:"email"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	ContactNo      *string    `json:"contact_no,omitempty" db:"contact_no"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	FailedLogins   int        `json:"-" db:"failed_logins"`
	LockedUntil    *time.Time `json:"locked_until,omitempty" db:"locked_until"`
	LastLogin      *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedByStaff *int64     `json:"created_by_staff,omitempty" db:"created_by_staff"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	// Name comes from user_details.
	Name string `json:"name" db:"name"`
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// NewPatientRequest holds the fields staff supply to register a patient.
type NewPatientRequest struct {
	Name      string `json:"name" form:"name" validate:"required"`
	UserName  string `json:"user_name" form:"user_name" validate:"required"`
	Email     string `json:"email" form:"email" validate:"required,email"`
	ContactNo string `json:"contact_no" form:"contact_no"`
}

// UserSummary is a user listed together with its role names.
type UserSummary struct {
	ID       int64      `json:"id" db:"id"`
	UserName string     `json:"user_name" db:"user_name"`
	Email    string     `json:"email" db:"email"`
	Name     string     `json:"name" db:"name"`
	Roles    []RoleName `json:"roles" db:"-"`
}

// UserDirectory is what user managers see: every active user and the role
// catalog they may assign from.
type UserDirectory struct {
	Users []*UserSummary `json:"users"`
	Roles []*Role        `json:"roles"`
}
