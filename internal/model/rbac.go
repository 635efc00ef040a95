package model

import (
	"strings"
)

// RoleName identifies a role. Names are stored and compared lower-cased.
type RoleName string

// Known roles
const (
	RoleAdmin              RoleName = "admin"
	RoleDoctor             RoleName = "doctor"
	RolePatient            RoleName = "patient"
	RoleClinicReceptionist RoleName = "clinic_receptionist"
	RoleStaff              RoleName = "staff"
)

// PermissionName identifies a capability granted through roles.
type PermissionName string

// Known permissions
const (
	// PermManageAppointments grants the full appointment view and every legal transition.
	PermManageAppointments PermissionName = "manage_appointments"
	// PermViewAppointments grants a role-scoped appointment view.
	PermViewAppointments PermissionName = "view_appointments"
	// PermCreateAppointments lets patients book for themselves.
	PermCreateAppointments PermissionName = "create_appointments"
	// PermUpdateAppointments gates the status update route.
	PermUpdateAppointments PermissionName = "update_appointments"
	// PermManageUsers grants role assignment and removal.
	PermManageUsers PermissionName = "manage_users"
	// PermCreateUser lets staff register patients.
	PermCreateUser PermissionName = "create_user"

	PermManageDoctors PermissionName = "manage_doctors"
	PermViewDoctors   PermissionName = "view_doctors"
)

// NormalizeRoleName trims and lower-cases a role name.
func NormalizeRoleName(s string) RoleName {
	return RoleName(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizePermissionName trims and lower-cases a permission name.
func NormalizePermissionName(s string) PermissionName {
	return PermissionName(strings.ToLower(strings.TrimSpace(s)))
}

type Role struct {
	ID          int64    `db:"id" json:"id"`
	Name        RoleName `db:"name" json:"name"`
	Description string   `db:"description" json:"description,omitempty"`
}

type Permission struct {
	ID          int64          `db:"id" json:"id"`
	Name        PermissionName `db:"name" json:"name"`
	Description string         `db:"description" json:"description,omitempty"`
}

// RoleChangeRequest names a user and a role to attach or detach.
type RoleChangeRequest struct {
	UserID string `json:"user_id" form:"user_id" validate:"required"`
	Role   string `json:"role" form:"role" validate:"required"`
}
