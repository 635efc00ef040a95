package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewActor_NormalizesNames(t *testing.T) {
	a := NewActor(9, []string{" Doctor", "doctor", "STAFF", ""}, []string{"View_Appointments ", "view_appointments"})

	assert.Equal(t, []RoleName{RoleDoctor, RoleStaff}, a.Roles())
	assert.Equal(t, []PermissionName{PermViewAppointments}, a.Permissions())
	assert.True(t, a.HasRole("DOCTOR"))
	assert.True(t, a.HasPermission(PermViewAppointments))
	assert.False(t, a.HasPermission(PermManageAppointments))
}

func TestActor_NilIsPowerless(t *testing.T) {
	var a *Actor
	assert.False(t, a.HasRole(RoleAdmin))
	assert.False(t, a.HasPermission(PermManageUsers))
	assert.False(t, a.HasAnyPermission(PermManageUsers, PermCreateUser))
}

func TestActor_HasAnyPermission(t *testing.T) {
	a := NewActor(1, []string{"clinic_receptionist"}, []string{"create_user"})

	assert.True(t, a.HasAnyPermission(PermManageUsers, PermCreateUser))
	assert.False(t, a.HasAnyPermission(PermManageUsers))
}
