// Package seed installs the role and permission catalog, the first
// administrator and, for development databases, a small demo roster.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

var roleDescriptions = map[model.RoleName]string{
	model.RoleAdmin:              "Clinic administrator",
	model.RoleDoctor:             "Treating doctor",
	model.RolePatient:            "Patient",
	model.RoleClinicReceptionist: "Front desk",
	model.RoleStaff:              "Clinic staff",
}

var permissionDescriptions = map[model.PermissionName]string{
	model.PermManageAppointments: "Full access to every appointment",
	model.PermViewAppointments:   "View appointments within the role's scope",
	model.PermCreateAppointments: "Book appointments",
	model.PermUpdateAppointments: "Change appointment status",
	model.PermManageUsers:        "Assign and remove roles",
	model.PermCreateUser:         "Register patients",
	model.PermManageDoctors:      "Maintain doctor profiles",
	model.PermViewDoctors:        "Browse doctors",
}

// Grants is the default permission set of each role.
var Grants = map[model.RoleName][]model.PermissionName{
	model.RoleAdmin: {
		model.PermManageAppointments,
		model.PermViewAppointments,
		model.PermCreateAppointments,
		model.PermUpdateAppointments,
		model.PermManageUsers,
		model.PermCreateUser,
		model.PermManageDoctors,
		model.PermViewDoctors,
	},
	model.RoleClinicReceptionist: {
		model.PermViewAppointments,
		model.PermCreateAppointments,
		model.PermUpdateAppointments,
		model.PermCreateUser,
		model.PermViewDoctors,
	},
	model.RoleDoctor: {
		model.PermViewAppointments,
		model.PermUpdateAppointments,
	},
	model.RolePatient: {
		model.PermViewAppointments,
		model.PermCreateAppointments,
		model.PermUpdateAppointments,
		model.PermViewDoctors,
	},
	model.RoleStaff: {
		model.PermViewDoctors,
	},
}

// Catalog creates every known role and permission and their grants. It is
// idempotent.
func Catalog(ctx context.Context, q repository.Queries) error {
	permIDs := make(map[model.PermissionName]int64, len(permissionDescriptions))
	for name, desc := range permissionDescriptions {
		id, err := q.RBAC().EnsurePermission(ctx, name, desc)
		if err != nil {
			return err
		}
		permIDs[name] = id
	}

	for role, desc := range roleDescriptions {
		roleID, err := q.RBAC().EnsureRole(ctx, role, desc)
		if err != nil {
			return err
		}
		for _, perm := range Grants[role] {
			if err := q.RBAC().GrantPermission(ctx, roleID, permIDs[perm]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Admin describes the first administrator account.
type Admin struct {
	UserName  string
	Email     string
	Password  string
	ContactNo string
}

// ErrAlreadySeeded is returned by DefaultAdmin when users already exist.
var ErrAlreadySeeded = errors.New("database already has users")

// DefaultAdmin creates the administrator, but only on an empty user table.
func DefaultAdmin(ctx context.Context, q repository.Queries, hasher security.PasswordHasher, admin Admin) (int64, error) {
	count, err := q.Users().Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, ErrAlreadySeeded
	}
	if admin.Password == "" {
		return 0, errors.New("admin password is required")
	}

	return createUser(ctx, q, hasher, devUser{
		userName: admin.UserName,
		email:    admin.Email,
		name:     "System Admin",
		phone:    admin.ContactNo,
		roles:    []model.RoleName{model.RoleAdmin},
	}, admin.Password)
}

type devUser struct {
	userName string
	email    string
	name     string
	phone    string
	roles    []model.RoleName
}

var devUsers = []devUser{
	{"dr_john", "john@example.com", "Dr. John Abraham", "9000000001", []model.RoleName{model.RoleDoctor}},
	{"dr_smith", "smith@example.com", "Dr. Sarah Smith", "9000000002", []model.RoleName{model.RoleDoctor}},
	{"dr_khan", "khan@example.com", "Dr. Imran Khan", "9000000003", []model.RoleName{model.RoleDoctor}},
	{"pat_rahul", "rahul@example.com", "Rahul Verma", "8000000001", []model.RoleName{model.RolePatient}},
	{"pat_anjali", "anjali@example.com", "Anjali Rao", "8000000002", []model.RoleName{model.RolePatient}},
	{"pat_karan", "karan@example.com", "Karan Patel", "8000000003", []model.RoleName{model.RolePatient}},
	{"pat_sneha", "sneha@example.com", "Sneha Gupta", "8000000004", []model.RoleName{model.RolePatient}},
	{"pat_mohan", "mohan@example.com", "Mohan Lal", "8000000005", []model.RoleName{model.RolePatient}},
	{"st_cr_ron", "ron@example.com", "Ron Don", "7000000001", []model.RoleName{model.RoleStaff, model.RoleClinicReceptionist}},
}

// DevPassword is the password of every demo account for userName.
func DevPassword(userName string) string {
	return userName + "@dev1"
}

// Dev adds the demo roster when only the administrator exists.
func Dev(ctx context.Context, q repository.Queries, hasher security.PasswordHasher) error {
	count, err := q.Users().Count(ctx)
	if err != nil {
		return err
	}
	if count > 1 {
		return ErrAlreadySeeded
	}

	for _, u := range devUsers {
		if _, err := createUser(ctx, q, hasher, u, DevPassword(u.userName)); err != nil {
			return err
		}
	}
	return nil
}

func createUser(ctx context.Context, q repository.Queries, hasher security.PasswordHasher, u devUser, password string) (int64, error) {
	hash, err := hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password for %s: %w", u.userName, err)
	}

	user := &model.User{
		UserName:     u.userName,
		Email:        u.email,
		Name:         u.name,
		PasswordHash: hash,
		IsActive:     true,
	}
	if u.phone != "" {
		phone := u.phone
		user.ContactNo = &phone
	}

	id, err := q.Users().Create(ctx, user)
	if err != nil {
		return 0, err
	}
	for _, roleName := range u.roles {
		role, err := q.RBAC().GetRoleByName(ctx, roleName)
		if err != nil {
			return 0, fmt.Errorf("seed role %s: %w", roleName, err)
		}
		if err := q.RBAC().AssignRoleToUser(ctx, id, role.ID); err != nil {
			return 0, err
		}
	}
	return id, nil
}
