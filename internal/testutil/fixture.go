// Package testutil builds an in-memory clinic with one user per role.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/seed"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

var Now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type Fixture struct {
	Store   *memory.Store
	Hasher  security.PasswordHasher
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	AdminID        int64
	ReceptionistID int64
	DoctorID       int64
	OtherDoctorID  int64
	PatientID      int64
	OtherPatientID int64
	StaffID        int64
}

// Password is the login password of every fixture user.
func Password(userName string) string {
	return userName + "-password"
}

func NewFixture(t testing.TB) *Fixture {
	t.Helper()

	store := memory.New()
	store.SetClock(func() time.Time { return Now })
	f := &Fixture{
		Store:   store,
		Hasher:  security.NewBcryptHasher(bcrypt.MinCost),
		Logger:  logger.Nop(),
		Metrics: metrics.NewMetrics("test", prometheus.NewRegistry()),
	}

	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(q repository.Queries) error {
		return seed.Catalog(ctx, q)
	}))

	f.AdminID = f.AddUser(t, "admin", "System Admin", model.RoleAdmin)
	f.ReceptionistID = f.AddUser(t, "ron", "Ron Don", model.RoleStaff, model.RoleClinicReceptionist)
	f.DoctorID = f.AddUser(t, "dr_john", "Dr. John Abraham", model.RoleDoctor)
	f.OtherDoctorID = f.AddUser(t, "dr_smith", "Dr. Sarah Smith", model.RoleDoctor)
	f.PatientID = f.AddUser(t, "pat_rahul", "Rahul Verma", model.RolePatient)
	f.OtherPatientID = f.AddUser(t, "pat_anjali", "Anjali Rao", model.RolePatient)
	f.StaffID = f.AddUser(t, "st_amy", "Amy Staff", model.RoleStaff)
	return f
}

// AddUser creates an active user holding roles.
func (f *Fixture) AddUser(t testing.TB, userName, name string, roles ...model.RoleName) int64 {
	t.Helper()
	ctx := context.Background()

	hash, err := f.Hasher.Hash(Password(userName))
	require.NoError(t, err)

	var id int64
	require.NoError(t, f.Store.WithTx(ctx, func(q repository.Queries) error {
		id, err = q.Users().Create(ctx, &model.User{
			UserName:     userName,
			Email:        userName + "@example.com",
			Name:         name,
			PasswordHash: hash,
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		for _, r := range roles {
			role, err := q.RBAC().GetRoleByName(ctx, r)
			if err != nil {
				return err
			}
			if err := q.RBAC().AssignRoleToUser(ctx, id, role.ID); err != nil {
				return err
			}
		}
		return nil
	}))
	return id
}

// AddAppointment stores an appointment directly, bypassing authorization.
func (f *Fixture) AddAppointment(t testing.TB, patientID, doctorID int64, at time.Time, status model.AppointmentStatus) int64 {
	t.Helper()
	id, err := f.Store.Appointments().Create(context.Background(), &model.Appointment{
		PatientID:            patientID,
		DoctorID:             doctorID,
		AppointmentTimestamp: at,
		Status:               status,
	})
	require.NoError(t, err)
	return id
}

// Actor loads the live role and permission sets of userID.
func (f *Fixture) Actor(t testing.TB, userID int64) *model.Actor {
	t.Helper()
	ctx := context.Background()

	roles, err := f.Store.RBAC().ListUserRoleNames(ctx, userID)
	require.NoError(t, err)
	perms, err := f.Store.RBAC().ListUserPermissionNames(ctx, userID)
	require.NoError(t, err)
	return model.NewActor(userID, roles, perms)
}

// Appointment reads an appointment back, failing the test when it is gone.
func (f *Fixture) Appointment(t testing.TB, id int64) *model.Appointment {
	t.Helper()
	a, err := f.Store.Appointments().GetForUpdate(context.Background(), id)
	require.NoError(t, err)
	return a
}

// Events returns every outbox event of eventType still pending delivery.
func (f *Fixture) Events(t testing.TB, eventType string) []*model.OutboxEvent {
	t.Helper()
	pending, err := f.Store.Outbox().GetPendingEvents(context.Background(), 1000)
	require.NoError(t, err)

	var out []*model.OutboxEvent
	for _, e := range pending {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
