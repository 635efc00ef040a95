package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/testutil"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type apiEnv struct {
	t       *testing.T
	f       *testutil.Fixture
	handler http.Handler
}

func newAPIEnv(t *testing.T) *apiEnv {
	f := testutil.NewFixture(t)

	cfg := &config.Config{
		Server:   config.ServerConfig{Mode: "test"},
		JWT:      config.JWTConfig{Secret: "test-secret", Issuer: "clinic-api", ExpiryHours: 1},
		Security: config.SecurityConfig{MaxFailedLogins: 5, LockoutDuration: time.Minute},
		Users:    config.UsersConfig{DefaultPassword: "change-me-on-first-login"},
	}
	reg := prometheus.NewRegistry()
	r := NewAPI(APIDeps{
		Config:   cfg,
		Store:    f.Store,
		Hasher:   f.Hasher,
		Logger:   f.Logger,
		Metrics:  metrics.NewMetrics("test", reg),
		Gatherer: reg,
	})
	return &apiEnv{t: t, f: f, handler: r.Engine()}
}

func (e *apiEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) login(userName string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/auth/login", "", jsonBody{"user_name": userName, "password": testutil.Password(userName)})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data model.TokenResponse `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.AccessToken
}

type jsonBody map[string]interface{}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestAPI_Health(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "UP")
}

func TestAPI_AuthenticationRequired(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(http.MethodGet, "/api/v1/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/v1/appointments", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/v1/auth/login", "", jsonBody{"user_name": "dr_john", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_MeAndDashboard(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login("ron")

	w := env.do(http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Data model.ActorResponse `json:"data"`
	}
	decode(t, w, &me)
	assert.Equal(t, env.f.ReceptionistID, me.Data.ID)
	assert.ElementsMatch(t, []model.RoleName{"clinic_receptionist", "staff"}, me.Data.Roles)

	w = env.do(http.MethodGet, "/api/v1/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dashboard":"clinic_receptionist"`)

	w = env.do(http.MethodGet, "/api/v1/dashboard", env.login("st_amy"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPI_AppointmentLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	f := env.f
	reception := env.login("ron")

	w := env.do(http.MethodPost, "/api/v1/appointments", reception, jsonBody{
		"patient_id": fmt.Sprint(f.PatientID),
		"doctor_id":  fmt.Sprint(f.DoctorID),
		"appt_date":  "2025-03-12",
		"appt_time":  "11:00 AM",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	decode(t, w, &created)
	path := fmt.Sprintf("/api/v1/appointments/%d/status", created.Data.ID)

	w = env.do(http.MethodPatch, path, reception, jsonBody{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doctor := env.login("dr_john")
	w = env.do(http.MethodPatch, path, doctor, jsonBody{"status": "no_show"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPatch, path, doctor, jsonBody{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodPatch, path, reception, jsonBody{"status": "cancelled", "notes": "late"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Cannot change status from 'completed' to 'cancelled'")

	w = env.do(http.MethodGet, "/api/v1/appointments", env.login("pat_rahul"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Data []map[string]interface{} `json:"data"`
	}
	decode(t, w, &listed)
	require.Len(t, listed.Data, 1)
	assert.Equal(t, "completed", listed.Data[0]["status"])
	assert.Equal(t, "Dr. John Abraham", listed.Data[0]["doctor_name"])
	assert.NotContains(t, listed.Data[0], "notes")
}

func TestAPI_RoutePermissions(t *testing.T) {
	env := newAPIEnv(t)
	staff := env.login("st_amy")

	w := env.do(http.MethodGet, "/api/v1/appointments", staff, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/v1/users", staff, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/v1/appointments", env.login("dr_john"), jsonBody{"doctor_id": "1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPI_UsersAndRoles(t *testing.T) {
	env := newAPIEnv(t)
	f := env.f
	admin := env.login("admin")

	w := env.do(http.MethodPost, "/api/v1/users", env.login("ron"), jsonBody{
		"name": "Meera Iyer", "user_name": "pat_meera", "email": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email address")

	w = env.do(http.MethodPost, "/api/v1/users", env.login("ron"), jsonBody{
		"name": "Meera Iyer", "user_name": "pat_meera", "email": "meera@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/users", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pat_meera")

	rolesPath := fmt.Sprintf("/api/v1/users/%d/roles", f.StaffID)
	w = env.do(http.MethodPost, rolesPath, admin, jsonBody{"role": "doctor"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodPost, rolesPath, admin, jsonBody{"role": "doctor"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodDelete, rolesPath+"/staff", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodDelete, rolesPath+"/doctor", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "User must have at least one role")

	w = env.do(http.MethodDelete, fmt.Sprintf("/api/v1/users/%d/roles/admin", f.AdminID), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAPI_MetricsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.do(http.MethodGet, "/health/live", "", nil)

	w := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "test_http_requests_total"))
}
