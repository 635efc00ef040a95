package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTokens map[string]int64

func (s stubTokens) ValidateToken(token string) (int64, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

type stubActors map[int64]*model.Actor

func (s stubActors) BuildActor(_ context.Context, userID int64) (*model.Actor, error) {
	if a, ok := s[userID]; ok {
		return a, nil
	}
	return nil, apperrors.NotFound("User not found", nil)
}

func newAuthEngine() *gin.Engine {
	auth := NewAuthMiddleware(
		stubTokens{"doctor": 3, "gone": 99},
		stubActors{3: model.NewActor(3, []string{"doctor"}, []string{"view_appointments", "update_appointments"})},
	)

	r := gin.New()
	r.Use(auth.Authenticate())
	r.GET("/view", auth.RequirePermission(model.PermViewAppointments, model.PermManageAppointments), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", c.GetInt64(ContextUserID))
	})
	r.GET("/users", auth.RequirePermission(model.PermManageUsers), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	r := newAuthEngine()

	tests := []struct {
		name   string
		header string
		path   string
		code   int
		body   string
	}{
		{"missing header", "", "/view", http.StatusUnauthorized, "Missing authorization header"},
		{"wrong scheme", "Basic doctor", "/view", http.StatusUnauthorized, "Invalid authorization format"},
		{"bad token", "Bearer nope", "/view", http.StatusUnauthorized, "Invalid token"},
		{"inactive account", "Bearer gone", "/view", http.StatusUnauthorized, "Account is not active"},
		{"permitted", "bearer doctor", "/view", http.StatusOK, "3"},
		{"missing permission", "Bearer doctor", "/users", http.StatusForbidden, "Permission denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 2}).RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		codes = append(codes, serve(r, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHeaders(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Cache(NoStoreConfig()), SecurityHeaders(DefaultSecurityConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "Authorization", w.Header().Get("Vary"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	assert.Len(t, w.Header().Get(HeaderXRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	assert.Equal(t, "abc-123", serve(r, req).Header().Get(HeaderXRequestID))
}
