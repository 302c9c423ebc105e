package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/utils"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Route not found", body["error"])
	assert.EqualValues(t, http.StatusNotFound, body["statusCode"])
}

func TestRouter_CORS(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		origin string
		allow  string
	}{
		{name: "allowed origin is echoed", origin: "https://app.example.com", allow: "https://app.example.com"},
		{name: "other origins get no grant", origin: "https://evil.example.com", allow: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/courses", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, tt.allow, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.allow != "" {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestCORSMiddleware_AllowAll(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
	}{
		{name: "empty list", origins: nil},
		{name: "wildcard entry", origins: []string{"https://app.example.com", "*"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware(tt.origins))
			router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set("Origin", "https://anywhere.example.com")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestRecoveryMiddleware_ReportsPanics(t *testing.T) {
	reporter := &recordingReporter{}
	router := gin.New()
	router.Use(RequestIDMiddleware(), RecoveryMiddleware(utils.NewSlogLogger(nil), reporter))
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, http.StatusInternalServerError, decode(t, w)["statusCode"])
	require.Len(t, reporter.panics, 1)
	assert.Equal(t, "kaboom", reporter.panics[0])
}

func TestHandleServiceError_Envelope(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		production bool
		status     int
		message    string
		details    bool
	}{
		{name: "validation", err: validator.NewValidationError("title", "is required", nil), status: http.StatusBadRequest, message: "Validation failed", details: true},
		{name: "authentication", err: services.ErrInvalidToken, status: http.StatusUnauthorized, message: "invalid or expired token"},
		{name: "permission", err: services.NewPermissionError(1, 2, "course", "manage", "not the owner"), status: http.StatusForbidden, message: "Access denied", details: true},
		{name: "not found", err: services.NewNotFoundError("course", 7), status: http.StatusNotFound, message: "course 7 not found"},
		{name: "conflict", err: services.ErrEmailTaken, status: http.StatusConflict, message: "email already registered"},
		{name: "business rule", err: services.ErrThreadLocked, status: http.StatusBadRequest, message: services.ErrThreadLocked.Message, details: true},
		{name: "wrapped not found", err: fmt.Errorf("loading: %w", services.NewNotFoundError("exam", 3)), status: http.StatusNotFound, message: "exam 3 not found"},
		{name: "unexpected outside production", err: errors.New("db exploded"), status: http.StatusInternalServerError, message: "Internal server error", details: true},
		{name: "unexpected in production", err: errors.New("db exploded"), production: true, status: http.StatusInternalServerError, message: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reporter := &recordingReporter{}
			h := NewBaseHandler(HandlerOptions{Logger: utils.NewSlogLogger(nil), Reporter: reporter, Production: tt.production})

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
			h.handleServiceError(c, tt.err)

			require.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.message, body["error"])
			assert.EqualValues(t, tt.status, body["statusCode"])
			_, hasDetails := body["details"]
			assert.Equal(t, tt.details, hasDetails)

			if tt.status == http.StatusInternalServerError {
				assert.Len(t, reporter.errors, 1)
			} else {
				assert.Empty(t, reporter.errors)
			}
		})
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.EqualValues(t, tt.status, decode(t, w)["statusCode"])
		})
	}

	student := s.register(t, "student@example.com", "")
	w := s.do(t, http.MethodGet, "/api/v1/users", student.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := s.admin(t)
	w = s.do(t, http.MethodGet, "/api/v1/users", admin.token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// a deactivated account is locked out before its access token expires
	w = s.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/users/%d/status", student.id), admin.token, map[string]interface{}{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/auth/me", student.token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "account is inactive", decode(t, w)["error"])
}
