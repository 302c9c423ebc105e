package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/testutil"
	"github.com/SAP-F-2025/learning-service/internal/utils"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

const testPassword = "Passw0rd!"

func init() {
	gin.SetMode(gin.TestMode)
}

// recordingReporter keeps whatever would have gone to Rollbar
type recordingReporter struct {
	mu     sync.Mutex
	errors []error
	panics []interface{}
}

func (r *recordingReporter) Report(err error, _ *http.Request, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recordingReporter) ReportPanic(recovered interface{}, _ *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics = append(r.panics, recovered)
}

func (r *recordingReporter) Close() {}

type testServer struct {
	router   *gin.Engine
	db       *gorm.DB
	sm       services.ServiceManager
	reporter *recordingReporter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db})

	sm := services.NewServiceManager(db, repo, slogger, validator.New(), services.ServiceManagerConfig{
		Auth: services.AuthSettings{
			JWTSecret:       "handler-test-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
			BcryptCost:      bcrypt.MinCost,
		},
		Publisher: events.NewMockEventPublisher(slogger),
	})
	require.NoError(t, sm.Initialize(context.Background()))

	reporter := &recordingReporter{}
	logger := utils.NewSlogLogger(slogger)
	router := gin.New()
	SetupMiddleware(router, logger, reporter, []string{"https://app.example.com"})
	NewHandlerManager(sm, HandlerOptions{Logger: logger, Reporter: reporter}).SetupRoutes(router)

	return &testServer{router: router, db: db, sm: sm, reporter: reporter}
}

// do sends a JSON request and returns the recorder
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

type account struct {
	id    uint
	token string
}

// register signs up through the API and returns the new account's access token
func (s *testServer) register(t *testing.T, email string, role models.UserRole) account {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"email":     email,
		"password":  testPassword,
		"firstName": "Test",
		"lastName":  "User",
		"role":      role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp services.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return account{id: resp.User.ID, token: resp.AccessToken}
}

// admin inserts an admin directly, since the API cannot create one, then logs in
func (s *testServer) admin(t *testing.T) account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := testutil.CreateUser(t, s.db, "admin@example.com", models.RoleAdmin)
	require.NoError(t, s.db.Model(user).Update("password_hash", string(hash)).Error)

	resp, err := s.sm.Auth().Login(context.Background(), &services.LoginRequest{Email: "admin@example.com", Password: testPassword})
	require.NoError(t, err)
	return account{id: user.ID, token: resp.AccessToken}
}

func principalOf(a account, role models.UserRole) services.Principal {
	return services.Principal{UserID: a.id, Role: role}
}
