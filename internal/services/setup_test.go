package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/learning-service/internal/testutil"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

const testPassword = "Passw0rd!"

type testEnv struct {
	db     *gorm.DB
	repo   repositories.Repository
	events *events.MockEventPublisher
	sm     ServiceManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithIdentity(t, nil)
}

// newTestEnvWithIdentity enables SSO login through the given provider
func newTestEnvWithIdentity(t *testing.T, identity repositories.IdentityProvider) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db, Identity: identity})
	publisher := events.NewMockEventPublisher(logger)

	sm := NewServiceManager(db, repo, logger, validator.New(), ServiceManagerConfig{
		Auth: AuthSettings{
			JWTSecret:       "test-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
			BcryptCost:      bcrypt.MinCost,
		},
		Publisher: publisher,
	})
	require.NoError(t, sm.Initialize(context.Background()))

	return &testEnv{db: db, repo: repo, events: publisher, sm: sm}
}

func principal(u *models.User) Principal {
	return Principal{UserID: u.ID, Role: u.Role}
}

func (e *testEnv) user(t *testing.T, email string, role models.UserRole) Principal {
	t.Helper()
	return principal(testutil.CreateUser(t, e.db, email, role))
}

// publishedCourse creates a course with one module holding one lesson and publishes it
func (e *testEnv) publishedCourse(t *testing.T, tutor Principal, title string, maxStudents *int, autoApprove bool) (*models.Course, *models.Lesson) {
	t.Helper()
	ctx := context.Background()

	course, err := e.sm.Course().Create(ctx, tutor, &CourseCreateRequest{
		Title:                 title,
		ContentType:           models.ContentMixed,
		MaxStudents:           maxStudents,
		EnrollmentAutoApprove: autoApprove,
	})
	require.NoError(t, err)

	module, err := e.sm.Content().CreateModule(ctx, course.ID, tutor, &ModuleCreateRequest{Title: "Basics"})
	require.NoError(t, err)
	lesson, err := e.sm.Content().CreateLesson(ctx, module.ID, tutor, &LessonCreateRequest{Title: "Intro"})
	require.NoError(t, err)

	course, err = e.sm.Course().Publish(ctx, course.ID, tutor)
	require.NoError(t, err)
	return course, lesson
}

// enroll requests an enrollment and approves it when the course needs review
func (e *testEnv) enroll(t *testing.T, student, tutor Principal, courseID uint) *models.Enrollment {
	t.Helper()
	ctx := context.Background()

	enrollment, err := e.sm.Enrollment().Request(ctx, student, &EnrollmentCreateRequest{CourseID: courseID})
	require.NoError(t, err)
	if enrollment.Status == models.EnrollmentPending {
		enrollment, err = e.sm.Enrollment().Approve(ctx, enrollment.ID, tutor)
		require.NoError(t, err)
	}
	return enrollment
}
