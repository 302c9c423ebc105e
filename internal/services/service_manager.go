package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	Auth AuthSettings

	// Publisher receives domain events after commit; nil disables publishing
	Publisher events.EventPublisher
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	guard             Guard
	authService       AuthService
	userService       UserService
	courseService     CourseService
	contentService    ContentService
	enrollmentService EnrollmentService
	examService       ExamService
	gradingService    GradingService
	gradebookService  GradebookService
	forumService      ForumService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

// NewDefaultServiceManager uses development token settings and no event publisher
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, jwtSecret string) ServiceManager {
	config := ServiceManagerConfig{
		Auth: AuthSettings{
			JWTSecret:       jwtSecret,
			AccessTokenTTL:  60 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
	}
	return NewServiceManager(db, repo, logger, validator, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

func (sm *serviceManager) initializeServices() error {
	auth := sm.config.Auth
	if auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	tokens := NewTokenManager(auth.JWTSecret, auth.AccessTokenTTL, auth.RefreshTokenTTL)
	publisher := sm.config.Publisher

	sm.guard = NewGuard(sm.repo)
	sm.authService = NewAuthService(sm.repo, sm.db, sm.logger, sm.validator, tokens, auth.BcryptCost)
	sm.userService = NewUserService(sm.repo, sm.db, sm.logger, sm.validator, auth.BcryptCost)
	sm.courseService = NewCourseService(sm.repo, sm.db, sm.logger, sm.validator, sm.guard, publisher)
	sm.contentService = NewContentService(sm.repo, sm.db, sm.logger, sm.validator, sm.guard)
	sm.enrollmentService = NewEnrollmentService(sm.repo, sm.db, sm.logger, sm.validator, sm.guard, publisher)
	sm.examService = NewExamService(sm.repo, sm.db, sm.logger, sm.validator, sm.guard, publisher)
	sm.gradingService = NewGradingService(sm.repo, sm.db, sm.logger, sm.validator, sm.guard, publisher)
	sm.gradebookService = NewGradebookService(sm.repo, sm.db, sm.logger, sm.guard)
	sm.forumService = NewForumService(sm.repo, sm.db, sm.logger, sm.validator, sm.guard)

	sm.logger.Info("Services initialized",
		"sso_enabled", sm.repo.Identity() != nil,
		"events_enabled", publisher != nil)
	return nil
}

// ready panics when a getter is called before Initialize
func (sm *serviceManager) ready() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

func (sm *serviceManager) Auth() AuthService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.authService
}

func (sm *serviceManager) User() UserService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.userService
}

func (sm *serviceManager) Course() CourseService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.courseService
}

func (sm *serviceManager) Content() ContentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.contentService
}

func (sm *serviceManager) Enrollment() EnrollmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.enrollmentService
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.examService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.gradingService
}

func (sm *serviceManager) Gradebook() GradebookService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.gradebookService
}

func (sm *serviceManager) Forum() ForumService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.forumService
}

func (sm *serviceManager) Guard() Guard {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.guard
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

// Shutdown closes the repository pools. It is safe to call more than once.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")
	if err := sm.repo.Close(); err != nil {
		sm.logger.Error("Failed to close repository", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return nil
}
