package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/cache"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

// PostgreSQLRepository implements the main Repository interface
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.Manager
	helpers      *SharedHelpers

	user         repositories.UserRepository
	refreshToken repositories.RefreshTokenRepository
	course       repositories.CourseRepository
	module       repositories.ModuleRepository
	lesson       repositories.LessonRepository
	enrollment   repositories.EnrollmentRepository
	exam         repositories.ExamRepository
	submission   repositories.SubmissionRepository
	forum        repositories.ForumRepository
	identity     repositories.IdentityProvider
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB          *gorm.DB
	RedisClient *redis.Client
	// Identity is optional; nil disables SSO login
	Identity repositories.IdentityProvider
}

// NewPostgreSQLRepository wires every sub-repository to the shared pool and cache
func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	cacheManager := cache.NewManager(config.RedisClient)
	helpers := NewSharedHelpers(config.DB)

	return &PostgreSQLRepository{
		db:           config.DB,
		redisClient:  config.RedisClient,
		cacheManager: cacheManager,
		helpers:      helpers,

		user:         NewUserPostgreSQL(config.DB, helpers, cacheManager),
		refreshToken: NewRefreshTokenPostgreSQL(config.DB),
		course:       NewCoursePostgreSQL(config.DB, helpers, cacheManager),
		module:       NewModulePostgreSQL(config.DB, helpers, cacheManager),
		lesson:       NewLessonPostgreSQL(config.DB, helpers, cacheManager),
		enrollment:   NewEnrollmentPostgreSQL(config.DB, helpers, cacheManager),
		exam:         NewExamPostgreSQL(config.DB),
		submission:   NewSubmissionPostgreSQL(config.DB),
		forum:        NewForumPostgreSQL(config.DB, helpers, cacheManager),
		identity:     config.Identity,
	}
}

func (r *PostgreSQLRepository) User() repositories.UserRepository { return r.user }

func (r *PostgreSQLRepository) RefreshToken() repositories.RefreshTokenRepository {
	return r.refreshToken
}

func (r *PostgreSQLRepository) Course() repositories.CourseRepository { return r.course }

func (r *PostgreSQLRepository) Module() repositories.ModuleRepository { return r.module }

func (r *PostgreSQLRepository) Lesson() repositories.LessonRepository { return r.lesson }

func (r *PostgreSQLRepository) Enrollment() repositories.EnrollmentRepository { return r.enrollment }

func (r *PostgreSQLRepository) Exam() repositories.ExamRepository { return r.exam }

func (r *PostgreSQLRepository) Submission() repositories.SubmissionRepository { return r.submission }

func (r *PostgreSQLRepository) Forum() repositories.ForumRepository { return r.forum }

func (r *PostgreSQLRepository) Identity() repositories.IdentityProvider { return r.identity }

// WithTransaction runs fn inside a database transaction; any error rolls back.
// Cache invalidations raised by repository writes on tx run only after commit.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.helpers.Transaction(ctx, fn)
}

// Ping checks the health of database and cache connections
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if r.redisClient != nil {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}
	return nil
}

// Close closes the database pool and the Redis client
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}
	return nil
}

// CacheStats reports cache key counts for the health endpoint
func (r *PostgreSQLRepository) CacheStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"cache_enabled": r.cacheManager.Enabled()}
	if !r.cacheManager.Enabled() {
		return stats, nil
	}

	counts, err := r.cacheManager.KeyCounts(ctx)
	if err != nil {
		return stats, err
	}
	stats["keys"] = counts
	return stats, nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: config,
	}
}

// Initialize verifies the connections and builds the repository
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	if rm.config.RedisClient != nil {
		if err := rm.config.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
	}

	rm.repo = NewPostgreSQLRepository(rm.config)
	return nil
}

func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	return rm.repo.Ping(ctx)
}

func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}
	return rm.repo.Close()
}
