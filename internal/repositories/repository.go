package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

// Repository aggregates every repository. Methods take an optional tx; a nil
// tx runs against the injected pool and may be served from cache.
type Repository interface {
	User() UserRepository
	RefreshToken() RefreshTokenRepository

	Course() CourseRepository
	Module() ModuleRepository
	Lesson() LessonRepository

	Enrollment() EnrollmentRepository

	Exam() ExamRepository
	Submission() SubmissionRepository

	Forum() ForumRepository

	// Identity is nil when no SSO provider is configured
	Identity() IdentityProvider

	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
	GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*models.User, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	List(ctx context.Context, tx *gorm.DB, filters UserFilters) ([]*models.User, int64, error)
	ExistsByEmail(ctx context.Context, tx *gorm.DB, email string, excludeID *uint) (bool, error)
	GetStats(ctx context.Context, tx *gorm.DB) (*UserStats, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, tx *gorm.DB, token *models.RefreshToken) error
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (*models.RefreshToken, error)
	// Revoke returns the number of tokens revoked, 0 for unknown or already revoked tokens
	Revoke(ctx context.Context, tx *gorm.DB, token string, at time.Time) (int64, error)
	RevokeAllForUser(ctx context.Context, tx *gorm.DB, userID uint, at time.Time) error
	DeleteStale(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

type CourseRepository interface {
	Create(ctx context.Context, tx *gorm.DB, course *models.Course) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)
	GetSummary(ctx context.Context, tx *gorm.DB, id uint) (*CourseSummary, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters CourseFilters) ([]*CourseSummary, int64, error)
	ExistsBySlug(ctx context.Context, tx *gorm.DB, slug string, excludeID *uint) (bool, error)
}

type ModuleRepository interface {
	Create(ctx context.Context, tx *gorm.DB, module *models.Module) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Module, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]*ModuleSummary, error)
	CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error)
	NextOrderIndex(ctx context.Context, tx *gorm.DB, courseID uint) (int, error)
}

type LessonRepository interface {
	Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error)
	// GetWithContent preloads videos and documents
	GetWithContent(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ListByModule(ctx context.Context, tx *gorm.DB, moduleID uint) ([]*models.Lesson, error)
	CourseIDOf(ctx context.Context, tx *gorm.DB, lessonID uint) (uint, error)
	CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error)
	NextOrderIndex(ctx context.Context, tx *gorm.DB, moduleID uint) (int, error)
	AddVideo(ctx context.Context, tx *gorm.DB, video *models.LessonVideo) error
	AddDocument(ctx context.Context, tx *gorm.DB, doc *models.LessonDocument) error
}

type EnrollmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Enrollment, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Enrollment, error)
	GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uint) (*models.Enrollment, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	List(ctx context.Context, tx *gorm.DB, filters EnrollmentFilters) ([]*EnrollmentRow, error)
	CountByStatus(ctx context.Context, tx *gorm.DB, courseID uint, statuses ...models.EnrollmentStatus) (int64, error)
	GetStats(ctx context.Context, tx *gorm.DB, courseID uint) (*EnrollmentStats, error)

	// Lesson progress
	UpsertLessonCompleted(ctx context.Context, tx *gorm.DB, enrollmentID, lessonID uint, at time.Time) error
	CountCompletedLessons(ctx context.Context, tx *gorm.DB, enrollmentID, courseID uint) (int64, error)
	ListProgress(ctx context.Context, tx *gorm.DB, enrollmentID, courseID uint) ([]*LessonProgressRow, error)
}

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	// GetForUpdate locks the exam row until tx ends
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint, publishedOnly bool) ([]*models.Exam, error)
	CloseExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)

	AddQuestion(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CountQuestions(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
	TotalPoints(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, submission *models.ExamSubmission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSubmission, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSubmission, error)
	GetWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSubmission, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	CountAttempts(ctx context.Context, tx *gorm.DB, examID, studentID uint) (int64, error)
	List(ctx context.Context, tx *gorm.DB, filters SubmissionFilters) ([]*SubmissionRow, error)

	CreateAnswers(ctx context.Context, tx *gorm.DB, answers []*models.SubmissionAnswer) error
	GradeAnswer(ctx context.Context, tx *gorm.DB, answerID uint, points float64, feedback *string) error
	ListAnswers(ctx context.Context, tx *gorm.DB, submissionID uint) ([]*models.SubmissionAnswer, error)
}

type ForumRepository interface {
	ListCategories(ctx context.Context, tx *gorm.DB) ([]*models.ForumCategory, error)
	CreateCategory(ctx context.Context, tx *gorm.DB, category *models.ForumCategory) error
	GetCategory(ctx context.Context, tx *gorm.DB, id uint) (*models.ForumCategory, error)

	CreateThread(ctx context.Context, tx *gorm.DB, thread *models.ForumThread) error
	GetThread(ctx context.Context, tx *gorm.DB, id uint) (*ThreadRow, error)
	UpdateThread(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	DeleteThread(ctx context.Context, tx *gorm.DB, id uint) error
	ListThreads(ctx context.Context, tx *gorm.DB, filters ThreadFilters) ([]*ThreadRow, int64, error)
	IncrementViews(ctx context.Context, tx *gorm.DB, id uint) error
	TouchThread(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error

	CreateReply(ctx context.Context, tx *gorm.DB, reply *models.ForumReply) error
	GetReply(ctx context.Context, tx *gorm.DB, id uint) (*models.ForumReply, error)
	ListReplies(ctx context.Context, tx *gorm.DB, threadID uint, limit, offset int) ([]*ReplyRow, int64, error)
	SetSolution(ctx context.Context, tx *gorm.DB, threadID, replyID uint) error

	// ToggleThreadLike and ToggleReplyLike must run inside tx
	ToggleThreadLike(ctx context.Context, tx *gorm.DB, userID, threadID uint) (liked bool, likes int, err error)
	ToggleReplyLike(ctx context.Context, tx *gorm.DB, userID, replyID uint) (liked bool, likes int, err error)
	LikedThreads(ctx context.Context, tx *gorm.DB, userID uint, threadIDs []uint) (map[uint]bool, error)
	LikedReplies(ctx context.Context, tx *gorm.DB, userID uint, replyIDs []uint) (map[uint]bool, error)
}

// IdentityProvider exchanges an SSO authorization code for a verified identity.
type IdentityProvider interface {
	Exchange(ctx context.Context, code, state string) (*ExternalIdentity, error)
}
