package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Request types live with the validator
type RegisterRequest = validator.RegisterRequest
type LoginRequest = validator.LoginRequest
type ChangePasswordRequest = validator.ChangePasswordRequest
type CasdoorLoginRequest = validator.CasdoorLoginRequest

type UserListQuery = validator.UserListQuery
type UserCreateRequest = validator.UserCreateRequest
type UserUpdateRequest = validator.UserUpdateRequest

type CourseListQuery = validator.CourseListQuery
type CourseCreateRequest = validator.CourseCreateRequest
type CourseUpdateRequest = validator.CourseUpdateRequest
type ModuleCreateRequest = validator.ModuleCreateRequest
type ModuleUpdateRequest = validator.ModuleUpdateRequest
type LessonCreateRequest = validator.LessonCreateRequest
type LessonUpdateRequest = validator.LessonUpdateRequest
type VideoCreateRequest = validator.VideoCreateRequest
type DocumentCreateRequest = validator.DocumentCreateRequest

type EnrollmentCreateRequest = validator.EnrollmentCreateRequest

type ExamCreateRequest = validator.ExamCreateRequest
type QuestionCreateRequest = validator.QuestionCreateRequest
type SubmitExamRequest = validator.SubmitExamRequest
type GradeSubmissionRequest = validator.GradeSubmissionRequest

type CategoryCreateRequest = validator.CategoryCreateRequest
type ThreadListQuery = validator.ThreadListQuery
type ThreadCreateRequest = validator.ThreadCreateRequest
type ReplyCreateRequest = validator.ReplyCreateRequest
type PageQuery = validator.PageQuery

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ===== AUTH =====

type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// ===== USERS =====

type UserListResponse struct {
	Users []*models.User `json:"users"`
	Pagination
}

// ===== COURSES =====

type CourseDetailResponse struct {
	*repositories.CourseSummary
	IsEnrolled       bool                     `json:"isEnrolled"`
	EnrollmentStatus *models.EnrollmentStatus `json:"enrollmentStatus,omitempty"`
}

type CourseListResponse struct {
	Courses []*repositories.CourseSummary `json:"courses"`
	Pagination
}

// ===== ENROLLMENTS =====

type LessonCompletionResponse struct {
	EnrollmentID       uint                    `json:"enrollmentId"`
	LessonID           uint                    `json:"lessonId"`
	Status             models.EnrollmentStatus `json:"status"`
	ProgressPercentage float64                 `json:"progressPercentage"`
	CompletedLessons   int64                   `json:"completedLessons"`
	TotalLessons       int64                   `json:"totalLessons"`
}

type ProgressResponse struct {
	Enrollment       *models.Enrollment              `json:"enrollment"`
	CompletedLessons int64                           `json:"completedLessons"`
	TotalLessons     int64                           `json:"totalLessons"`
	Lessons          []*repositories.LessonProgressRow `json:"lessons"`
}

// ===== EXAMS =====

type OptionView struct {
	ID         uint   `json:"id"`
	OptionText string `json:"optionText"`
	OrderIndex int    `json:"orderIndex"`
	// IsCorrect is only set for the course tutor and admins
	IsCorrect *bool `json:"isCorrect,omitempty"`
}

type QuestionView struct {
	ID           uint                `json:"id"`
	QuestionText string              `json:"questionText"`
	QuestionType models.QuestionType `json:"questionType"`
	Points       int                 `json:"points"`
	OrderIndex   int                 `json:"orderIndex"`
	Options      []OptionView        `json:"options"`
}

type ExamResponse struct {
	*models.Exam
	Questions   []QuestionView `json:"questions"`
	TotalPoints int            `json:"totalPoints"`
	CanManage   bool           `json:"canManage"`
}

type GradebookFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ===== FORUM =====

type ThreadResponse struct {
	*repositories.ThreadRow
	IsLiked bool `json:"isLiked"`
}

type ThreadListResponse struct {
	Threads []*ThreadResponse `json:"threads"`
	Pagination
}

type ReplyResponse struct {
	*repositories.ReplyRow
	IsLiked bool `json:"isLiked"`
}

type ReplyListResponse struct {
	Replies []*ReplyResponse `json:"replies"`
	Pagination
}

type LikeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

// ===== SERVICE INTERFACES =====

type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string, requester Principal) error
	Me(ctx context.Context, userID uint) (*models.User, error)
	ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) error
	VerifyAccessToken(ctx context.Context, token string) (*AccessClaims, error)

	// SSO
	SSOEnabled() bool
	LoginWithCasdoor(ctx context.Context, req *CasdoorLoginRequest) (*AuthResponse, error)
}

type UserService interface {
	List(ctx context.Context, query *UserListQuery) (*UserListResponse, error)
	Get(ctx context.Context, id uint) (*models.User, error)
	Create(ctx context.Context, req *UserCreateRequest) (*models.User, error)
	Update(ctx context.Context, id uint, req *UserUpdateRequest) (*models.User, error)
	Delete(ctx context.Context, id uint, requester Principal) error
	SetStatus(ctx context.Context, id uint, isActive bool, requester Principal) (*models.User, error)
	Stats(ctx context.Context) (*repositories.UserStats, error)
}

type CourseService interface {
	Create(ctx context.Context, tutor Principal, req *CourseCreateRequest) (*models.Course, error)
	Get(ctx context.Context, id uint, viewer *Principal) (*CourseDetailResponse, error)
	List(ctx context.Context, query *CourseListQuery, viewer *Principal) (*CourseListResponse, error)
	Update(ctx context.Context, id uint, tutor Principal, req *CourseUpdateRequest) (*models.Course, error)
	Publish(ctx context.Context, id uint, tutor Principal) (*models.Course, error)
	ToggleStatus(ctx context.Context, id uint) (*models.Course, error)
	Delete(ctx context.Context, id uint, requester Principal) error
}

// ContentService authors the modules and lessons of a course
type ContentService interface {
	CreateModule(ctx context.Context, courseID uint, tutor Principal, req *ModuleCreateRequest) (*models.Module, error)
	ListModules(ctx context.Context, courseID uint) ([]*repositories.ModuleSummary, error)
	UpdateModule(ctx context.Context, moduleID uint, tutor Principal, req *ModuleUpdateRequest) (*models.Module, error)
	DeleteModule(ctx context.Context, moduleID uint, tutor Principal) error

	CreateLesson(ctx context.Context, moduleID uint, tutor Principal, req *LessonCreateRequest) (*models.Lesson, error)
	GetLesson(ctx context.Context, lessonID uint, viewer Principal) (*models.Lesson, error)
	UpdateLesson(ctx context.Context, lessonID uint, tutor Principal, req *LessonUpdateRequest) (*models.Lesson, error)
	DeleteLesson(ctx context.Context, lessonID uint, tutor Principal) error
	AddVideo(ctx context.Context, lessonID uint, tutor Principal, req *VideoCreateRequest) (*models.LessonVideo, error)
	AddDocument(ctx context.Context, lessonID uint, tutor Principal, req *DocumentCreateRequest) (*models.LessonDocument, error)
}

type EnrollmentService interface {
	Request(ctx context.Context, student Principal, req *EnrollmentCreateRequest) (*models.Enrollment, error)
	Approve(ctx context.Context, enrollmentID uint, tutor Principal) (*models.Enrollment, error)
	Reject(ctx context.Context, enrollmentID uint, tutor Principal) (*models.Enrollment, error)
	MarkLessonComplete(ctx context.Context, enrollmentID, lessonID uint, student Principal) (*LessonCompletionResponse, error)

	ListMine(ctx context.Context, student Principal, status *models.EnrollmentStatus) ([]*repositories.EnrollmentRow, error)
	ListByCourse(ctx context.Context, courseID uint, tutor Principal, status *models.EnrollmentStatus) ([]*repositories.EnrollmentRow, error)
	GetProgress(ctx context.Context, enrollmentID uint, requester Principal) (*ProgressResponse, error)
	Stats(ctx context.Context, courseID uint, tutor Principal) (*repositories.EnrollmentStats, error)
}

type ExamService interface {
	Create(ctx context.Context, courseID uint, tutor Principal, req *ExamCreateRequest) (*models.Exam, error)
	AddQuestion(ctx context.Context, examID uint, tutor Principal, req *QuestionCreateRequest) (*models.Question, error)
	Get(ctx context.Context, examID uint, viewer Principal) (*ExamResponse, error)
	ListByCourse(ctx context.Context, courseID uint, viewer Principal) ([]*models.Exam, error)
	Publish(ctx context.Context, examID uint, tutor Principal) (*models.Exam, error)
	Submit(ctx context.Context, examID uint, student Principal, req *SubmitExamRequest) (*models.ExamSubmission, error)
}

type GradingService interface {
	Grade(ctx context.Context, submissionID uint, tutor Principal, req *GradeSubmissionRequest) (*models.ExamSubmission, error)
	GetSubmission(ctx context.Context, submissionID uint, requester Principal) (*models.ExamSubmission, error)
	ListStudentSubmissions(ctx context.Context, student Principal, courseID *uint) ([]*repositories.SubmissionRow, error)
	ListPendingGrading(ctx context.Context, tutor Principal) ([]*repositories.SubmissionRow, error)
}

type GradebookService interface {
	Export(ctx context.Context, examID uint, tutor Principal) (*GradebookFile, error)
}

type ForumService interface {
	ListCategories(ctx context.Context) ([]*models.ForumCategory, error)
	CreateCategory(ctx context.Context, req *CategoryCreateRequest) (*models.ForumCategory, error)

	CreateThread(ctx context.Context, author Principal, req *ThreadCreateRequest) (*ThreadResponse, error)
	ListThreads(ctx context.Context, query *ThreadListQuery, viewer *Principal) (*ThreadListResponse, error)
	GetThread(ctx context.Context, threadID uint, viewer *Principal) (*ThreadResponse, error)
	DeleteThread(ctx context.Context, threadID uint, requester Principal) error
	TogglePin(ctx context.Context, threadID uint, requester Principal) (*ThreadResponse, error)
	ToggleLock(ctx context.Context, threadID uint, requester Principal) (*ThreadResponse, error)

	CreateReply(ctx context.Context, threadID uint, author Principal, req *ReplyCreateRequest) (*ReplyResponse, error)
	ListReplies(ctx context.Context, threadID uint, page PageQuery, viewer *Principal) (*ReplyListResponse, error)
	MarkSolution(ctx context.Context, replyID uint, requester Principal) (*ReplyResponse, error)

	ToggleThreadLike(ctx context.Context, threadID uint, user Principal) (*LikeResponse, error)
	ToggleReplyLike(ctx context.Context, replyID uint, user Principal) (*LikeResponse, error)
}

// ServiceManager manages all services and their dependencies
type ServiceManager interface {
	Auth() AuthService
	User() UserService
	Course() CourseService
	Content() ContentService
	Enrollment() EnrollmentService
	Exam() ExamService
	Grading() GradingService
	Gradebook() GradebookService
	Forum() ForumService
	Guard() Guard

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// AuthSettings configures token issuance and password hashing
type AuthSettings struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}
