package validator

import (
	"time"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

// PageQuery is embedded by list queries
type PageQuery struct {
	Page  int `json:"page" form:"page" validate:"omitempty,min=1"`
	Limit int `json:"limit" form:"limit" validate:"omitempty,min=1,max=100"`
}

// Normalize applies defaults and returns limit and offset
func (p PageQuery) Normalize(defaultLimit int) (page, limit, offset int) {
	page, limit = p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}

// ===== AUTH =====

type RegisterRequest struct {
	Email     string          `json:"email" validate:"required,email,max=255"`
	Password  string          `json:"password" validate:"required,password_strength"`
	FirstName string          `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string          `json:"lastName" validate:"required,min=1,max=100"`
	Role      models.UserRole `json:"role" validate:"omitempty,oneof=student tutor"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,password_strength"`
}

type CasdoorLoginRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state"`
}

// ===== USERS =====

type UserListQuery struct {
	PageQuery
	Role     string `json:"role" form:"role" validate:"omitempty,user_role"`
	IsActive *bool  `json:"isActive" form:"isActive"`
	Search   string `json:"search" form:"search" validate:"omitempty,max=100"`
}

type UserCreateRequest struct {
	Email     string          `json:"email" validate:"required,email,max=255"`
	Password  string          `json:"password" validate:"required,password_strength"`
	FirstName string          `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string          `json:"lastName" validate:"required,min=1,max=100"`
	Role      models.UserRole `json:"role" validate:"required,oneof=student tutor"`
}

type UserUpdateRequest struct {
	Email     *string          `json:"email" validate:"omitempty,email,max=255"`
	Password  *string          `json:"password" validate:"omitempty,password_strength"`
	FirstName *string          `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string          `json:"lastName" validate:"omitempty,min=1,max=100"`
	Role      *models.UserRole `json:"role" validate:"omitempty,user_role"`
	AvatarURL *string          `json:"avatarUrl" validate:"omitempty,url,max=500"`
	Bio       *string          `json:"bio" validate:"omitempty,max=2000"`
	IsActive  *bool            `json:"isActive"`
}

type UserStatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// ===== COURSES =====

type CourseListQuery struct {
	PageQuery
	Status      string `json:"status" form:"status" validate:"omitempty,oneof=draft published archived"`
	TutorID     *uint  `json:"tutorId" form:"tutorId"`
	ContentType string `json:"contentType" form:"contentType" validate:"omitempty,content_type"`
	Search      string `json:"search" form:"search" validate:"omitempty,max=100"`
	SortBy      string `json:"sortBy" form:"sortBy" validate:"omitempty,oneof=created_at title published_at"`
	SortOrder   string `json:"sortOrder" form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

type CourseCreateRequest struct {
	Title                 string             `json:"title" validate:"required,course_title"`
	Description           string             `json:"description" validate:"omitempty,max=5000"`
	ThumbnailURL          *string            `json:"thumbnailUrl" validate:"omitempty,url,max=500"`
	ContentType           models.ContentType `json:"contentType" validate:"required,content_type"`
	Level                 models.CourseLevel `json:"level" validate:"omitempty,course_level"`
	Language              string             `json:"language" validate:"omitempty,min=2,max=10"`
	DurationHours         int                `json:"durationHours" validate:"omitempty,min=0,max=10000"`
	Tags                  []string           `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
	MaxStudents           *int               `json:"maxStudents" validate:"omitempty,min=1"`
	EnrollmentAutoApprove bool               `json:"enrollmentAutoApprove"`
}

type CourseUpdateRequest struct {
	Title                 *string             `json:"title" validate:"omitempty,course_title"`
	Description           *string             `json:"description" validate:"omitempty,max=5000"`
	ThumbnailURL          *string             `json:"thumbnailUrl" validate:"omitempty,url,max=500"`
	ContentType           *models.ContentType `json:"contentType" validate:"omitempty,content_type"`
	Level                 *models.CourseLevel `json:"level" validate:"omitempty,course_level"`
	Language              *string             `json:"language" validate:"omitempty,min=2,max=10"`
	DurationHours         *int                `json:"durationHours" validate:"omitempty,min=0,max=10000"`
	Tags                  []string            `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
	MaxStudents           *int                `json:"maxStudents" validate:"omitempty,min=1"`
	EnrollmentAutoApprove *bool               `json:"enrollmentAutoApprove"`
}

type ModuleCreateRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	OrderIndex  *int   `json:"orderIndex" validate:"omitempty,min=0"`
	IsPublished *bool  `json:"isPublished"`
}

type ModuleUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	OrderIndex  *int    `json:"orderIndex" validate:"omitempty,min=0"`
	IsPublished *bool   `json:"isPublished"`
}

type LessonCreateRequest struct {
	Title           string `json:"title" validate:"required,min=1,max=200"`
	Content         string `json:"content" validate:"omitempty,max=100000"`
	OrderIndex      *int   `json:"orderIndex" validate:"omitempty,min=0"`
	DurationMinutes int    `json:"durationMinutes" validate:"omitempty,min=0,max=10000"`
	IsFree          bool   `json:"isFree"`
}

type LessonUpdateRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Content         *string `json:"content" validate:"omitempty,max=100000"`
	OrderIndex      *int    `json:"orderIndex" validate:"omitempty,min=0"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,min=0,max=10000"`
	IsFree          *bool   `json:"isFree"`
}

type VideoCreateRequest struct {
	Title           string  `json:"title" validate:"omitempty,max=200"`
	VideoURL        string  `json:"videoUrl" validate:"required,url,max=500"`
	ThumbnailURL    *string `json:"thumbnailUrl" validate:"omitempty,url,max=500"`
	DurationSeconds int     `json:"durationSeconds" validate:"omitempty,min=0"`
	SizeBytes       int64   `json:"sizeBytes" validate:"omitempty,min=0"`
}

type DocumentCreateRequest struct {
	Title     string  `json:"title" validate:"required,min=1,max=200"`
	FileURL   string  `json:"fileUrl" validate:"required,url,max=500"`
	FileType  *string `json:"fileType" validate:"omitempty,max=50"`
	SizeBytes int64   `json:"sizeBytes" validate:"omitempty,min=0"`
}

// ===== ENROLLMENTS =====

type EnrollmentCreateRequest struct {
	CourseID uint `json:"courseId" validate:"required"`
}

type EnrollmentListQuery struct {
	Status string `json:"status" form:"status" validate:"omitempty,enrollment_status"`
}

// ===== EXAMS =====

type ExamCreateRequest struct {
	ModuleID        *uint      `json:"moduleId"`
	Title           string     `json:"title" validate:"required,min=1,max=200"`
	Description     string     `json:"description" validate:"omitempty,max=5000"`
	DurationMinutes *int       `json:"durationMinutes" validate:"omitempty,min=1,max=600"`
	PassingScore    *int       `json:"passingScore" validate:"omitempty,min=0,max=100"`
	MaxAttempts     *int       `json:"maxAttempts" validate:"omitempty,min=1,max=20"`
	AvailableFrom   *time.Time `json:"availableFrom"`
	AvailableUntil  *time.Time `json:"availableUntil"`
}

type OptionCreateRequest struct {
	OptionText string `json:"optionText" validate:"required,min=1,max=1000"`
	IsCorrect  bool   `json:"isCorrect"`
}

type QuestionCreateRequest struct {
	QuestionText string                `json:"questionText" validate:"required,min=1,max=5000"`
	QuestionType models.QuestionType   `json:"questionType" validate:"required,question_type"`
	Points       int                   `json:"points" validate:"required,min=1,max=1000"`
	OrderIndex   *int                  `json:"orderIndex" validate:"omitempty,min=0"`
	Options      []OptionCreateRequest `json:"options" validate:"omitempty,max=10,dive"`
}

type AnswerRequest struct {
	QuestionID       uint    `json:"questionId" validate:"required"`
	SelectedOptionID *uint   `json:"selectedOptionId"`
	AnswerText       *string `json:"answerText" validate:"omitempty,max=20000"`
}

type SubmitExamRequest struct {
	Answers []AnswerRequest `json:"answers" validate:"omitempty,dive"`
}

type GradeAnswerRequest struct {
	AnswerID     uint     `json:"answerId" validate:"required"`
	PointsEarned *float64 `json:"pointsEarned" validate:"required,min=0"`
	Feedback     *string  `json:"feedback" validate:"omitempty,max=5000"`
}

type GradeSubmissionRequest struct {
	Answers         []GradeAnswerRequest `json:"answers" validate:"required,min=1,dive"`
	OverallFeedback *string              `json:"overallFeedback" validate:"omitempty,max=10000"`
}

type SubmissionListQuery struct {
	CourseID *uint `json:"courseId" form:"courseId"`
}

// ===== FORUM =====

type CategoryCreateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	OrderIndex  int    `json:"orderIndex" validate:"omitempty,min=0"`
}

type ThreadListQuery struct {
	PageQuery
	CourseID   *uint  `json:"courseId" form:"courseId"`
	CategoryID *uint  `json:"categoryId" form:"categoryId"`
	Search     string `json:"search" form:"search" validate:"omitempty,max=100"`
}

type ThreadCreateRequest struct {
	CourseID   *uint  `json:"courseId"`
	CategoryID *uint  `json:"categoryId"`
	Title      string `json:"title" validate:"required,min=3,max=200"`
	Content    string `json:"content" validate:"required,min=1,max=20000"`
}

type ReplyCreateRequest struct {
	Content string `json:"content" validate:"required,min=1,max=20000"`
}
