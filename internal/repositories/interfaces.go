package repositories

import (
	"time"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type UserFilters struct {
	Role     *models.UserRole `json:"role"`
	IsActive *bool            `json:"isActive"`
	Search   string           `json:"search"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type CourseFilters struct {
	Status      *models.CourseStatus `json:"status"`
	TutorID     *uint                `json:"tutorId"`
	ContentType *models.ContentType  `json:"contentType"`
	Search      string               `json:"search"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
	SortBy      string               `json:"sortBy"`    // "created_at", "title", "published_at"
	SortOrder   string               `json:"sortOrder"` // "asc", "desc"
}

type EnrollmentFilters struct {
	StudentID *uint                    `json:"studentId"`
	CourseID  *uint                    `json:"courseId"`
	Status    *models.EnrollmentStatus `json:"status"`
}

type SubmissionFilters struct {
	StudentID   *uint                    `json:"studentId"`
	CourseID    *uint                    `json:"courseId"`
	ExamID      *uint                    `json:"examId"`
	TutorID     *uint                    `json:"tutorId"`
	Status      *models.SubmissionStatus `json:"status"`
	OldestFirst bool                     `json:"-"`
}

type ThreadFilters struct {
	CourseID   *uint  `json:"courseId"`
	CategoryID *uint  `json:"categoryId"`
	GlobalOnly bool   `json:"globalOnly"`
	Search     string `json:"search"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

// ===== SHARED RESULT STRUCTS =====

// CourseSummary is a course row with the aggregates shown in listings.
type CourseSummary struct {
	models.Course
	TutorName        string `json:"tutorName"`
	EnrollmentsCount int64  `json:"enrollmentsCount"`
	ModulesCount     int64  `json:"modulesCount"`
}

type ModuleSummary struct {
	models.Module
	LessonsCount int64 `json:"lessonsCount"`
}

// EnrollmentRow joins an enrollment with the names shown in listings.
type EnrollmentRow struct {
	models.Enrollment
	CourseTitle  string `json:"courseTitle"`
	CourseSlug   string `json:"courseSlug"`
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
}

type LessonProgressRow struct {
	LessonID    uint       `json:"lessonId"`
	LessonTitle string     `json:"lessonTitle"`
	ModuleID    uint       `json:"moduleId"`
	ModuleTitle string     `json:"moduleTitle"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt"`
}

type EnrollmentStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Approved  int64 `json:"approved"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
}

// SubmissionRow joins a submission with exam, course and student labels.
type SubmissionRow struct {
	models.ExamSubmission
	ExamTitle    string `json:"examTitle"`
	CourseID     uint   `json:"courseId"`
	CourseTitle  string `json:"courseTitle"`
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
}

type ThreadRow struct {
	models.ForumThread
	AuthorName   string          `json:"authorName"`
	AuthorRole   models.UserRole `json:"authorRole"`
	RepliesCount int64           `json:"repliesCount"`
}

type ReplyRow struct {
	models.ForumReply
	AuthorName string          `json:"authorName"`
	AuthorRole models.UserRole `json:"authorRole"`
}

type RoleStats struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}

type UserStats struct {
	Total    int64                         `json:"total"`
	Active   int64                         `json:"active"`
	Verified int64                         `json:"verified"`
	ByRole   map[models.UserRole]RoleStats `json:"byRole"`
}

// ExternalIdentity is a user as asserted by an SSO provider.
type ExternalIdentity struct {
	Subject       string
	Email         string
	FirstName     string
	LastName      string
	AvatarURL     string
	EmailVerified bool
	Role          models.UserRole
}
