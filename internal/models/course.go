package models

import (
	"time"

	"gorm.io/datatypes"
)

type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
	CourseArchived  CourseStatus = "archived"
)

type ContentType string

const (
	ContentVideo    ContentType = "video"
	ContentDocument ContentType = "document"
	ContentMixed    ContentType = "mixed"
)

type CourseLevel string

const (
	LevelBeginner     CourseLevel = "beginner"
	LevelIntermediate CourseLevel = "intermediate"
	LevelAdvanced     CourseLevel = "advanced"
)

type Course struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	TutorID      uint         `json:"tutorId" gorm:"not null;index"`
	Title        string       `json:"title" gorm:"not null;size:200"`
	Slug         string       `json:"slug" gorm:"uniqueIndex;not null;size:220"`
	Description  string       `json:"description" gorm:"type:text"`
	ThumbnailURL *string      `json:"thumbnailUrl" gorm:"size:500"`
	ContentType  ContentType  `json:"contentType" gorm:"not null;size:20"`
	Status       CourseStatus `json:"status" gorm:"default:draft;size:20;index"`

	// Catalog info
	Level         CourseLevel    `json:"level" gorm:"default:beginner;size:20"`
	Language      string         `json:"language" gorm:"default:es;size:10"`
	DurationHours int            `json:"durationHours" gorm:"default:0"`
	Tags          datatypes.JSON `json:"tags" gorm:"type:jsonb"`

	// Enrollment settings
	MaxStudents           *int `json:"maxStudents"`
	EnrollmentAutoApprove bool `json:"enrollmentAutoApprove" gorm:"default:false"`

	PublishedAt *time.Time `json:"publishedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Relations
	Tutor   User     `json:"-" gorm:"foreignKey:TutorID"`
	Modules []Module `json:"modules,omitempty" gorm:"foreignKey:CourseID"`
}

func (Course) TableName() string {
	return "courses"
}

func (c *Course) IsOwnedBy(userID uint) bool {
	return c.TutorID == userID
}

type Module struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CourseID    uint      `json:"courseId" gorm:"not null;index"`
	Title       string    `json:"title" gorm:"not null;size:200"`
	Description string    `json:"description" gorm:"type:text"`
	OrderIndex  int       `json:"orderIndex" gorm:"not null;default:0"`
	IsPublished bool      `json:"isPublished" gorm:"default:false"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Lessons []Lesson `json:"lessons,omitempty" gorm:"foreignKey:ModuleID"`
}

func (Module) TableName() string {
	return "course_modules"
}

type Lesson struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	ModuleID        uint      `json:"moduleId" gorm:"not null;index"`
	Title           string    `json:"title" gorm:"not null;size:200"`
	Content         string    `json:"content" gorm:"type:text"`
	OrderIndex      int       `json:"orderIndex" gorm:"not null;default:0"`
	DurationMinutes int       `json:"durationMinutes" gorm:"default:0"`
	IsFree          bool      `json:"isFree" gorm:"default:false"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Videos    []LessonVideo    `json:"videos" gorm:"foreignKey:LessonID"`
	Documents []LessonDocument `json:"documents" gorm:"foreignKey:LessonID"`
}

func (Lesson) TableName() string {
	return "lessons"
}

type LessonVideo struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	LessonID        uint      `json:"lessonId" gorm:"not null;index"`
	Title           string    `json:"title" gorm:"size:200"`
	VideoURL        string    `json:"videoUrl" gorm:"not null;size:500"`
	ThumbnailURL    *string   `json:"thumbnailUrl" gorm:"size:500"`
	DurationSeconds int       `json:"durationSeconds" gorm:"default:0"`
	SizeBytes       int64     `json:"sizeBytes" gorm:"default:0"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (LessonVideo) TableName() string {
	return "lesson_videos"
}

type LessonDocument struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	LessonID  uint      `json:"lessonId" gorm:"not null;index"`
	Title     string    `json:"title" gorm:"not null;size:200"`
	FileURL   string    `json:"fileUrl" gorm:"not null;size:500"`
	FileType  *string   `json:"fileType" gorm:"size:50"`
	SizeBytes int64     `json:"sizeBytes" gorm:"default:0"`
	CreatedAt time.Time `json:"createdAt"`
}

func (LessonDocument) TableName() string {
	return "lesson_documents"
}
