package models

import "time"

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentApproved  EnrollmentStatus = "approved"
	EnrollmentRejected  EnrollmentStatus = "rejected"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

type Enrollment struct {
	ID                 uint             `json:"id" gorm:"primaryKey"`
	StudentID          uint             `json:"studentId" gorm:"not null;uniqueIndex:idx_enrollment_student_course"`
	CourseID           uint             `json:"courseId" gorm:"not null;uniqueIndex:idx_enrollment_student_course;index"`
	Status             EnrollmentStatus `json:"status" gorm:"not null;default:pending;size:20;index"`
	ProgressPercentage float64          `json:"progressPercentage" gorm:"default:0"`

	EnrolledAt  time.Time  `json:"enrolledAt" gorm:"autoCreateTime"`
	ApprovedAt  *time.Time `json:"approvedAt"`
	ApprovedBy  *uint      `json:"approvedBy"`
	CompletedAt *time.Time `json:"completedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Relations
	Student User   `json:"-" gorm:"foreignKey:StudentID"`
	Course  Course `json:"-" gorm:"foreignKey:CourseID"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// IsActive reports whether the enrollment grants access to course content,
// exams and the course forum.
func (e *Enrollment) IsActive() bool {
	return e.Status == EnrollmentApproved || e.Status == EnrollmentCompleted
}

type LessonProgress struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	EnrollmentID uint       `json:"enrollmentId" gorm:"not null;uniqueIndex:idx_progress_enrollment_lesson"`
	LessonID     uint       `json:"lessonId" gorm:"not null;uniqueIndex:idx_progress_enrollment_lesson;index"`
	IsCompleted  bool       `json:"isCompleted" gorm:"default:false"`
	CompletedAt  *time.Time `json:"completedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}
