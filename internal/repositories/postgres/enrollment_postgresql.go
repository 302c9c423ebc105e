package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/learning-service/internal/cache"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type EnrollmentPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.Manager
}

func NewEnrollmentPostgreSQL(db *gorm.DB, helpers *SharedHelpers, cacheManager *cache.Manager) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{db: db, helpers: helpers, cacheManager: cacheManager}
}

// Create inserts an enrollment. A concurrent duplicate surfaces as gorm.ErrDuplicatedKey.
func (e *EnrollmentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) error {
	if err := getDB(ctx, e.db, tx).Create(enrollment).Error; err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	e.helpers.AfterCommit(tx, func() {
		cache.SafeDelete(ctx, e.cacheManager.Course, cache.CourseDetailKey(enrollment.CourseID))
	})
	return nil
}

func (e *EnrollmentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := getDB(ctx, e.db, tx).First(&enrollment, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &enrollment, nil
}

func (e *EnrollmentPostgreSQL) GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := forUpdate(getDB(ctx, e.db, tx)).First(&enrollment, id).Error; err != nil {
		return nil, fmt.Errorf("failed to lock enrollment: %w", err)
	}
	return &enrollment, nil
}

func (e *EnrollmentPostgreSQL) GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := getDB(ctx, e.db, tx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &enrollment, nil
}

func (e *EnrollmentPostgreSQL) Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	enrollment, err := e.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := getDB(ctx, e.db, tx).Model(&models.Enrollment{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if _, ok := fields["status"]; ok {
		e.helpers.AfterCommit(tx, func() {
			cache.SafeDelete(ctx, e.cacheManager.Course, cache.CourseDetailKey(enrollment.CourseID))
			cache.SafeInvalidatePattern(ctx, e.cacheManager.Catalog, "*")
		})
	}
	return nil
}

func (e *EnrollmentPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.EnrollmentFilters) ([]*repositories.EnrollmentRow, error) {
	query := getDB(ctx, e.db, tx).Table("enrollments").
		Select("enrollments.*, courses.title AS course_title, courses.slug AS course_slug, " +
			"TRIM(COALESCE(users.first_name, '') || ' ' || COALESCE(users.last_name, '')) AS student_name, " +
			"users.email AS student_email").
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Joins("JOIN users ON users.id = enrollments.student_id")

	if filters.StudentID != nil {
		query = query.Where("enrollments.student_id = ?", *filters.StudentID)
	}
	if filters.CourseID != nil {
		query = query.Where("enrollments.course_id = ?", *filters.CourseID)
	}
	if filters.Status != nil {
		query = query.Where("enrollments.status = ?", *filters.Status)
	}

	rows := make([]*repositories.EnrollmentRow, 0)
	if err := query.Order("enrollments.enrolled_at DESC, enrollments.id DESC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return rows, nil
}

func (e *EnrollmentPostgreSQL) CountByStatus(ctx context.Context, tx *gorm.DB, courseID uint, statuses ...models.EnrollmentStatus) (int64, error) {
	var count int64
	query := getDB(ctx, e.db, tx).Model(&models.Enrollment{}).Where("course_id = ?", courseID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return count, nil
}

func (e *EnrollmentPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, courseID uint) (*repositories.EnrollmentStats, error) {
	var rows []struct {
		Status models.EnrollmentStatus
		Count  int64
	}
	err := getDB(ctx, e.db, tx).Model(&models.Enrollment{}).
		Select("status, COUNT(*) AS count").
		Where("course_id = ?", courseID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment stats: %w", err)
	}

	stats := &repositories.EnrollmentStats{}
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case models.EnrollmentPending:
			stats.Pending = r.Count
		case models.EnrollmentApproved:
			stats.Approved = r.Count
		case models.EnrollmentRejected:
			stats.Rejected = r.Count
		case models.EnrollmentCompleted:
			stats.Completed = r.Count
		}
	}
	return stats, nil
}

// UpsertLessonCompleted marks a lesson completed, idempotently on (enrollment_id, lesson_id)
func (e *EnrollmentPostgreSQL) UpsertLessonCompleted(ctx context.Context, tx *gorm.DB, enrollmentID, lessonID uint, at time.Time) error {
	progress := models.LessonProgress{
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
		IsCompleted:  true,
		CompletedAt:  &at,
	}
	err := getDB(ctx, e.db, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "enrollment_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
			"updated_at":   at,
		}),
	}).Create(&progress).Error
	if err != nil {
		return fmt.Errorf("failed to upsert lesson progress: %w", err)
	}
	return nil
}

// CountCompletedLessons counts completed lessons that still belong to the course
func (e *EnrollmentPostgreSQL) CountCompletedLessons(ctx context.Context, tx *gorm.DB, enrollmentID, courseID uint) (int64, error) {
	var count int64
	err := getDB(ctx, e.db, tx).Table("lesson_progress").
		Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id").
		Where("lesson_progress.enrollment_id = ? AND lesson_progress.is_completed = ? AND course_modules.course_id = ?",
			enrollmentID, true, courseID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	return count, nil
}

// ListProgress returns one row per lesson of the course, in course order
func (e *EnrollmentPostgreSQL) ListProgress(ctx context.Context, tx *gorm.DB, enrollmentID, courseID uint) ([]*repositories.LessonProgressRow, error) {
	rows := make([]*repositories.LessonProgressRow, 0)
	err := getDB(ctx, e.db, tx).Table("lessons").
		Select("lessons.id AS lesson_id, lessons.title AS lesson_title, " +
			"course_modules.id AS module_id, course_modules.title AS module_title, " +
			"COALESCE(lesson_progress.is_completed, false) AS is_completed, lesson_progress.completed_at AS completed_at").
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id").
		Joins("LEFT JOIN lesson_progress ON lesson_progress.lesson_id = lessons.id AND lesson_progress.enrollment_id = ?", enrollmentID).
		Where("course_modules.course_id = ?", courseID).
		Order("course_modules.order_index ASC, course_modules.id ASC, lessons.order_index ASC, lessons.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}
	return rows, nil
}
