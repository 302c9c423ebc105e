package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/cache"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type LessonPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.Manager
}

func NewLessonPostgreSQL(db *gorm.DB, helpers *SharedHelpers, cacheManager *cache.Manager) repositories.LessonRepository {
	return &LessonPostgreSQL{db: db, helpers: helpers, cacheManager: cacheManager}
}

func (l *LessonPostgreSQL) invalidate(ctx context.Context, tx *gorm.DB, lessonID uint) {
	if courseID, err := l.CourseIDOf(ctx, tx, lessonID); err == nil {
		l.invalidateCourse(ctx, tx, courseID)
	}
}

func (l *LessonPostgreSQL) invalidateCourse(ctx context.Context, tx *gorm.DB, courseID uint) {
	l.helpers.AfterCommit(tx, func() {
		cache.InvalidateCourseStructure(ctx, l.cacheManager, courseID)
	})
}

func (l *LessonPostgreSQL) Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error {
	if err := getDB(ctx, l.db, tx).Omit("Videos", "Documents").Create(lesson).Error; err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}
	l.invalidate(ctx, tx, lesson.ID)
	return nil
}

func (l *LessonPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := getDB(ctx, l.db, tx).First(&lesson, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return &lesson, nil
}

func (l *LessonPostgreSQL) GetWithContent(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	err := getDB(ctx, l.db, tx).
		Preload("Videos", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&lesson, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return &lesson, nil
}

func (l *LessonPostgreSQL) Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	result := getDB(ctx, l.db, tx).Model(&models.Lesson{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update lesson: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update lesson: %w", gorm.ErrRecordNotFound)
	}
	l.invalidate(ctx, tx, id)
	return nil
}

func (l *LessonPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if tx == nil {
		return l.helpers.Transaction(ctx, func(tx *gorm.DB) error {
			return l.Delete(ctx, tx, id)
		})
	}

	courseID, err := l.CourseIDOf(ctx, tx, id)
	if err != nil {
		return err
	}

	db := tx.WithContext(ctx)
	if err := deleteLessonChildren(db, []uint{id}); err != nil {
		return err
	}
	if err := db.Delete(&models.Lesson{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete lesson: %w", err)
	}

	l.invalidateCourse(ctx, tx, courseID)
	return nil
}

func (l *LessonPostgreSQL) ListByModule(ctx context.Context, tx *gorm.DB, moduleID uint) ([]*models.Lesson, error) {
	lessons := make([]*models.Lesson, 0)
	err := getDB(ctx, l.db, tx).
		Where("module_id = ?", moduleID).
		Order("order_index ASC, id ASC").
		Find(&lessons).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	return lessons, nil
}

// CourseIDOf resolves the course a lesson belongs to through its module
func (l *LessonPostgreSQL) CourseIDOf(ctx context.Context, tx *gorm.DB, lessonID uint) (uint, error) {
	var ids []uint
	err := getDB(ctx, l.db, tx).Table("lessons").
		Select("course_modules.course_id").
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id").
		Where("lessons.id = ?", lessonID).
		Limit(1).
		Pluck("course_modules.course_id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to resolve lesson course: %w", err)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("failed to resolve lesson course: %w", gorm.ErrRecordNotFound)
	}
	return ids[0], nil
}

func (l *LessonPostgreSQL) CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error) {
	var count int64
	err := getDB(ctx, l.db, tx).Table("lessons").
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id").
		Where("course_modules.course_id = ?", courseID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count lessons: %w", err)
	}
	return count, nil
}

func (l *LessonPostgreSQL) NextOrderIndex(ctx context.Context, tx *gorm.DB, moduleID uint) (int, error) {
	var next int
	err := getDB(ctx, l.db, tx).Model(&models.Lesson{}).
		Select("COALESCE(MAX(order_index), -1) + 1").
		Where("module_id = ?", moduleID).
		Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute lesson order: %w", err)
	}
	return next, nil
}

func (l *LessonPostgreSQL) AddVideo(ctx context.Context, tx *gorm.DB, video *models.LessonVideo) error {
	if err := getDB(ctx, l.db, tx).Create(video).Error; err != nil {
		return fmt.Errorf("failed to add video: %w", err)
	}
	l.invalidate(ctx, tx, video.LessonID)
	return nil
}

func (l *LessonPostgreSQL) AddDocument(ctx context.Context, tx *gorm.DB, doc *models.LessonDocument) error {
	if err := getDB(ctx, l.db, tx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	l.invalidate(ctx, tx, doc.LessonID)
	return nil
}
