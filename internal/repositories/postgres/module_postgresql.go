package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/cache"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type ModulePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.Manager
}

func NewModulePostgreSQL(db *gorm.DB, helpers *SharedHelpers, cacheManager *cache.Manager) repositories.ModuleRepository {
	return &ModulePostgreSQL{db: db, helpers: helpers, cacheManager: cacheManager}
}

func (m *ModulePostgreSQL) Create(ctx context.Context, tx *gorm.DB, module *models.Module) error {
	if err := getDB(ctx, m.db, tx).Create(module).Error; err != nil {
		return fmt.Errorf("failed to create module: %w", err)
	}
	m.helpers.AfterCommit(tx, func() {
		cache.InvalidateCourse(ctx, m.cacheManager, module.CourseID)
	})
	return nil
}

func (m *ModulePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Module, error) {
	var module models.Module
	if err := getDB(ctx, m.db, tx).First(&module, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	return &module, nil
}

func (m *ModulePostgreSQL) Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	module, err := m.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := getDB(ctx, m.db, tx).Model(&models.Module{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("failed to update module: %w", err)
	}
	m.helpers.AfterCommit(tx, func() {
		cache.InvalidateCourseStructure(ctx, m.cacheManager, module.CourseID)
	})
	return nil
}

// Delete removes a module with its lessons and their media
func (m *ModulePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if tx == nil {
		return m.helpers.Transaction(ctx, func(tx *gorm.DB) error {
			return m.Delete(ctx, tx, id)
		})
	}

	module, err := m.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}

	db := tx.WithContext(ctx)
	lessons := db.Model(&models.Lesson{}).Select("id").Where("module_id = ?", id)
	if err := deleteLessonChildren(db, lessons); err != nil {
		return err
	}
	if err := db.Model(&models.Exam{}).Where("module_id = ?", id).Update("module_id", nil).Error; err != nil {
		return fmt.Errorf("failed to detach exams: %w", err)
	}
	if err := db.Where("module_id = ?", id).Delete(&models.Lesson{}).Error; err != nil {
		return fmt.Errorf("failed to delete lessons: %w", err)
	}
	if err := db.Delete(&models.Module{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}

	m.helpers.AfterCommit(tx, func() {
		cache.InvalidateCourse(ctx, m.cacheManager, module.CourseID)
	})
	return nil
}

func (m *ModulePostgreSQL) ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint) ([]*repositories.ModuleSummary, error) {
	modules := make([]*repositories.ModuleSummary, 0)
	err := getDB(ctx, m.db, tx).Table("course_modules").
		Select("course_modules.*, (SELECT COUNT(*) FROM lessons l WHERE l.module_id = course_modules.id) AS lessons_count").
		Where("course_modules.course_id = ?", courseID).
		Order("course_modules.order_index ASC, course_modules.id ASC").
		Scan(&modules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return modules, nil
}

func (m *ModulePostgreSQL) CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error) {
	var count int64
	err := getDB(ctx, m.db, tx).Model(&models.Module{}).Where("course_id = ?", courseID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count modules: %w", err)
	}
	return count, nil
}

func (m *ModulePostgreSQL) NextOrderIndex(ctx context.Context, tx *gorm.DB, courseID uint) (int, error) {
	var next int
	err := getDB(ctx, m.db, tx).Model(&models.Module{}).
		Select("COALESCE(MAX(order_index), -1) + 1").
		Where("course_id = ?", courseID).
		Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute module order: %w", err)
	}
	return next, nil
}

// deleteLessonChildren removes media and progress rows of the selected lessons
func deleteLessonChildren(db *gorm.DB, lessonIDs interface{}) error {
	for _, model := range []interface{}{&models.LessonVideo{}, &models.LessonDocument{}, &models.LessonProgress{}} {
		if err := db.Where("lesson_id IN (?)", lessonIDs).Delete(model).Error; err != nil {
			return fmt.Errorf("failed to delete lesson content: %w", err)
		}
	}
	return nil
}
