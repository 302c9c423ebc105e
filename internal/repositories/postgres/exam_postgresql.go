package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db *gorm.DB
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{db: db}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := getDB(ctx, e.db, tx).Omit("Questions").Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	return nil
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := getDB(ctx, e.db, tx).First(&exam, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := forUpdate(getDB(ctx, e.db, tx)).First(&exam, id).Error; err != nil {
		return nil, fmt.Errorf("failed to lock exam: %w", err)
	}
	return &exam, nil
}

// GetWithQuestions preloads questions and options in display order
func (e *ExamPostgreSQL) GetWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := getDB(ctx, e.db, tx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		First(&exam, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	result := getDB(ctx, e.db, tx).Model(&models.Exam{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update exam: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

func (e *ExamPostgreSQL) ListByCourse(ctx context.Context, tx *gorm.DB, courseID uint, publishedOnly bool) ([]*models.Exam, error) {
	query := getDB(ctx, e.db, tx).Where("course_id = ?", courseID)
	if publishedOnly {
		query = query.Where("status = ?", models.ExamPublished)
	}

	exams := make([]*models.Exam, 0)
	if err := query.Order("created_at ASC, id ASC").Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, nil
}

// CloseExpired moves published exams whose window ended before now to closed
func (e *ExamPostgreSQL) CloseExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	result := getDB(ctx, e.db, tx).Model(&models.Exam{}).
		Where("status = ? AND available_until IS NOT NULL AND available_until < ?", models.ExamPublished, now).
		Updates(map[string]interface{}{"status": models.ExamClosed, "updated_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to close expired exams: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// AddQuestion stores a question with its options in one statement batch
func (e *ExamPostgreSQL) AddQuestion(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := getDB(ctx, e.db, tx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to add question: %w", err)
	}
	return nil
}

func (e *ExamPostgreSQL) CountQuestions(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	var count int64
	if err := getDB(ctx, e.db, tx).Model(&models.Question{}).Where("exam_id = ?", examID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// TotalPoints sums the points of every question of the exam
func (e *ExamPostgreSQL) TotalPoints(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	var total int64
	err := getDB(ctx, e.db, tx).Model(&models.Question{}).
		Select("COALESCE(SUM(points), 0)").
		Where("exam_id = ?", examID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum question points: %w", err)
	}
	return total, nil
}
