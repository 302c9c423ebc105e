package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{db: db}
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.ExamSubmission) error {
	if err := getDB(ctx, s.db, tx).Omit("Answers").Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := getDB(ctx, s.db, tx).First(&submission, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := forUpdate(getDB(ctx, s.db, tx)).First(&submission, id).Error; err != nil {
		return nil, fmt.Errorf("failed to lock submission: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSubmission, error) {
	var submission models.ExamSubmission
	err := getDB(ctx, s.db, tx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&submission, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	result := getDB(ctx, s.db, tx).Model(&models.ExamSubmission{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update submission: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update submission: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *SubmissionPostgreSQL) CountAttempts(ctx context.Context, tx *gorm.DB, examID, studentID uint) (int64, error) {
	var count int64
	err := getDB(ctx, s.db, tx).Model(&models.ExamSubmission{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// List returns submissions with exam, course and student labels. Newest first
// unless OldestFirst is set.
func (s *SubmissionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]*repositories.SubmissionRow, error) {
	query := getDB(ctx, s.db, tx).Table("exam_submissions").
		Select("exam_submissions.*, exams.title AS exam_title, courses.id AS course_id, courses.title AS course_title, " +
			"TRIM(COALESCE(users.first_name, '') || ' ' || COALESCE(users.last_name, '')) AS student_name, " +
			"users.email AS student_email").
		Joins("JOIN exams ON exams.id = exam_submissions.exam_id").
		Joins("JOIN courses ON courses.id = exams.course_id").
		Joins("JOIN users ON users.id = exam_submissions.student_id")

	if filters.StudentID != nil {
		query = query.Where("exam_submissions.student_id = ?", *filters.StudentID)
	}
	if filters.CourseID != nil {
		query = query.Where("courses.id = ?", *filters.CourseID)
	}
	if filters.ExamID != nil {
		query = query.Where("exam_submissions.exam_id = ?", *filters.ExamID)
	}
	if filters.TutorID != nil {
		query = query.Where("courses.tutor_id = ?", *filters.TutorID)
	}
	if filters.Status != nil {
		query = query.Where("exam_submissions.status = ?", *filters.Status)
	}

	if filters.OldestFirst {
		query = query.Order("exam_submissions.submitted_at ASC, exam_submissions.id ASC")
	} else {
		query = query.Order("exam_submissions.submitted_at DESC, exam_submissions.id DESC")
	}

	rows := make([]*repositories.SubmissionRow, 0)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return rows, nil
}

func (s *SubmissionPostgreSQL) CreateAnswers(ctx context.Context, tx *gorm.DB, answers []*models.SubmissionAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	if err := getDB(ctx, s.db, tx).Omit("Question").Create(answers).Error; err != nil {
		return fmt.Errorf("failed to store answers: %w", err)
	}
	return nil
}

func (s *SubmissionPostgreSQL) GradeAnswer(ctx context.Context, tx *gorm.DB, answerID uint, points float64, feedback *string) error {
	err := getDB(ctx, s.db, tx).Model(&models.SubmissionAnswer{}).
		Where("id = ?", answerID).
		Updates(map[string]interface{}{
			"points_earned": points,
			"feedback":      feedback,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to grade answer: %w", err)
	}
	return nil
}

func (s *SubmissionPostgreSQL) ListAnswers(ctx context.Context, tx *gorm.DB, submissionID uint) ([]*models.SubmissionAnswer, error) {
	answers := make([]*models.SubmissionAnswer, 0)
	err := getDB(ctx, s.db, tx).
		Where("submission_id = ?", submissionID).
		Order("id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return answers, nil
}
