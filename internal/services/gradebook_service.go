package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gosimple/slug"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetSubmissions = "Submissions"
	sheetSummary     = "Summary"
	timeLayout       = "2006-01-02 15:04:05"
)

var submissionHeaders = []interface{}{
	"Student", "Email", "Attempt", "Status", "Score", "Passed", "Submitted At", "Graded At",
}

type gradebookService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
	guard  Guard
}

func NewGradebookService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, guard Guard) GradebookService {
	return &gradebookService{
		repo:   repo,
		db:     db,
		logger: logger,
		guard:  guard,
	}
}

// Export renders every submission of the exam as an XLSX workbook
func (s *gradebookService) Export(ctx context.Context, examID uint, tutor Principal) (*GradebookFile, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, examID, "failed to get exam")
	}
	course, err := getCourse(ctx, s.repo, nil, exam.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, nil, tutor, ActionManageCourse, course); err != nil {
		return nil, err
	}

	rows, err := s.repo.Submission().List(ctx, nil, repositories.SubmissionFilters{
		ExamID:      &examID,
		OldestFirst: true,
	})
	if err != nil {
		return nil, err
	}

	content, err := renderGradebook(exam, course, rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Gradebook exported", "exam_id", examID, "submissions", len(rows))
	return &GradebookFile{
		Filename:    fmt.Sprintf("gradebook-%s-%d.xlsx", slug.Make(exam.Title), exam.ID),
		ContentType: xlsxContentType,
		Content:     content,
	}, nil
}

func renderGradebook(exam *models.Exam, course *models.Course, rows []*repositories.SubmissionRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSubmissions); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetRow(sheetSubmissions, "A1", &submissionHeaders); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetSubmissions, "A1", "H1", bold); err != nil {
		return nil, err
	}

	var (
		graded, passed int
		scoreSum       float64
	)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{
			row.StudentName,
			row.StudentEmail,
			row.AttemptNumber,
			string(row.Status),
			optionalFloat(row.Score),
			optionalBool(row.Passed),
			optionalTime(row.SubmittedAt),
			optionalTime(row.GradedAt),
		}
		if err := f.SetSheetRow(sheetSubmissions, cell, &values); err != nil {
			return nil, err
		}

		if row.Status == models.SubmissionGraded && row.Score != nil {
			graded++
			scoreSum += *row.Score
			if row.Passed != nil && *row.Passed {
				passed++
			}
		}
	}
	if err := f.SetColWidth(sheetSubmissions, "A", "B", 28); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetSubmissions, "G", "H", 20); err != nil {
		return nil, err
	}

	average, passRate := 0.0, 0.0
	if graded > 0 {
		average = scoreSum / float64(graded)
		passRate = float64(passed) / float64(graded) * 100
	}
	summary := [][]interface{}{
		{"Course", course.Title},
		{"Exam", exam.Title},
		{"Passing Score", exam.PassingScore},
		{"Submissions", len(rows)},
		{"Graded", graded},
		{"Pending", len(rows) - graded},
		{"Average Score", average},
		{"Pass Rate (%)", passRate},
	}
	for i, line := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &line); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheetSummary, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetSummary, "A", "B", 24); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func optionalBool(v *bool) interface{} {
	if v == nil {
		return ""
	}
	if *v {
		return "yes"
	}
	return "no"
}

func optionalTime(v *time.Time) interface{} {
	if v == nil {
		return ""
	}
	return v.UTC().Format(timeLayout)
}
