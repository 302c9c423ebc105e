package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	guard     Guard
	publisher events.EventPublisher
}

func NewGradingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, guard Guard, publisher events.EventPublisher) GradingService {
	return &gradingService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		guard:     guard,
		publisher: publisher,
	}
}

// Grade applies manual points and recomputes the score over every answer.
// Ungraded answers count as 0.
func (s *gradingService) Grade(ctx context.Context, submissionID uint, tutor Principal, req *GradeSubmissionRequest) (*models.ExamSubmission, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		submission *models.ExamSubmission
		payload    events.SubmissionPayload
	)
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		submission, err = s.repo.Submission().GetForUpdate(ctx, tx, submissionID)
		if err != nil {
			return notFound(err, ErrSubmissionNotFound, submissionID, "failed to get submission")
		}
		exam, err := s.repo.Exam().GetWithQuestions(ctx, tx, submission.ExamID)
		if err != nil {
			return notFound(err, ErrExamNotFound, submission.ExamID, "failed to get exam")
		}
		course, err := getCourse(ctx, s.repo, tx, exam.CourseID)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, tutor, ActionGradeSubmission, course); err != nil {
			return err
		}

		answers, err := s.repo.Submission().ListAnswers(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		if err := applyGrades(answers, exam.Questions, req.Answers); err != nil {
			return err
		}
		for _, g := range req.Answers {
			if err := s.repo.Submission().GradeAnswer(ctx, tx, g.AnswerID, *g.PointsEarned, g.Feedback); err != nil {
				return err
			}
		}

		earned := 0.0
		for _, a := range answers {
			if a.PointsEarned != nil {
				earned += *a.PointsEarned
			}
		}
		score := percentage(earned, float64(examTotalPoints(exam.Questions)))
		passed := score >= float64(exam.PassingScore)
		now := nowUTC()

		fields := map[string]interface{}{
			"status":    models.SubmissionGraded,
			"score":     score,
			"passed":    passed,
			"graded_at": now,
			"graded_by": tutor.UserID,
		}
		if req.OverallFeedback != nil {
			fields["feedback"] = *req.OverallFeedback
			submission.Feedback = req.OverallFeedback
		}
		if err := s.repo.Submission().Update(ctx, tx, submissionID, fields); err != nil {
			return err
		}

		submission.Status = models.SubmissionGraded
		submission.Score = &score
		submission.Passed = &passed
		submission.GradedAt = &now
		submission.GradedBy = &tutor.UserID
		submission.Answers = make([]models.SubmissionAnswer, 0, len(answers))
		for _, a := range answers {
			submission.Answers = append(submission.Answers, *a)
		}

		payload, err = submissionPayload(ctx, s.repo, tx, submission, exam)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Submission graded",
		"submission_id", submissionID,
		"tutor_id", tutor.UserID,
		"score", *submission.Score)

	publish(ctx, s.publisher, s.logger, events.SubmissionGraded, payload)
	return submission, nil
}

// GetSubmission is visible to the student who submitted it and the course tutor
func (s *gradingService) GetSubmission(ctx context.Context, submissionID uint, requester Principal) (*models.ExamSubmission, error) {
	submission, err := s.repo.Submission().GetWithAnswers(ctx, nil, submissionID)
	if err != nil {
		return nil, notFound(err, ErrSubmissionNotFound, submissionID, "failed to get submission")
	}
	if requester.UserID == submission.StudentID {
		return submission, nil
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, submission.ExamID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, submission.ExamID, "failed to get exam")
	}
	course, err := getCourse(ctx, s.repo, nil, exam.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, nil, requester, ActionGradeSubmission, course); err != nil {
		return nil, err
	}
	return submission, nil
}

func (s *gradingService) ListStudentSubmissions(ctx context.Context, student Principal, courseID *uint) ([]*repositories.SubmissionRow, error) {
	return s.repo.Submission().List(ctx, nil, repositories.SubmissionFilters{
		StudentID: &student.UserID,
		CourseID:  courseID,
	})
}

// ListPendingGrading returns the tutor's queue, oldest submission first
func (s *gradingService) ListPendingGrading(ctx context.Context, tutor Principal) ([]*repositories.SubmissionRow, error) {
	pending := models.SubmissionPending
	return s.repo.Submission().List(ctx, nil, repositories.SubmissionFilters{
		TutorID:     &tutor.UserID,
		Status:      &pending,
		OldestFirst: true,
	})
}

// applyGrades checks every grade against the submission and question points,
// then writes points and feedback onto answers in place. Only open-ended
// answers can be graded by hand.
func applyGrades(answers []*models.SubmissionAnswer, questions []models.Question, grades []validator.GradeAnswerRequest) error {
	byAnswer := make(map[uint]*models.SubmissionAnswer, len(answers))
	for _, a := range answers {
		byAnswer[a.ID] = a
	}
	byQuestion := make(map[uint]models.Question, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = q
	}

	for i, g := range grades {
		answer, ok := byAnswer[g.AnswerID]
		if !ok {
			return validator.NewValidationError(fmt.Sprintf("answers[%d].answerId", i),
				"answer does not belong to this submission", g.AnswerID)
		}
		question := byQuestion[answer.QuestionID]
		if !question.QuestionType.IsOpenEnded() {
			return validator.NewValidationError(fmt.Sprintf("answers[%d].answerId", i),
				"multiple choice answers are graded automatically", g.AnswerID)
		}
		maxPoints := float64(question.Points)
		if *g.PointsEarned < 0 || *g.PointsEarned > maxPoints {
			return validator.NewValidationError(fmt.Sprintf("answers[%d].pointsEarned", i),
				fmt.Sprintf("points must be between 0 and %g", maxPoints), *g.PointsEarned)
		}
		answer.PointsEarned = g.PointsEarned
		answer.Feedback = g.Feedback
	}
	return nil
}
