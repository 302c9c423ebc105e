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

const (
	defaultExamDuration     = 60
	defaultExamPassingScore = 70
	defaultExamMaxAttempts  = 1
)

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	guard     Guard
	publisher events.EventPublisher
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, guard Guard, publisher events.EventPublisher) ExamService {
	return &examService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		guard:     guard,
		publisher: publisher,
	}
}

// ===== AUTHORING =====

func (s *examService) Create(ctx context.Context, courseID uint, tutor Principal, req *ExamCreateRequest) (*models.Exam, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateExamWindow(req); err != nil {
		return nil, err
	}

	exam := &models.Exam{
		CourseID:        courseID,
		ModuleID:        req.ModuleID,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: defaultExamDuration,
		PassingScore:    defaultExamPassingScore,
		MaxAttempts:     defaultExamMaxAttempts,
		AvailableFrom:   req.AvailableFrom,
		AvailableUntil:  req.AvailableUntil,
		Status:          models.ExamDraft,
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.PassingScore != nil {
		exam.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		exam.MaxAttempts = *req.MaxAttempts
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		course, err := getCourse(ctx, s.repo, tx, courseID)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, tutor, ActionManageCourse, course); err != nil {
			return err
		}

		if req.ModuleID != nil {
			module, err := s.repo.Module().GetByID(ctx, tx, *req.ModuleID)
			if err != nil && !repositories.IsNotFoundError(err) {
				return err
			}
			if err != nil || module.CourseID != courseID {
				return validator.NewValidationError("moduleId", "module does not belong to this course", *req.ModuleID)
			}
		}
		return s.repo.Exam().Create(ctx, tx, exam)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam created", "exam_id", exam.ID, "course_id", courseID)
	return exam, nil
}

func (s *examService) AddQuestion(ctx context.Context, examID uint, tutor Principal, req *QuestionCreateRequest) (*models.Question, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateQuestion(req); err != nil {
		return nil, err
	}

	question := &models.Question{
		ExamID:       examID,
		QuestionText: req.QuestionText,
		QuestionType: req.QuestionType,
		Points:       req.Points,
	}
	for i, opt := range req.Options {
		question.Options = append(question.Options, models.QuestionOption{
			OptionText: opt.OptionText,
			IsCorrect:  opt.IsCorrect,
			OrderIndex: i,
		})
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		exam, err := s.repo.Exam().GetForUpdate(ctx, tx, examID)
		if err != nil {
			return notFound(err, ErrExamNotFound, examID, "failed to get exam")
		}
		if err := s.authorizeExam(ctx, tx, exam, tutor); err != nil {
			return err
		}
		if exam.Status != models.ExamDraft {
			return ErrExamNotDraft
		}

		if req.OrderIndex != nil {
			question.OrderIndex = *req.OrderIndex
		} else {
			count, err := s.repo.Exam().CountQuestions(ctx, tx, examID)
			if err != nil {
				return err
			}
			question.OrderIndex = int(count)
		}
		return s.repo.Exam().AddQuestion(ctx, tx, question)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Question added", "exam_id", examID, "question_id", question.ID, "type", question.QuestionType)
	return question, nil
}

func (s *examService) Publish(ctx context.Context, examID uint, tutor Principal) (*models.Exam, error) {
	var exam *models.Exam
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		exam, err = s.repo.Exam().GetForUpdate(ctx, tx, examID)
		if err != nil {
			return notFound(err, ErrExamNotFound, examID, "failed to get exam")
		}
		if err := s.authorizeExam(ctx, tx, exam, tutor); err != nil {
			return err
		}
		if exam.Status != models.ExamDraft {
			return NewBusinessRuleError(ErrInvalidTransition.Rule, "only draft exams can be published",
				map[string]interface{}{"status": exam.Status})
		}

		count, err := s.repo.Exam().CountQuestions(ctx, tx, examID)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrExamHasNoQuestions
		}

		if err := s.repo.Exam().Update(ctx, tx, examID, map[string]interface{}{"status": models.ExamPublished}); err != nil {
			return err
		}
		exam.Status = models.ExamPublished
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam published", "exam_id", examID)
	return exam, nil
}

// ===== READS =====

// Get returns the exam with ordered questions. Correct options are only
// disclosed to the course tutor and admins.
func (s *examService) Get(ctx context.Context, examID uint, viewer Principal) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetWithQuestions(ctx, nil, examID)
	if err != nil {
		return nil, notFound(err, ErrExamNotFound, examID, "failed to get exam")
	}
	course, err := getCourse(ctx, s.repo, nil, exam.CourseID)
	if err != nil {
		return nil, err
	}

	canManage := viewer.IsAdmin() || course.IsOwnedBy(viewer.UserID)
	if !canManage && exam.Status == models.ExamDraft {
		return nil, NewNotFoundError(ErrExamNotFound.Resource, examID)
	}

	resp := &ExamResponse{CanManage: canManage}
	for _, q := range exam.Questions {
		view := QuestionView{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Points:       q.Points,
			OrderIndex:   q.OrderIndex,
			Options:      make([]OptionView, 0, len(q.Options)),
		}
		for _, opt := range q.Options {
			ov := OptionView{ID: opt.ID, OptionText: opt.OptionText, OrderIndex: opt.OrderIndex}
			if canManage {
				ov.IsCorrect = ptr(opt.IsCorrect)
			}
			view.Options = append(view.Options, ov)
		}
		resp.Questions = append(resp.Questions, view)
		resp.TotalPoints += q.Points
	}

	exam.Questions = nil
	resp.Exam = exam
	return resp, nil
}

func (s *examService) ListByCourse(ctx context.Context, courseID uint, viewer Principal) ([]*models.Exam, error) {
	course, err := getCourse(ctx, s.repo, nil, courseID)
	if err != nil {
		return nil, err
	}
	publishedOnly := !(viewer.IsAdmin() || course.IsOwnedBy(viewer.UserID))
	return s.repo.Exam().ListByCourse(ctx, nil, courseID, publishedOnly)
}

// ===== SUBMISSION =====

// Submit records one attempt. The exam row stays locked for the whole
// transaction so concurrent submissions from one student get distinct attempt
// numbers; the unique (exam, student, attempt) index backs this up.
func (s *examService) Submit(ctx context.Context, examID uint, student Principal, req *SubmitExamRequest) (*models.ExamSubmission, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		submission *models.ExamSubmission
		payload    events.SubmissionPayload
	)
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		exam, err := s.repo.Exam().GetForUpdate(ctx, tx, examID)
		if err != nil {
			return notFound(err, ErrExamNotFound, examID, "failed to get exam")
		}
		now := nowUTC()
		if exam.Status != models.ExamPublished {
			return ErrExamNotPublished
		}
		if !exam.IsOpenAt(now) {
			return ErrExamNotOpen
		}

		course, err := getCourse(ctx, s.repo, tx, exam.CourseID)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, student, ActionTakeExam, course); err != nil {
			return err
		}

		prior, err := s.repo.Submission().CountAttempts(ctx, tx, examID, student.UserID)
		if err != nil {
			return err
		}
		if prior >= int64(exam.MaxAttempts) {
			return NewBusinessRuleError(ErrAttemptsExceeded.Rule, ErrAttemptsExceeded.Message, map[string]interface{}{
				"maxAttempts": exam.MaxAttempts,
				"attempts":    prior,
			})
		}

		withQuestions, err := s.repo.Exam().GetWithQuestions(ctx, tx, examID)
		if err != nil {
			return err
		}
		answers, openEnded, err := scoreAnswers(withQuestions.Questions, req.Answers)
		if err != nil {
			return err
		}

		submission = &models.ExamSubmission{
			ExamID:        examID,
			StudentID:     student.UserID,
			AttemptNumber: int(prior) + 1,
			Status:        models.SubmissionPending,
			StartedAt:     now,
			SubmittedAt:   &now,
		}
		if !openEnded {
			earned := 0.0
			for _, a := range answers {
				earned += *a.PointsEarned
			}
			score := percentage(earned, float64(examTotalPoints(withQuestions.Questions)))
			submission.Status = models.SubmissionGraded
			submission.Score = &score
			submission.Passed = ptr(score >= float64(exam.PassingScore))
			submission.GradedAt = &now
		}

		if err := s.repo.Submission().Create(ctx, tx, submission); err != nil {
			if repositories.IsDuplicateError(err) {
				return ErrAttemptsExceeded
			}
			return err
		}
		for _, a := range answers {
			a.SubmissionID = submission.ID
		}
		if err := s.repo.Submission().CreateAnswers(ctx, tx, answers); err != nil {
			return err
		}
		for _, a := range answers {
			submission.Answers = append(submission.Answers, *a)
		}

		payload, err = submissionPayload(ctx, s.repo, tx, submission, exam)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam submitted",
		"exam_id", examID,
		"submission_id", submission.ID,
		"student_id", student.UserID,
		"attempt", submission.AttemptNumber,
		"status", submission.Status)

	publish(ctx, s.publisher, s.logger, events.SubmissionCreated, payload)
	if submission.Status == models.SubmissionGraded {
		publish(ctx, s.publisher, s.logger, events.SubmissionGraded, payload)
	}
	return submission, nil
}

// ===== HELPERS =====

func (s *examService) authorizeExam(ctx context.Context, tx *gorm.DB, exam *models.Exam, tutor Principal) error {
	course, err := getCourse(ctx, s.repo, tx, exam.CourseID)
	if err != nil {
		return err
	}
	return s.guard.Authorize(ctx, tx, tutor, ActionManageCourse, course)
}

// scoreAnswers validates submitted answers against the exam and auto-grades
// multiple choice. openEnded reports whether any answer needs manual grading.
func scoreAnswers(questions []models.Question, submitted []validator.AnswerRequest) ([]*models.SubmissionAnswer, bool, error) {
	byID := make(map[uint]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	var (
		answers   = make([]*models.SubmissionAnswer, 0, len(submitted))
		seen      = make(map[uint]bool, len(submitted))
		openEnded bool
	)
	for i, in := range submitted {
		field := fmt.Sprintf("answers[%d].questionId", i)
		q, ok := byID[in.QuestionID]
		if !ok {
			return nil, false, validator.NewValidationError(field, "question does not belong to this exam", in.QuestionID)
		}
		if seen[in.QuestionID] {
			return nil, false, validator.NewValidationError(field, "question answered more than once", in.QuestionID)
		}
		seen[in.QuestionID] = true

		answer := &models.SubmissionAnswer{
			QuestionID:       q.ID,
			SelectedOptionID: in.SelectedOptionID,
			AnswerText:       in.AnswerText,
		}

		if q.QuestionType.IsOpenEnded() {
			answer.SelectedOptionID = nil
			openEnded = true
		} else {
			earned := 0.0
			if in.SelectedOptionID != nil {
				if !hasOption(q, *in.SelectedOptionID) {
					return nil, false, validator.NewValidationError(
						fmt.Sprintf("answers[%d].selectedOptionId", i), "option does not belong to this question", *in.SelectedOptionID)
				}
				if correct, ok := q.CorrectOptionID(); ok && correct == *in.SelectedOptionID {
					earned = float64(q.Points)
				}
			}
			answer.PointsEarned = &earned
			answer.AnswerText = nil
		}
		answers = append(answers, answer)
	}
	return answers, openEnded, nil
}

func hasOption(q *models.Question, optionID uint) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

func examTotalPoints(questions []models.Question) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}

func submissionPayload(ctx context.Context, repo repositories.Repository, tx *gorm.DB, submission *models.ExamSubmission, exam *models.Exam) (events.SubmissionPayload, error) {
	student, err := repo.User().GetByID(ctx, tx, submission.StudentID)
	if err != nil {
		return events.SubmissionPayload{}, notFound(err, ErrUserNotFound, submission.StudentID, "failed to get student")
	}
	return events.SubmissionPayload{
		SubmissionID:  submission.ID,
		ExamID:        exam.ID,
		ExamTitle:     exam.Title,
		CourseID:      exam.CourseID,
		StudentID:     student.ID,
		StudentName:   student.FullName(),
		StudentEmail:  student.Email,
		AttemptNumber: submission.AttemptNumber,
		Status:        string(submission.Status),
		Score:         submission.Score,
		Passed:        submission.Passed,
	}, nil
}
