package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

type examFixture struct {
	env     *testEnv
	tutor   Principal
	student Principal
	course  *models.Course
	exam    *models.Exam
	choice  *models.Question
	essay   *models.Question
}

// newExamFixture builds a published exam with a 2-point multiple choice
// question and, when withEssay is set, an 8-point essay.
func newExamFixture(t *testing.T, withEssay bool, maxAttempts int) *examFixture {
	t.Helper()
	ctx := context.Background()
	env := newTestEnv(t)

	f := &examFixture{
		env:     env,
		tutor:   env.user(t, "tutor@example.com", models.RoleTutor),
		student: env.user(t, "student@example.com", models.RoleStudent),
	}
	f.course, _ = env.publishedCourse(t, f.tutor, "Exams 101", nil, true)
	env.enroll(t, f.student, f.tutor, f.course.ID)

	exam, err := env.sm.Exam().Create(ctx, f.course.ID, f.tutor, &ExamCreateRequest{
		Title:       "Midterm",
		MaxAttempts: &maxAttempts,
	})
	require.NoError(t, err)

	f.choice, err = env.sm.Exam().AddQuestion(ctx, exam.ID, f.tutor, &QuestionCreateRequest{
		QuestionText: "2 + 2?",
		QuestionType: models.MultipleChoice,
		Points:       2,
		Options: []validator.OptionCreateRequest{
			{OptionText: "3"},
			{OptionText: "4", IsCorrect: true},
		},
	})
	require.NoError(t, err)

	if withEssay {
		f.essay, err = env.sm.Exam().AddQuestion(ctx, exam.ID, f.tutor, &QuestionCreateRequest{
			QuestionText: "Explain goroutines",
			QuestionType: models.Essay,
			Points:       8,
		})
		require.NoError(t, err)
	}

	f.exam, err = env.sm.Exam().Publish(ctx, exam.ID, f.tutor)
	require.NoError(t, err)
	return f
}

func (f *examFixture) option(correct bool) *uint {
	for _, opt := range f.choice.Options {
		if opt.IsCorrect == correct {
			id := opt.ID
			return &id
		}
	}
	return nil
}

func TestExamService_Defaults(t *testing.T) {
	env := newTestEnv(t)
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	course, _ := env.publishedCourse(t, tutor, "Defaults", nil, false)

	exam, err := env.sm.Exam().Create(context.Background(), course.ID, tutor, &ExamCreateRequest{Title: "Quiz"})
	require.NoError(t, err)
	assert.Equal(t, 60, exam.DurationMinutes)
	assert.Equal(t, 70, exam.PassingScore)
	assert.Equal(t, 1, exam.MaxAttempts)
	assert.Equal(t, models.ExamDraft, exam.Status)
}

func TestExamService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	course, _ := env.publishedCourse(t, tutor, "Windows", nil, false)
	other, _ := env.publishedCourse(t, tutor, "Elsewhere", nil, false)

	from := time.Now().UTC().Add(48 * time.Hour)
	until := from.Add(-time.Hour)
	_, err := env.sm.Exam().Create(ctx, course.ID, tutor, &ExamCreateRequest{
		Title:          "Backwards",
		AvailableFrom:  &from,
		AvailableUntil: &until,
	})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))

	modules, err := env.sm.Content().ListModules(ctx, other.ID)
	require.NoError(t, err)
	_, err = env.sm.Exam().Create(ctx, course.ID, tutor, &ExamCreateRequest{Title: "Wrong module", ModuleID: &modules[0].ID})
	assert.True(t, errors.As(err, &verrs))

	intruder := env.user(t, "intruder@example.com", models.RoleTutor)
	_, err = env.sm.Exam().Create(ctx, course.ID, intruder, &ExamCreateRequest{Title: "Nope"})
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
}

func TestExamService_PublishRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	course, _ := env.publishedCourse(t, tutor, "Publishing", nil, false)

	exam, err := env.sm.Exam().Create(ctx, course.ID, tutor, &ExamCreateRequest{Title: "Empty"})
	require.NoError(t, err)
	_, err = env.sm.Exam().Publish(ctx, exam.ID, tutor)
	assert.ErrorIs(t, err, ErrExamHasNoQuestions)

	_, err = env.sm.Exam().AddQuestion(ctx, exam.ID, tutor, &QuestionCreateRequest{
		QuestionText: "Two correct answers",
		QuestionType: models.MultipleChoice,
		Points:       1,
		Options: []validator.OptionCreateRequest{
			{OptionText: "a", IsCorrect: true},
			{OptionText: "b", IsCorrect: true},
		},
	})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))

	_, err = env.sm.Exam().AddQuestion(ctx, exam.ID, tutor, &QuestionCreateRequest{
		QuestionText: "Why?",
		QuestionType: models.ShortAnswer,
		Points:       1,
	})
	require.NoError(t, err)

	_, err = env.sm.Exam().Publish(ctx, exam.ID, tutor)
	require.NoError(t, err)

	_, err = env.sm.Exam().AddQuestion(ctx, exam.ID, tutor, &QuestionCreateRequest{
		QuestionText: "Late",
		QuestionType: models.Essay,
		Points:       1,
	})
	assert.ErrorIs(t, err, ErrExamNotDraft)

	_, err = env.sm.Exam().Publish(ctx, exam.ID, tutor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExamService_GetHidesAnswersFromStudents(t *testing.T) {
	f := newExamFixture(t, false, 1)
	ctx := context.Background()

	asStudent, err := f.env.sm.Exam().Get(ctx, f.exam.ID, f.student)
	require.NoError(t, err)
	assert.False(t, asStudent.CanManage)
	require.Len(t, asStudent.Questions, 1)
	for _, opt := range asStudent.Questions[0].Options {
		assert.Nil(t, opt.IsCorrect)
	}
	assert.Equal(t, 2, asStudent.TotalPoints)

	asTutor, err := f.env.sm.Exam().Get(ctx, f.exam.ID, f.tutor)
	require.NoError(t, err)
	assert.True(t, asTutor.CanManage)
	for _, opt := range asTutor.Questions[0].Options {
		assert.NotNil(t, opt.IsCorrect)
	}

	draft, err := f.env.sm.Exam().Create(ctx, f.course.ID, f.tutor, &ExamCreateRequest{Title: "Hidden"})
	require.NoError(t, err)
	_, err = f.env.sm.Exam().Get(ctx, draft.ID, f.student)
	assert.ErrorIs(t, err, ErrExamNotFound)

	listed, err := f.env.sm.Exam().ListByCourse(ctx, f.course.ID, f.student)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	listed, err = f.env.sm.Exam().ListByCourse(ctx, f.course.ID, f.tutor)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestExamService_SubmitAutoGradesMultipleChoice(t *testing.T) {
	f := newExamFixture(t, false, 2)
	ctx := context.Background()

	wrong, err := f.env.sm.Exam().Submit(ctx, f.exam.ID, f.student, &SubmitExamRequest{
		Answers: []validator.AnswerRequest{{QuestionID: f.choice.ID, SelectedOptionID: f.option(false)}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionGraded, wrong.Status)
	require.NotNil(t, wrong.Score)
	assert.InDelta(t, 0.0, *wrong.Score, 0.001)
	assert.False(t, *wrong.Passed)
	assert.Equal(t, 1, wrong.AttemptNumber)

	right, err := f.env.sm.Exam().Submit(ctx, f.exam.ID, f.student, &SubmitExamRequest{
		Answers: []validator.AnswerRequest{{QuestionID: f.choice.ID, SelectedOptionID: f.option(true)}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, *right.Score, 0.001)
	assert.True(t, *right.Passed)
	assert.Equal(t, 2, right.AttemptNumber)

	_, err = f.env.sm.Exam().Submit(ctx, f.exam.ID, f.student, &SubmitExamRequest{})
	var rule *BusinessRuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, ErrAttemptsExceeded.Rule, rule.Rule)
	assert.EqualValues(t, 2, rule.Context["maxAttempts"])

	assert.Contains(t, f.env.events.Types(), events.SubmissionGraded)
}

func TestExamService_SubmitRejectsForeignAnswers(t *testing.T) {
	f := newExamFixture(t, true, 3)
	ctx := context.Background()

	var verrs validator.ValidationErrors
	_, err := f.env.sm.Exam().Submit(ctx, f.exam.ID, f.student, &SubmitExamRequest{
		Answers: []validator.AnswerRequest{{QuestionID: 424242}},
	})
	assert.True(t, errors.As(err, &verrs))

	_, err = f.env.sm.Exam().Submit(ctx, f.exam.ID, f.student, &SubmitExamRequest{
		Answers: []validator.AnswerRequest{
			{QuestionID: f.choice.ID, SelectedOptionID: f.option(true)},
			{QuestionID: f.choice.ID, SelectedOptionID: f.option(false)},
		},
	})
	assert.True(t, errors.As(err, &verrs))

	bogus := uint(999999)
	_, err = f.env.sm.Exam().Submit(ctx, f.exam.ID, f.student, &SubmitExamRequest{
		Answers: []validator.AnswerRequest{{QuestionID: f.choice.ID, SelectedOptionID: &bogus}},
	})
	assert.True(t, errors.As(err, &verrs))

	var count int64
	require.NoError(t, f.env.db.Model(&models.ExamSubmission{}).Count(&count).Error)
	assert.Zero(t, count, "rejected submissions must not consume attempts")
}

func TestExamService_SubmitRequiresActiveEnrollment(t *testing.T) {
	f := newExamFixture(t, false, 1)
	outsider := f.env.user(t, "outsider@example.com", models.RoleStudent)

	_, err := f.env.sm.Exam().Submit(context.Background(), f.exam.ID, outsider, &SubmitExamRequest{})
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
}

func TestExamService_SubmitOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	course, _ := env.publishedCourse(t, tutor, "Later", nil, true)
	env.enroll(t, student, tutor, course.ID)

	from := time.Now().UTC().Add(24 * time.Hour)
	exam, err := env.sm.Exam().Create(ctx, course.ID, tutor, &ExamCreateRequest{Title: "Tomorrow", AvailableFrom: &from})
	require.NoError(t, err)
	_, err = env.sm.Exam().AddQuestion(ctx, exam.ID, tutor, &QuestionCreateRequest{
		QuestionText: "Ready?",
		QuestionType: models.ShortAnswer,
		Points:       1,
	})
	require.NoError(t, err)
	_, err = env.sm.Exam().Publish(ctx, exam.ID, tutor)
	require.NoError(t, err)

	_, err = env.sm.Exam().Submit(ctx, exam.ID, student, &SubmitExamRequest{})
	assert.ErrorIs(t, err, ErrExamNotOpen)
}
