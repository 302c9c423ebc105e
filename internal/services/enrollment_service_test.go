package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
)

func TestEnrollmentService_RequestRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)

	draft, err := env.sm.Course().Create(ctx, tutor, &CourseCreateRequest{Title: "Not Yet", ContentType: models.ContentMixed})
	require.NoError(t, err)
	_, err = env.sm.Enrollment().Request(ctx, student, &EnrollmentCreateRequest{CourseID: draft.ID})
	assert.ErrorIs(t, err, ErrCourseNotPublished)

	_, err = env.sm.Enrollment().Request(ctx, student, &EnrollmentCreateRequest{CourseID: 9999})
	assert.ErrorIs(t, err, ErrCourseNotFound)

	course, _ := env.publishedCourse(t, tutor, "Open", nil, false)
	_, err = env.sm.Enrollment().Request(ctx, tutor, &EnrollmentCreateRequest{CourseID: course.ID})
	var rule *BusinessRuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, "own_course", rule.Rule)

	enrollment, err := env.sm.Enrollment().Request(ctx, student, &EnrollmentCreateRequest{CourseID: course.ID})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentPending, enrollment.Status)
	assert.Contains(t, env.events.Types(), events.EnrollmentRequested)

	_, err = env.sm.Enrollment().Request(ctx, student, &EnrollmentCreateRequest{CourseID: course.ID})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, ErrEnrollmentExists)
	assert.Equal(t, models.EnrollmentPending, conflict.Context["status"])
}

func TestEnrollmentService_AutoApprove(t *testing.T) {
	env := newTestEnv(t)
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	course, _ := env.publishedCourse(t, tutor, "Instant", nil, true)

	enrollment, err := env.sm.Enrollment().Request(context.Background(), student, &EnrollmentCreateRequest{CourseID: course.ID})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentApproved, enrollment.Status)
	assert.NotNil(t, enrollment.ApprovedAt)
	assert.Contains(t, env.events.Types(), events.EnrollmentApproved)
}

func TestEnrollmentService_Capacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	first := env.user(t, "first@example.com", models.RoleStudent)
	second := env.user(t, "second@example.com", models.RoleStudent)
	seats := 1
	course, _ := env.publishedCourse(t, tutor, "Tiny", &seats, false)

	a, err := env.sm.Enrollment().Request(ctx, first, &EnrollmentCreateRequest{CourseID: course.ID})
	require.NoError(t, err)
	b, err := env.sm.Enrollment().Request(ctx, second, &EnrollmentCreateRequest{CourseID: course.ID})
	require.NoError(t, err, "pending requests do not consume seats")

	_, err = env.sm.Enrollment().Approve(ctx, a.ID, tutor)
	require.NoError(t, err)

	_, err = env.sm.Enrollment().Approve(ctx, b.ID, tutor)
	assert.ErrorIs(t, err, ErrCourseFull)

	late := env.user(t, "late@example.com", models.RoleStudent)
	_, err = env.sm.Enrollment().Request(ctx, late, &EnrollmentCreateRequest{CourseID: course.ID})
	assert.ErrorIs(t, err, ErrCourseFull)
}

func TestEnrollmentService_Review(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	other := env.user(t, "other@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	course, _ := env.publishedCourse(t, tutor, "Reviewed", nil, false)

	enrollment, err := env.sm.Enrollment().Request(ctx, student, &EnrollmentCreateRequest{CourseID: course.ID})
	require.NoError(t, err)

	_, err = env.sm.Enrollment().Approve(ctx, enrollment.ID, other)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	rejected, err := env.sm.Enrollment().Reject(ctx, enrollment.ID, tutor)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentRejected, rejected.Status)
	assert.Contains(t, env.events.Types(), events.EnrollmentRejected)

	_, err = env.sm.Enrollment().Approve(ctx, enrollment.ID, tutor)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	rejectedStatus := models.EnrollmentRejected
	rows, err := env.sm.Enrollment().ListByCourse(ctx, course.ID, tutor, &rejectedStatus)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "student@example.com", rows[0].StudentEmail)

	stats, err := env.sm.Enrollment().Stats(ctx, course.ID, tutor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestEnrollmentService_ProgressToCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	course, lesson := env.publishedCourse(t, tutor, "Two Lessons", nil, false)

	modules, err := env.sm.Content().ListModules(ctx, course.ID)
	require.NoError(t, err)
	second, err := env.sm.Content().CreateLesson(ctx, modules[0].ID, tutor, &LessonCreateRequest{Title: "Next"})
	require.NoError(t, err)

	enrollment, err := env.sm.Enrollment().Request(ctx, student, &EnrollmentCreateRequest{CourseID: course.ID})
	require.NoError(t, err)

	_, err = env.sm.Enrollment().MarkLessonComplete(ctx, enrollment.ID, lesson.ID, student)
	assert.ErrorIs(t, err, ErrEnrollmentNotActive)

	_, err = env.sm.Enrollment().Approve(ctx, enrollment.ID, tutor)
	require.NoError(t, err)

	other := env.user(t, "other@example.com", models.RoleStudent)
	_, err = env.sm.Enrollment().MarkLessonComplete(ctx, enrollment.ID, lesson.ID, other)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	half, err := env.sm.Enrollment().MarkLessonComplete(ctx, enrollment.ID, lesson.ID, student)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, half.ProgressPercentage, 0.001)
	assert.Equal(t, models.EnrollmentApproved, half.Status)

	// completing the same lesson twice does not move progress
	again, err := env.sm.Enrollment().MarkLessonComplete(ctx, enrollment.ID, lesson.ID, student)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, again.ProgressPercentage, 0.001)

	var rows int64
	require.NoError(t, env.db.Model(&models.LessonProgress{}).
		Where("enrollment_id = ? AND lesson_id = ? AND is_completed = ?", enrollment.ID, lesson.ID, true).
		Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	done, err := env.sm.Enrollment().MarkLessonComplete(ctx, enrollment.ID, second.ID, student)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, done.ProgressPercentage, 0.001)
	assert.Equal(t, models.EnrollmentCompleted, done.Status)
	assert.Contains(t, env.events.Types(), events.EnrollmentCompleted)

	progress, err := env.sm.Enrollment().GetProgress(ctx, enrollment.ID, tutor)
	require.NoError(t, err)
	assert.Equal(t, int64(2), progress.CompletedLessons)
	assert.Equal(t, int64(2), progress.TotalLessons)

	_, err = env.sm.Enrollment().GetProgress(ctx, enrollment.ID, other)
	assert.ErrorAs(t, err, &permErr)

	mine, err := env.sm.Enrollment().ListMine(ctx, student, nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Two Lessons", mine[0].CourseTitle)
}

func TestEnrollmentService_LessonFromAnotherCourse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	course, _ := env.publishedCourse(t, tutor, "Mine", nil, true)
	_, foreign := env.publishedCourse(t, tutor, "Theirs", nil, true)

	enrollment := env.enroll(t, student, tutor, course.ID)
	_, err := env.sm.Enrollment().MarkLessonComplete(ctx, enrollment.ID, foreign.ID, student)
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

func TestEnrollmentService_ProgressWithoutLessons(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	course, lesson := env.publishedCourse(t, tutor, "Empty", nil, true)

	enrollment := env.enroll(t, student, tutor, course.ID)
	require.NoError(t, env.sm.Content().DeleteLesson(ctx, lesson.ID, tutor))

	progress, err := env.sm.Enrollment().GetProgress(ctx, enrollment.ID, student)
	require.NoError(t, err)
	assert.Zero(t, progress.TotalLessons)
	assert.Zero(t, progress.CompletedLessons)
	assert.Zero(t, progress.Enrollment.ProgressPercentage)
	assert.Empty(t, progress.Lessons)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name   string
		earned float64
		total  float64
		want   float64
	}{
		{name: "nothing of nothing", earned: 0, total: 0, want: 0},
		{name: "empty total", earned: 1, total: 0, want: 0},
		{name: "half", earned: 1, total: 2, want: 50},
		{name: "all", earned: 8, total: 8, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, percentage(tt.earned, tt.total), 0.001)
		})
	}
}

func TestExamTotalPoints(t *testing.T) {
	assert.Zero(t, examTotalPoints(nil))
	assert.Zero(t, percentage(0, float64(examTotalPoints([]models.Question{{Points: 0}}))))
	assert.Equal(t, 10, examTotalPoints([]models.Question{{Points: 2}, {Points: 8}}))
}
